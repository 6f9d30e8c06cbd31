// Package shop is the public entry point into the shop module: shop
// registrations, shops, their catalogs and products.
package shop

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/application/uow"
	"github.com/shopkit/backend/internal/application/validation"
	"github.com/shopkit/backend/internal/domain/catalog"
	"github.com/shopkit/backend/internal/domain/shared"
	"github.com/shopkit/backend/internal/domain/shop"
	"github.com/shopkit/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Facade handles shop operations. Every method runs in its own unit of
// work; events are delivered only after it commits.
type Facade struct {
	uow    uow.UnitOfWork
	logger *zap.Logger
}

// NewFacade creates a new shop Facade
func NewFacade(u uow.UnitOfWork, logger *zap.Logger) *Facade {
	return &Facade{uow: u, logger: logger}
}

// RegisterShop stores a shop registration and starts the registration
// workflow. The returned registration id is also its procman id.
func (f *Facade) RegisterShop(ctx context.Context, shopName, ownerEmail, ownerMobile string) (uuid.UUID, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "shop", "register_shop")
	defer span.End()

	cmd := registerShopCommand{ShopName: shopName, OwnerEmail: ownerEmail, OwnerMobile: ownerMobile}
	if err := validation.Struct(cmd); err != nil {
		return uuid.Nil, err
	}

	token, hash, err := shared.NewConfirmationToken()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate confirmation token: %w", err)
	}
	registration, err := shop.NewShopRegistration(shopName, ownerEmail, ownerMobile, token, hash)
	if err != nil {
		return uuid.Nil, err
	}

	err = f.uow.Execute(ctx, func(repos uow.Repositories) error {
		if err := repos.Registrations().Save(ctx, registration); err != nil {
			return err
		}
		uow.RecordAggregate(repos, registration)
		return nil
	})
	switch {
	case errors.Is(err, uow.ErrNotDispatched):
		// stored; the relay carries the saga forward and the id still confirms it
		telemetry.RecordError(span, err)
		return registration.ID, fmt.Errorf("register shop %q: %w", shopName, err)
	case err != nil:
		telemetry.RecordError(span, err)
		return uuid.Nil, fmt.Errorf("register shop %q: %w", shopName, err)
	}

	f.logger.Info("shop registration created",
		zap.String("registration_id", registration.ID.String()),
		zap.String("shop_name", registration.ShopName))
	return registration.ID, nil
}

// ConfirmShopRegistration checks the confirmation token of a registration.
// Confirming twice is a no-op; a wrong token returns shared.ErrInvalidToken.
func (f *Facade) ConfirmShopRegistration(ctx context.Context, registrationID uuid.UUID, token string) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "shop", "confirm_shop_registration",
		telemetry.WithAttribute(telemetry.SpanAttrProcmanID, registrationID.String()))
	defer span.End()

	err := f.uow.Execute(ctx, func(repos uow.Repositories) error {
		registration, found, err := repos.Registrations().FindByID(ctx, registrationID)
		if err != nil {
			return err
		}
		if !found {
			return shared.ErrNotFound
		}
		confirmed, err := registration.Confirm(token)
		if err != nil {
			return err
		}
		if !confirmed {
			f.logger.Info("registration already confirmed, skipping",
				zap.String("registration_id", registrationID.String()))
			return nil
		}
		if err := repos.Registrations().Save(ctx, registration); err != nil {
			return err
		}
		uow.RecordAggregate(repos, registration)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("confirm registration %s: %w", registrationID, err)
	}
	return nil
}

// CreatePendingShop creates the pending shop of a user. Every user owns at
// most one shop, so a second call is a no-op.
func (f *Facade) CreatePendingShop(ctx context.Context, userID uuid.UUID, name, ownerEmail, procmanID string) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "shop", "create_pending_shop",
		telemetry.WithAttribute(telemetry.SpanAttrUserID, userID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrProcmanID, procmanID))
	defer span.End()

	cmd := createPendingShopCommand{OwnerID: userID, Name: name, Email: ownerEmail, ProcmanID: procmanID}
	if err := validation.Struct(cmd); err != nil {
		return err
	}

	err := f.uow.Execute(ctx, func(repos uow.Repositories) error {
		existing, found, err := repos.Shops().FindByOwner(ctx, userID)
		if err != nil {
			return err
		}
		if found {
			f.logger.Info("shop already exists for owner, skipping",
				zap.String("owner_id", userID.String()),
				zap.String("shop_id", existing.ID.String()))
			return nil
		}

		s, err := shop.NewPendingShop(userID, name, ownerEmail, procmanID)
		if err != nil {
			return err
		}
		if err := repos.Shops().Save(ctx, s); err != nil {
			return err
		}
		uow.RecordAggregate(repos, s)
		telemetry.SetAttribute(span, telemetry.SpanAttrShopID, s.ID.String())
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("create pending shop for owner %s: %w", userID, err)
	}
	return nil
}

// CreateDefaultCatalog creates the default catalog of a shop unless it
// already has one
func (f *Facade) CreateDefaultCatalog(ctx context.Context, shopID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "shop", "create_default_catalog",
		telemetry.WithAttribute(telemetry.SpanAttrShopID, shopID.String()))
	defer span.End()

	err := f.withShop(ctx, shopID, func(repos uow.Repositories, _ *shop.Shop) error {
		_, found, err := repos.Catalogs().FindDefault(ctx, shopID)
		if err != nil {
			return err
		}
		if found {
			f.logger.Info("default catalog already exists, skipping", zap.String("shop_id", shopID.String()))
			return nil
		}
		return repos.Catalogs().Save(ctx, catalog.NewDefaultCatalog(shopID))
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("create default catalog of shop %s: %w", shopID, err)
	}
	return nil
}

// AddShopWarehouse attaches a warehouse to a shop. Attaching the same
// warehouse twice is a no-op.
func (f *Facade) AddShopWarehouse(ctx context.Context, shopID, warehouseID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "shop", "add_shop_warehouse",
		telemetry.WithAttribute(telemetry.SpanAttrShopID, shopID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrWarehouseID, warehouseID.String()))
	defer span.End()

	err := f.withShop(ctx, shopID, func(repos uow.Repositories, s *shop.Shop) error {
		if !s.AttachWarehouse(warehouseID) {
			f.logger.Info("warehouse already attached, skipping",
				zap.String("shop_id", shopID.String()),
				zap.String("warehouse_id", warehouseID.String()))
			return nil
		}
		return repos.Shops().Save(ctx, s)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("add warehouse %s to shop %s: %w", warehouseID, shopID, err)
	}
	return nil
}

// ActivatePendingShop activates a pending shop
func (f *Facade) ActivatePendingShop(ctx context.Context, shopID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "shop", "activate_pending_shop",
		telemetry.WithAttribute(telemetry.SpanAttrShopID, shopID.String()))
	defer span.End()

	err := f.withShop(ctx, shopID, func(repos uow.Repositories, s *shop.Shop) error {
		if !s.Activate() {
			f.logger.Info("shop already active, skipping", zap.String("shop_id", shopID.String()))
			return nil
		}
		return repos.Shops().Save(ctx, s)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("activate shop %s: %w", shopID, err)
	}
	return nil
}

// UpdateOwnerContact copies the owner's new contact data onto their shop.
// Owners without a shop are skipped.
func (f *Facade) UpdateOwnerContact(ctx context.Context, ownerID uuid.UUID, email, mobile string) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "shop", "update_owner_contact",
		telemetry.WithAttribute(telemetry.SpanAttrUserID, ownerID.String()))
	defer span.End()

	err := f.uow.Execute(ctx, func(repos uow.Repositories) error {
		s, found, err := repos.Shops().FindByOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		if !found {
			f.logger.Info("owner has no shop, skipping contact update", zap.String("owner_id", ownerID.String()))
			return nil
		}
		if !s.UpdateContact(email, mobile) {
			return nil
		}
		return repos.Shops().Save(ctx, s)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("update contact of owner %s: %w", ownerID, err)
	}
	return nil
}

// CreateProduct adds a draft product to the default catalog of an active
// shop and starts the workflow that stocks it in every shop warehouse. The
// SKU is unique per shop; repeating it returns the existing product.
func (f *Facade) CreateProduct(ctx context.Context, shopID uuid.UUID, name, sku string, price decimal.Decimal) (uuid.UUID, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "shop", "create_product",
		telemetry.WithAttribute(telemetry.SpanAttrShopID, shopID.String()))
	defer span.End()

	if err := validation.Struct(createProductCommand{ShopID: shopID, Name: name, SKU: sku}); err != nil {
		return uuid.Nil, err
	}

	var productID uuid.UUID
	err := f.withShop(ctx, shopID, func(repos uow.Repositories, s *shop.Shop) error {
		if s.Status != shop.ShopStatusActive {
			return fmt.Errorf("shop is %s: %w", s.Status, shared.ErrInvalidState)
		}
		if len(s.WarehouseIDs) == 0 {
			return fmt.Errorf("shop has no warehouse: %w", shared.ErrInvalidState)
		}

		existing, found, err := repos.Products().FindBySKU(ctx, shopID, catalog.NormalizeSKU(sku))
		if err != nil {
			return err
		}
		if found {
			f.logger.Info("product with sku already exists, skipping",
				zap.String("shop_id", shopID.String()),
				zap.String("sku", existing.SKU))
			productID = existing.ID
			return nil
		}

		defaultCatalog, found, err := repos.Catalogs().FindDefault(ctx, shopID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("shop has no default catalog: %w", shared.ErrInvalidState)
		}

		product, err := catalog.NewProduct(shopID, defaultCatalog.ID, sku, name, price, s.WarehouseIDs, shared.NewProcmanID())
		if err != nil {
			return err
		}
		if err := repos.Products().Save(ctx, product); err != nil {
			return err
		}
		uow.RecordAggregate(repos, product)
		productID = product.ID
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return uuid.Nil, fmt.Errorf("create product %q in shop %s: %w", sku, shopID, err)
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrProductID, productID.String())
	return productID, nil
}

// PublishProduct makes a draft product visible
func (f *Facade) PublishProduct(ctx context.Context, productID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "shop", "publish_product",
		telemetry.WithAttribute(telemetry.SpanAttrProductID, productID.String()))
	defer span.End()

	err := f.uow.Execute(ctx, func(repos uow.Repositories) error {
		product, found, err := repos.Products().FindByID(ctx, productID)
		if err != nil {
			return err
		}
		if !found {
			return shared.ErrNotFound
		}
		if !product.Publish() {
			f.logger.Info("product already published, skipping", zap.String("product_id", productID.String()))
			return nil
		}
		return repos.Products().Save(ctx, product)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("publish product %s: %w", productID, err)
	}
	return nil
}

// FindShopByOwner returns the shop of an owner
func (f *Facade) FindShopByOwner(ctx context.Context, ownerID uuid.UUID) (ShopView, bool, error) {
	var (
		view  ShopView
		found bool
	)
	err := f.uow.Execute(ctx, func(repos uow.Repositories) error {
		s, ok, err := repos.Shops().FindByOwner(ctx, ownerID)
		if err != nil || !ok {
			return err
		}
		view, found = ToShopView(s), true
		return nil
	})
	if err != nil {
		return ShopView{}, false, fmt.Errorf("find shop of owner %s: %w", ownerID, err)
	}
	return view, found, nil
}

// FindProduct returns a product
func (f *Facade) FindProduct(ctx context.Context, productID uuid.UUID) (ProductView, bool, error) {
	var (
		view  ProductView
		found bool
	)
	err := f.uow.Execute(ctx, func(repos uow.Repositories) error {
		p, ok, err := repos.Products().FindByID(ctx, productID)
		if err != nil || !ok {
			return err
		}
		view, found = ToProductView(p), true
		return nil
	})
	if err != nil {
		return ProductView{}, false, fmt.Errorf("find product %s: %w", productID, err)
	}
	return view, found, nil
}

// withShop loads a shop inside a unit of work and runs fn on it
func (f *Facade) withShop(ctx context.Context, shopID uuid.UUID, fn func(repos uow.Repositories, s *shop.Shop) error) error {
	return f.uow.Execute(ctx, func(repos uow.Repositories) error {
		s, found, err := repos.Shops().FindByID(ctx, shopID)
		if err != nil {
			return err
		}
		if !found {
			return shared.ErrNotFound
		}
		return fn(repos, s)
	})
}
