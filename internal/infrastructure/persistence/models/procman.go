package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopkit/backend/internal/domain/procman"
)

// ProcessManagerModel is the persistence model for saga state
type ProcessManagerModel struct {
	ID              string     `gorm:"type:varchar(64);primaryKey"`
	SagaType        string     `gorm:"type:varchar(64);not null"`
	State           string     `gorm:"type:varchar(64);not null;index:idx_procman_state_timeout,priority:1"`
	TimeoutAt       *time.Time `gorm:"index:idx_procman_state_timeout,priority:2"`
	Data            []byte     `gorm:"not null"`
	ProcessedEvents []byte     `gorm:"not null"`
	Version         int        `gorm:"not null"`
	CreatedAt       time.Time  `gorm:"not null"`
	UpdatedAt       time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProcessManagerModel) TableName() string {
	return "process_managers"
}

// ToDomain converts the persistence model to a domain ProcessManager
func (m *ProcessManagerModel) ToDomain() (*procman.ProcessManager, error) {
	processed := make([]string, 0)
	if len(m.ProcessedEvents) > 0 {
		if err := json.Unmarshal(m.ProcessedEvents, &processed); err != nil {
			return nil, fmt.Errorf("decode processed events of %s: %w", m.ID, err)
		}
	}
	data := json.RawMessage(m.Data)
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	return &procman.ProcessManager{
		ID:              m.ID,
		SagaType:        m.SagaType,
		State:           m.State,
		TimeoutAt:       m.TimeoutAt,
		Data:            data,
		ProcessedEvents: processed,
		Version:         m.Version,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}, nil
}

// FromDomain populates the persistence model from a domain ProcessManager
func (m *ProcessManagerModel) FromDomain(pm *procman.ProcessManager) error {
	processed, err := json.Marshal(pm.ProcessedEvents)
	if err != nil {
		return err
	}
	m.ID = pm.ID
	m.SagaType = pm.SagaType
	m.State = pm.State
	m.TimeoutAt = pm.TimeoutAt
	m.Data = []byte(pm.Data)
	m.ProcessedEvents = processed
	m.Version = pm.Version
	m.CreatedAt = pm.CreatedAt
	m.UpdatedAt = pm.UpdatedAt
	return nil
}

// ProcessManagerTransitionModel is one row of a saga's audit history
type ProcessManagerTransitionModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProcmanID  string    `gorm:"type:varchar(64);not null;index:idx_transition_procman,priority:1"`
	SagaType   string    `gorm:"type:varchar(64);not null"`
	EventID    string    `gorm:"type:varchar(64)"`
	EventType  string    `gorm:"type:varchar(255)"`
	FromState  string    `gorm:"type:varchar(64)"`
	ToState    string    `gorm:"type:varchar(64);not null"`
	TraceID    string    `gorm:"type:varchar(32)"`
	SpanID     string    `gorm:"type:varchar(16)"`
	OccurredAt time.Time `gorm:"not null;index:idx_transition_procman,priority:2"`
}

// TableName returns the table name for GORM
func (ProcessManagerTransitionModel) TableName() string {
	return "process_manager_transitions"
}

// ToDomain converts the persistence model to a domain Transition
func (m *ProcessManagerTransitionModel) ToDomain() *procman.Transition {
	return &procman.Transition{
		ID:         m.ID,
		ProcmanID:  m.ProcmanID,
		SagaType:   m.SagaType,
		EventID:    m.EventID,
		EventType:  m.EventType,
		FromState:  m.FromState,
		ToState:    m.ToState,
		TraceID:    m.TraceID,
		SpanID:     m.SpanID,
		OccurredAt: m.OccurredAt,
	}
}

// FromDomain populates the persistence model from a domain Transition
func (m *ProcessManagerTransitionModel) FromDomain(t *procman.Transition) {
	m.ID = t.ID
	m.ProcmanID = t.ProcmanID
	m.SagaType = t.SagaType
	m.EventID = t.EventID
	m.EventType = t.EventType
	m.FromState = t.FromState
	m.ToState = t.ToState
	m.TraceID = t.TraceID
	m.SpanID = t.SpanID
	m.OccurredAt = t.OccurredAt
}

// AllModels lists every persistence model, used by AutoMigrate in tests and
// single-node sqlite deployments
func AllModels() []any {
	return []any{
		&UserModel{},
		&ShopRegistrationModel{},
		&ShopModel{},
		&ShopWarehouseModel{},
		&CatalogModel{},
		&ProductModel{},
		&WarehouseModel{},
		&StockItemModel{},
		&PaymentModel{},
		&ListingModel{},
		&NotificationModel{},
		&ProcessManagerModel{},
		&ProcessManagerTransitionModel{},
		&OutboxEntryModel{},
	}
}
