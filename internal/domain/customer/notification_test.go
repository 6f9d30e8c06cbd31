package customer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNotification(t *testing.T) {
	n, err := NewNotification(TemplateShopCreated, "Owner@Acme.io", "R1", "Your shop is live", "body")
	require.NoError(t, err)

	assert.Equal(t, "owner@acme.io", n.Recipient)
	assert.Equal(t, "shop_created:owner@acme.io:R1", n.DedupKey)
	assert.Equal(t, DedupKey(TemplateShopCreated, "OWNER@acme.io", "R1"), n.DedupKey)
	assert.False(t, n.IsSent())

	_, err = NewNotification(TemplateShopCreated, "", "R1", "", "")
	assert.Error(t, err)
}

func TestNotification_DeliveryBookkeeping(t *testing.T) {
	n, err := NewNotification(TemplatePaymentRequest, "a@x.com", "L1", "s", "b")
	require.NoError(t, err)

	n.MarkFailed("smtp down")
	assert.Equal(t, 1, n.Attempts)
	assert.Equal(t, "smtp down", n.LastError)
	assert.False(t, n.IsSent())

	n.MarkSent()
	assert.True(t, n.IsSent())
	assert.Equal(t, 2, n.Attempts)
	assert.Empty(t, n.LastError)
	assert.NotNil(t, n.SentAt)
}
