package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wishlistPayload struct {
	WishlistID string   `json:"wishlist_id"`
	VariantIDs []string `json:"variant_ids"`
}

func TestNewEvent(t *testing.T) {
	ev, err := NewEvent("storefront.wishlist.updated", "cus_1", "wishlist", "storefront",
		wishlistPayload{WishlistID: "wl_1", VariantIDs: []string{"variant_1"}})
	require.NoError(t, err)

	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, "storefront.wishlist.updated", ev.EventType)
	assert.Equal(t, "cus_1", ev.AggregateID)
	assert.Equal(t, envelopeVersion, ev.Version)
	assert.WithinDuration(t, time.Now(), ev.Timestamp, time.Second)
	assert.JSONEq(t, `{"wishlist_id":"wl_1","variant_ids":["variant_1"]}`, string(ev.Data))
}

func TestNewEvent_UnencodablePayload(t *testing.T) {
	_, err := NewEvent("x.y", "agg", "agg", "storefront", func() {})
	assert.ErrorContains(t, err, "encode x.y payload")
}

func TestEvent_EncodeDecode(t *testing.T) {
	ev, err := NewEvent("commerce.customer.updated", "cus_9", "customer", "commerce", map[string]string{"customer_id": "cus_9"})
	require.NoError(t, err)
	ev.WithCorrelationID("corr-1").WithMetadata("session_id", "sid-1")

	raw, err := ev.Encode()
	require.NoError(t, err)
	got, err := DecodeEvent(raw)
	require.NoError(t, err)

	assert.Equal(t, ev.EventID, got.EventID)
	assert.Equal(t, "corr-1", got.CorrelationID)
	assert.Equal(t, map[string]string{"session_id": "sid-1"}, got.Metadata)

	var data map[string]string
	require.NoError(t, got.DecodeData(&data))
	assert.Equal(t, "cus_9", data["customer_id"])
}

func TestDecodeEvent_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{"},
		{"empty", ""},
		{"no event type", `{"event_id":"e1","data":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEvent([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestEvent_DecodeData_Errors(t *testing.T) {
	ev := &Event{EventType: "commerce.product.updated"}
	var out map[string]any
	assert.ErrorContains(t, ev.DecodeData(&out), "empty")

	ev.Data = []byte(`"text"`)
	assert.ErrorContains(t, ev.DecodeData(&out), "decode commerce.product.updated payload")
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "commerce.customer.deleted", Topic("customer", "deleted"))
	assert.Equal(t, "storefront.dlq.commerce.customer.deleted", DLQTopic(Topic("customer", "deleted")))
}

func TestEventMessage(t *testing.T) {
	ev, err := NewEvent("storefront.wishlist.updated", "cus_1", "wishlist", "storefront", struct{}{})
	require.NoError(t, err)
	ev.WithCorrelationID("corr-7")

	msg, err := eventMessage("storefront.wishlist.updated", ev)
	require.NoError(t, err)

	assert.Equal(t, []byte("cus_1"), msg.Key)
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, map[string]string{
		"event_type":     "storefront.wishlist.updated",
		"source":         "storefront",
		"correlation_id": "corr-7",
	}, headers)
}

func TestPingBrokers_NoneConfigured(t *testing.T) {
	assert.ErrorContains(t, PingBrokers(t.Context(), nil), "no brokers configured")
}
