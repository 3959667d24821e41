package matineews

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/tj/assert"
)

func wsRequest(route, connID, body string, claims map[string]interface{}) events.APIGatewayWebsocketProxyRequest {
	req := events.APIGatewayWebsocketProxyRequest{Body: body}
	req.RequestContext.RouteKey = route
	req.RequestContext.ConnectionID = connID
	req.RequestContext.DomainName = "gw.example.com"
	req.RequestContext.Stage = "dev"
	if claims != nil {
		req.RequestContext.Authorizer = claims
	}
	return req
}

func TestHandlerLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("connect stores the identity claim", func(t *testing.T) {
		h, conns, _, _ := newBroker()

		resp, err := h.HandleEvent(ctx, wsRequest("$connect", "A", "", map[string]interface{}{
			"userId":   "u1",
			"userRole": "organizer",
		}))
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		conn, ok := conns.get("A")
		assert.True(t, ok)
		assert.Equal(t, "u1", conn.UserID)
		assert.Equal(t, "organizer", conn.UserRole)
		assert.Equal(t, "https://gw.example.com/dev", conn.Endpoint)
		assert.True(t, conn.TTL > conn.ConnectedAt)
	})

	t.Run("connect without a claim falls back to anonymous", func(t *testing.T) {
		h, conns, _, _ := newBroker()

		resp, err := h.HandleEvent(ctx, wsRequest("$connect", "A", "", nil))
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		conn, _ := conns.get("A")
		assert.Equal(t, "anonymous", conn.UserID)
		assert.Equal(t, "guest", conn.UserRole)
	})

	t.Run("subscribe then broadcast delivers exactly one update", func(t *testing.T) {
		h, _, _, pusher := newBroker()

		_, err := h.HandleEvent(ctx, wsRequest("$connect", "A", "", map[string]interface{}{"userId": "u1"}))
		assert.NoError(t, err)

		resp, err := h.HandleEvent(ctx, wsRequest("$default", "A",
			`{"action":"subscribe","channel":"inventory","entityType":"show","entityId":"S1"}`, nil))
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		resp, err = h.HandleEvent(ctx, wsRequest("$default", "producer",
			`{"action":"broadcast","channel":"inventory","entityType":"show","entityId":"S1","eventType":"slot_booked","payload":{"qty":2}}`, nil))
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, `{"recipients":1}`, resp.Body)

		delivered := pusher.deliveries("A")
		assert.Len(t, delivered, 2) // subscribed ack, then the update

		var ack ServerMessage
		assert.NoError(t, json.Unmarshal(delivered[0], &ack))
		assert.Equal(t, ActionSubscribed, ack.Action)

		var update ServerMessage
		assert.NoError(t, json.Unmarshal(delivered[1], &update))
		assert.Equal(t, ActionUpdate, update.Action)
		assert.Equal(t, "slot_booked", update.EventType)
		assert.Equal(t, "S1", update.EntityID)
		assert.JSONEq(t, `{"qty":2}`, string(update.Payload))
		assert.False(t, update.Timestamp.IsZero())
	})

	t.Run("subscribe without connect is rejected and records nothing", func(t *testing.T) {
		h, _, subs, _ := newBroker()

		resp, err := h.HandleEvent(ctx, wsRequest("$default", "never-connected",
			`{"action":"subscribe","channel":"inventory","entityType":"show"}`, nil))
		assert.NoError(t, err)
		assert.Equal(t, 410, resp.StatusCode)
		assert.Equal(t, 0, subs.len())
	})

	t.Run("requests missing required fields are rejected before mutation", func(t *testing.T) {
		h, _, subs, _ := newBroker()

		_, err := h.HandleEvent(ctx, wsRequest("$connect", "A", "", nil))
		assert.NoError(t, err)

		resp, err := h.HandleEvent(ctx, wsRequest("$default", "A",
			`{"action":"subscribe","channel":"inventory"}`, nil))
		assert.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode)
		assert.Equal(t, 0, subs.len())

		resp, err = h.HandleEvent(ctx, wsRequest("$default", "A",
			`{"action":"broadcast","channel":"inventory","entityType":"show","payload":{}}`, nil))
		assert.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode)
	})

	t.Run("unsubscribe stops delivery", func(t *testing.T) {
		h, _, _, pusher := newBroker()

		_, err := h.HandleEvent(ctx, wsRequest("$connect", "A", "", nil))
		assert.NoError(t, err)
		_, err = h.HandleEvent(ctx, wsRequest("$default", "A",
			`{"action":"subscribe","channel":"inventory","entityType":"show"}`, nil))
		assert.NoError(t, err)

		resp, err := h.HandleEvent(ctx, wsRequest("$default", "A",
			`{"action":"unsubscribe","channel":"inventory","entityType":"show"}`, nil))
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)

		resp, err = h.HandleEvent(ctx, wsRequest("$default", "producer",
			`{"action":"broadcast","channel":"inventory","entityType":"show","eventType":"restock","payload":{}}`, nil))
		assert.NoError(t, err)
		assert.Equal(t, `{"recipients":0}`, resp.Body)

		// the subscribed and unsubscribed acks are all A ever received
		assert.Len(t, pusher.deliveries("A"), 2)
	})

	t.Run("disconnect cascades and later broadcasts reach nobody", func(t *testing.T) {
		h, _, subs, _ := newBroker()

		_, err := h.HandleEvent(ctx, wsRequest("$connect", "A", "", nil))
		assert.NoError(t, err)
		_, err = h.HandleEvent(ctx, wsRequest("$default", "A",
			`{"action":"subscribe","channel":"inventory","entityType":"show","entityId":"S1"}`, nil))
		assert.NoError(t, err)

		resp, err := h.HandleEvent(ctx, wsRequest("$disconnect", "A", "", nil))
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, 0, subs.len())

		resp, err = h.HandleEvent(ctx, wsRequest("$default", "producer",
			`{"action":"broadcast","channel":"inventory","entityType":"show","entityId":"S1","eventType":"slot_booked","payload":{"qty":1}}`, nil))
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, `{"recipients":0}`, resp.Body)
	})

	t.Run("reconnect with a new connection id starts clean", func(t *testing.T) {
		h, _, subs, _ := newBroker()

		_, err := h.HandleEvent(ctx, wsRequest("$connect", "A1", "", map[string]interface{}{"userId": "u1"}))
		assert.NoError(t, err)
		_, err = h.HandleEvent(ctx, wsRequest("$default", "A1",
			`{"action":"subscribe","channel":"inventory","entityType":"show"}`, nil))
		assert.NoError(t, err)
		_, err = h.HandleEvent(ctx, wsRequest("$disconnect", "A1", "", nil))
		assert.NoError(t, err)

		_, err = h.HandleEvent(ctx, wsRequest("$connect", "A2", "", map[string]interface{}{"userId": "u1"}))
		assert.NoError(t, err)

		ok, err := h.Registry.Exists(ctx, "A2")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 0, subs.len())
	})

	t.Run("unknown actions and routes are rejected", func(t *testing.T) {
		h, _, _, _ := newBroker()

		resp, err := h.HandleEvent(ctx, wsRequest("$default", "A", `{"action":"dance","channel":"c","entityType":"e"}`, nil))
		assert.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode)

		resp, err = h.HandleEvent(ctx, wsRequest("$mystery", "A", "", nil))
		assert.NoError(t, err)
		assert.Equal(t, 400, resp.StatusCode)
	})
}
