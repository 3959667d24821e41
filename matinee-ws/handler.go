package matineews

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
)

// Handler turns API Gateway WebSocket events into registry and index
// operations. Each connection id is either absent or connected; connect and
// disconnect move between the two, subscribe and unsubscribe require
// connected, and broadcast never transitions the caller.
type Handler struct {
	Registry    *Registry
	Index       *Index
	Broadcaster *Broadcaster
	Pusher      Pusher
	Logger      zerolog.Logger
}

// HandleEvent routes an API Gateway WebSocket event to the appropriate
// handler.
func (h *Handler) HandleEvent(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger := h.Logger.With().
		Str("connection_id", req.RequestContext.ConnectionID).
		Str("route", req.RequestContext.RouteKey).
		Logger()

	switch req.RequestContext.RouteKey {
	case "$connect":
		return h.handleConnect(ctx, logger, req)
	case "$disconnect":
		return h.handleDisconnect(ctx, logger, req)
	case "$default":
		return h.handleMessage(ctx, logger, req)
	default:
		logger.Warn().Str("route", req.RequestContext.RouteKey).Msg("unknown route")
		return events.APIGatewayProxyResponse{StatusCode: 400}, nil
	}
}

func (h *Handler) handleConnect(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connID := req.RequestContext.ConnectionID
	endpoint := callbackEndpoint(req)
	userID, userRole := identityClaim(req)

	if err := h.Registry.Register(ctx, connID, endpoint, userID, userRole); err != nil {
		logger.Error().Err(err).Msg("failed to store connection")
		return events.APIGatewayProxyResponse{StatusCode: 500}, nil
	}

	logger.Info().Str("user_id", userID).Str("user_role", userRole).Msg("connection established")
	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}

func (h *Handler) handleDisconnect(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connID := req.RequestContext.ConnectionID

	if err := h.Registry.Deregister(ctx, connID); err != nil {
		logger.Error().Err(err).Msg("failed to deregister connection")
		return events.APIGatewayProxyResponse{StatusCode: 500}, nil
	}

	logger.Info().Msg("connection closed")
	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}

func (h *Handler) handleMessage(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	msg, err := ParseMessage(req.Body)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid message")
		return events.APIGatewayProxyResponse{StatusCode: 400, Body: err.Error()}, nil
	}

	if err := msg.Validate(); err != nil {
		logger.Warn().Err(err).Str("action", msg.Action).Msg("invalid request")
		return events.APIGatewayProxyResponse{StatusCode: 400, Body: err.Error()}, nil
	}

	connID := req.RequestContext.ConnectionID
	endpoint := callbackEndpoint(req)
	userID, _ := identityClaim(req)

	switch msg.Action {
	case ActionSubscribe:
		return h.handleSubscribe(ctx, logger, connID, endpoint, userID, msg)
	case ActionUnsubscribe:
		return h.handleUnsubscribe(ctx, logger, connID, endpoint, msg)
	case ActionBroadcast:
		return h.handleBroadcast(ctx, logger, msg)
	default:
		logger.Warn().Str("action", msg.Action).Msg("unhandled message action")
		return events.APIGatewayProxyResponse{StatusCode: 400, Body: fmt.Sprintf("unknown action %q", msg.Action)}, nil
	}
}

func (h *Handler) handleSubscribe(ctx context.Context, logger zerolog.Logger, connID, endpoint, userID string, msg *ClientMessage) (events.APIGatewayProxyResponse, error) {
	topic := msg.Topic()
	if err := h.Index.Subscribe(ctx, connID, endpoint, userID, topic); err != nil {
		return h.subscriptionFailure(logger, "subscribe", topic, err)
	}

	if err := h.Pusher.Push(ctx, endpoint, connID, AckMessage(ActionSubscribed, topic)); err != nil {
		logger.Error().Err(err).Msg("failed to send subscribed ack")
	}

	logger.Info().Str("topic", topic.Key()).Msg("subscription created")
	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}

func (h *Handler) handleUnsubscribe(ctx context.Context, logger zerolog.Logger, connID, endpoint string, msg *ClientMessage) (events.APIGatewayProxyResponse, error) {
	topic := msg.Topic()
	if err := h.Index.Unsubscribe(ctx, connID, topic); err != nil {
		return h.subscriptionFailure(logger, "unsubscribe", topic, err)
	}

	if err := h.Pusher.Push(ctx, endpoint, connID, AckMessage(ActionUnsubscribed, topic)); err != nil {
		logger.Error().Err(err).Msg("failed to send unsubscribed ack")
	}

	logger.Info().Str("topic", topic.Key()).Msg("subscription removed")
	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}

func (h *Handler) subscriptionFailure(logger zerolog.Logger, op string, topic Topic, err error) (events.APIGatewayProxyResponse, error) {
	var notConnected *NotConnectedError
	if errors.As(err, &notConnected) {
		logger.Warn().Str("topic", topic.Key()).Msgf("%v rejected: not connected", op)
		return events.APIGatewayProxyResponse{StatusCode: 410, Body: err.Error()}, nil
	}
	logger.Error().Err(err).Str("topic", topic.Key()).Msgf("failed to %v", op)
	return events.APIGatewayProxyResponse{StatusCode: 500}, nil
}

func (h *Handler) handleBroadcast(ctx context.Context, logger zerolog.Logger, msg *ClientMessage) (events.APIGatewayProxyResponse, error) {
	ev := Event{
		Channel:    msg.Channel,
		EntityType: msg.EntityType,
		EntityID:   msg.EntityID,
		EventType:  msg.EventType,
		Payload:    msg.Payload,
	}

	recipients, err := h.Broadcaster.Broadcast(ctx, ev)
	if err != nil {
		logger.Error().Err(err).Msg("broadcast failed")
		return events.APIGatewayProxyResponse{StatusCode: 500}, nil
	}

	logger.Info().Str("topic", ev.Topic().Key()).Int("recipients", recipients).Msg("broadcast dispatched")
	return events.APIGatewayProxyResponse{
		StatusCode: 200,
		Body:       fmt.Sprintf(`{"recipients":%d}`, recipients),
	}, nil
}

// callbackEndpoint is the management API endpoint messages are pushed back
// through for this request's API and stage.
func callbackEndpoint(req events.APIGatewayWebsocketProxyRequest) string {
	return fmt.Sprintf("https://%s/%s", req.RequestContext.DomainName, req.RequestContext.Stage)
}

// identityClaim extracts the verified identity from the handshake authorizer
// context. Claims are opaque to the broker; absent or malformed claims fall
// back to an anonymous guest.
func identityClaim(req events.APIGatewayWebsocketProxyRequest) (userID, userRole string) {
	userID, userRole = "anonymous", "guest"
	claims, ok := req.RequestContext.Authorizer.(map[string]interface{})
	if !ok {
		return
	}
	if v, ok := claims["userId"].(string); ok && v != "" {
		userID = v
	}
	if v, ok := claims["userRole"].(string); ok && v != "" {
		userRole = v
	}
	return
}
