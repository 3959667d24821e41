package matineerest

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	matineews "github.com/matinee-live/matinee-go-push/matinee-ws"
	"github.com/matinee-live/matinee-go-push/matinee-ws/publish"
	"github.com/rs/zerolog"
)

// EventPublisher queues a broadcast envelope for fan-out. The Kinesis
// publisher satisfies it.
type EventPublisher interface {
	Send(ctx context.Context, envelope publish.Envelope) error
}

// TopicCounter counts subscriptions for a topic key. The subscriptions DAO
// satisfies it.
type TopicCounter interface {
	Count(ctx context.Context, topic string) (int64, error)
}

// API is the producer-facing HTTP ingress: backend handlers that can't put
// records on the stream directly POST here instead.
type API struct {
	Publisher EventPublisher
	Subs      TopicCounter
	Token     string // shared producer token; empty disables auth (local)
	Logger    zerolog.Logger
}

func (a *API) Routes(r chi.Router) {
	r.Post("/broadcast", a.postBroadcast)
	r.Get("/topics/subscribers", a.getSubscriberCount)
}

func (a *API) postBroadcast(w http.ResponseWriter, req *http.Request) {
	if !a.authorized(req) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid producer token"})
		return
	}

	var envelope publish.Envelope
	if err := json.NewDecoder(req.Body).Decode(&envelope); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	ev := matineews.Event{
		Channel:    envelope.Channel,
		EntityType: envelope.EntityType,
		EntityID:   envelope.EntityID,
		EventType:  envelope.EventType,
		Payload:    envelope.Payload,
	}
	if err := ev.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if err := a.Publisher.Send(req.Context(), envelope); err != nil {
		a.Logger.Error().Err(err).Str("topic", ev.Topic().Key()).Msg("failed to queue broadcast")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to queue broadcast"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (a *API) getSubscriberCount(w http.ResponseWriter, req *http.Request) {
	if !a.authorized(req) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid producer token"})
		return
	}

	topic := matineews.Topic{
		Channel:    req.URL.Query().Get("channel"),
		EntityType: req.URL.Query().Get("entityType"),
		EntityID:   req.URL.Query().Get("entityId"),
	}
	if topic.Channel == "" || topic.EntityType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "channel and entityType are required"})
		return
	}

	count, err := a.Subs.Count(req.Context(), topic.Key())
	if err != nil {
		a.Logger.Error().Err(err).Str("topic", topic.Key()).Msg("failed to count subscribers")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to count subscribers"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"topic":       topic.Key(),
		"subscribers": count,
	})
}

func (a *API) authorized(req *http.Request) bool {
	if a.Token == "" {
		return true
	}
	header := req.Header.Get("Authorization")
	return strings.TrimPrefix(header, "Bearer ") == a.Token
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
