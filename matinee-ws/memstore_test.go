package matineews

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/matinee-live/matinee-go-push/matinee-ws/connectiondao"
	"github.com/matinee-live/matinee-go-push/matinee-ws/subscriptiondao"
	"github.com/rs/zerolog"
)

// memConnections is an in-memory ConnectionStore with the same key semantics
// as the DynamoDB-backed DAO.
type memConnections struct {
	mu    sync.Mutex
	conns map[string]connectiondao.Connection
}

func newMemConnections() *memConnections {
	return &memConnections{conns: map[string]connectiondao.Connection{}}
}

func (m *memConnections) Put(_ context.Context, conn connectiondao.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[conn.ConnectionID] = conn
	return nil
}

func (m *memConnections) Exists(_ context.Context, connectionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.conns[connectionID]
	return ok, nil
}

func (m *memConnections) Delete(_ context.Context, connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, connectionID)
	return nil
}

func (m *memConnections) ExpiredBefore(_ context.Context, cutoff time.Time) ([]connectiondao.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []connectiondao.Connection
	for _, conn := range m.conns {
		if conn.TTL < cutoff.Unix() {
			expired = append(expired, conn)
		}
	}
	return expired, nil
}

func (m *memConnections) get(connectionID string) (connectiondao.Connection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.conns[connectionID]
	return conn, ok
}

// memSubs is an in-memory SubscriptionStore keyed like the DynamoDB table.
type memSubs struct {
	mu   sync.Mutex
	subs map[string]subscriptiondao.Subscription
}

func newMemSubs() *memSubs {
	return &memSubs{subs: map[string]subscriptiondao.Subscription{}}
}

func (m *memSubs) Put(_ context.Context, sub subscriptiondao.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub.SubscriptionID = subscriptiondao.Key(sub.Topic, sub.ConnectionID)
	m.subs[sub.SubscriptionID] = sub
	return nil
}

func (m *memSubs) Delete(_ context.Context, topic, connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, subscriptiondao.Key(topic, connectionID))
	return nil
}

func (m *memSubs) QueryByTopic(_ context.Context, topic string) ([]subscriptiondao.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var subs []subscriptiondao.Subscription
	for _, sub := range m.subs {
		if sub.Topic == topic {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func (m *memSubs) DeleteByConnection(_ context.Context, connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sub := range m.subs {
		if sub.ConnectionID == connectionID {
			delete(m.subs, id)
		}
	}
	return nil
}

func (m *memSubs) Count(_ context.Context, topic string) (int64, error) {
	subs, _ := m.QueryByTopic(context.Background(), topic)
	return int64(len(subs)), nil
}

func (m *memSubs) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// fakePusher records deliveries and simulates per-connection outcomes.
type fakePusher struct {
	mu        sync.Mutex
	gone      map[string]bool
	transient map[string]bool
	pushes    map[string][][]byte
}

func newFakePusher() *fakePusher {
	return &fakePusher{
		gone:      map[string]bool{},
		transient: map[string]bool{},
		pushes:    map[string][][]byte{},
	}
}

func (p *fakePusher) Push(_ context.Context, _ string, connectionID string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gone[connectionID] {
		return awserr.New(apigatewaymanagementapi.ErrCodeGoneException, "connection no longer exists", nil)
	}
	if p.transient[connectionID] {
		return errors.New("server error: 500")
	}
	p.pushes[connectionID] = append(p.pushes[connectionID], data)
	return nil
}

func (p *fakePusher) deliveries(connectionID string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pushes[connectionID]
}

func (p *fakePusher) markGone(connectionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gone[connectionID] = true
}

func (p *fakePusher) markTransient(connectionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transient[connectionID] = true
}

// newBroker wires a registry, index, broadcaster, and handler over the fakes.
func newBroker() (*Handler, *memConnections, *memSubs, *fakePusher) {
	conns := newMemConnections()
	subs := newMemSubs()
	pusher := newFakePusher()
	logger := zerolog.Nop()

	registry := &Registry{Connections: conns, Subs: subs, Logger: logger}
	index := &Index{Registry: registry, Subs: subs}
	broadcaster := &Broadcaster{
		Index:    index,
		Registry: registry,
		Pusher:   pusher,
		Logger:   logger,
	}
	handler := &Handler{
		Registry:    registry,
		Index:       index,
		Broadcaster: broadcaster,
		Pusher:      pusher,
		Logger:      logger,
	}
	return handler, conns, subs, pusher
}
