package matineews

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi/apigatewaymanagementapiiface"
)

// Pusher delivers a message to one session. A gone error (see IsGone) means
// the session is permanently unreachable; anything else is transient.
type Pusher interface {
	Push(ctx context.Context, endpoint, connectionID string, data []byte) error
}

// ManagementPusher pushes via the API Gateway Management API, caching one
// client per endpoint.
type ManagementPusher struct {
	mu      sync.RWMutex
	clients map[string]apigatewaymanagementapiiface.ApiGatewayManagementApiAPI
}

func (p *ManagementPusher) Push(ctx context.Context, endpoint, connectionID string, data []byte) error {
	client := p.getClient(endpoint)
	_, err := client.PostToConnectionWithContext(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         data,
	})
	return err
}

func (p *ManagementPusher) getClient(endpoint string) apigatewaymanagementapiiface.ApiGatewayManagementApiAPI {
	p.mu.RLock()
	if client, ok := p.clients[endpoint]; ok {
		p.mu.RUnlock()
		return client
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if client, ok := p.clients[endpoint]; ok {
		return client
	}

	if p.clients == nil {
		p.clients = make(map[string]apigatewaymanagementapiiface.ApiGatewayManagementApiAPI)
	}

	sess := session.Must(session.NewSession(aws.NewConfig().WithEndpoint(endpoint)))
	client := apigatewaymanagementapi.New(sess)
	p.clients[endpoint] = client
	return client
}
