package connectiondao

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/savaki/ddb"
)

// DAO provides access to the WebSocket connections table.
type DAO struct {
	table     *ddb.Table
	api       dynamodbiface.DynamoDBAPI
	tableName string
}

// New creates a new connections DAO.
func New(api dynamodbiface.DynamoDBAPI, tableName string) *DAO {
	return &DAO{
		table:     ddb.New(api).MustTable(tableName, Connection{}),
		api:       api,
		tableName: tableName,
	}
}

// Put stores a connection record, overwriting any existing record with the
// same connection id.
func (d *DAO) Put(ctx context.Context, conn Connection) error {
	return d.table.Put(conn).RunWithContext(ctx)
}

// Get retrieves a connection record by ID.
func (d *DAO) Get(ctx context.Context, connectionID string) (*Connection, error) {
	var conn Connection
	if err := d.table.Get(connectionID).ScanWithContext(ctx, &conn); err != nil {
		if ddb.IsItemNotFoundError(err) {
			return nil, fmt.Errorf("connection %v not found", connectionID)
		}
		return nil, fmt.Errorf("failed to get connection %v: %w", connectionID, err)
	}
	return &conn, nil
}

// Exists reports whether a connection record is present.
func (d *DAO) Exists(ctx context.Context, connectionID string) (bool, error) {
	var conn Connection
	if err := d.table.Get(connectionID).ScanWithContext(ctx, &conn); err != nil {
		if ddb.IsItemNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get connection %v: %w", connectionID, err)
	}
	return true, nil
}

// Delete removes a connection record by ID. No-op if the id is unknown.
func (d *DAO) Delete(ctx context.Context, connectionID string) error {
	return d.table.Delete(connectionID).RunWithContext(ctx)
}

// ExpiredBefore scans for connection records whose TTL has passed. DynamoDB
// expires TTL items lazily, so a sweep needs to find them itself.
func (d *DAO) ExpiredBefore(ctx context.Context, cutoff time.Time) ([]Connection, error) {
	var (
		conns   []Connection
		lastKey map[string]*dynamodb.AttributeValue
	)
	for {
		input := &dynamodb.ScanInput{
			TableName:        aws.String(d.tableName),
			FilterExpression: aws.String("#ttl < :cutoff"),
			ExpressionAttributeNames: map[string]*string{
				"#ttl": aws.String("ttl"),
			},
			ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
				":cutoff": {N: aws.String(strconv.FormatInt(cutoff.Unix(), 10))},
			},
			ExclusiveStartKey: lastKey,
		}

		output, err := d.api.ScanWithContext(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expired connections: %w", err)
		}

		for _, item := range output.Items {
			var conn Connection
			if err := dynamodbattribute.UnmarshalMap(item, &conn); err != nil {
				return nil, fmt.Errorf("failed to unmarshal connection: %w", err)
			}
			conns = append(conns, conn)
		}

		if output.LastEvaluatedKey == nil {
			return conns, nil
		}
		lastKey = output.LastEvaluatedKey
	}
}
