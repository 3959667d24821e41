package connectiondao

// Connection represents one reachable WebSocket session stored in DynamoDB.
type Connection struct {
	ConnectionID string `dynamodbav:"pk" ddb:"hash"`
	UserID       string `dynamodbav:"user_id"`
	UserRole     string `dynamodbav:"user_role"`
	Endpoint     string `dynamodbav:"endpoint"`
	ConnectedAt  int64  `dynamodbav:"connected_at"`
	TTL          int64  `dynamodbav:"ttl"`
}
