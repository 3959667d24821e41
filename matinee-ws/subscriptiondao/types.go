package subscriptiondao

// Subscription represents one session's interest in one topic, stored in
// DynamoDB. SubscriptionID is "{topic}#{connectionId}", so writing the same
// (topic, connection) pair twice overwrites in place and subscribe is
// idempotent.
type Subscription struct {
	SubscriptionID string `dynamodbav:"pk" ddb:"hash"`
	Topic          string `dynamodbav:"topic" ddb:"gsi_hash:TopicIndex"`
	ConnectionID   string `dynamodbav:"connection_id" ddb:"gsi_hash:ConnectionIndex"`
	UserID         string `dynamodbav:"user_id"`
	Endpoint       string `dynamodbav:"endpoint"`
	SubscribedAt   int64  `dynamodbav:"subscribed_at"`
	TTL            int64  `dynamodbav:"ttl"`
}

// Key derives the primary key for a (topic, connection) pair.
func Key(topic, connectionID string) string {
	return topic + "#" + connectionID
}
