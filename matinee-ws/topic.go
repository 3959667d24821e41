package matineews

// Topic identifies a broadcast audience: a channel, an entity type, and
// optionally one specific entity. Without an EntityID the topic is coarse
// (every entity of the type); with one it is fine (that entity only).
type Topic struct {
	Channel    string
	EntityType string
	EntityID   string
}

// CoarseKey is the index key covering all entities of the type.
func (t Topic) CoarseKey() string {
	return t.Channel + ":" + t.EntityType
}

// FineKey is the index key covering one entity. Only meaningful when an
// EntityID is present.
func (t Topic) FineKey() string {
	return t.Channel + ":" + t.EntityType + ":" + t.EntityID
}

// Key is the key a subscription for this topic is stored under.
func (t Topic) Key() string {
	if t.EntityID != "" {
		return t.FineKey()
	}
	return t.CoarseKey()
}
