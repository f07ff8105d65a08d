package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Event types published by the social core.
const (
	TypeFriendToggled = "friend.toggled"
	TypePostLiked     = "post.liked"
	TypePostCreated   = "post.created"
)

// Event is a domain notification. Key selects the partition so events about
// one entity stay ordered.
type Event struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

// FriendToggled is emitted after both friend lists were written.
type FriendToggled struct {
	UserID   string `json:"userId"`
	FriendID string `json:"friendId"`
	Added    bool   `json:"added"`
}

// PostLiked is emitted after a like toggle was stored.
type PostLiked struct {
	PostID string `json:"postId"`
	UserID string `json:"userId"`
	Liked  bool   `json:"liked"`
	Likes  int    `json:"likes"`
}

// PostCreated is emitted after a post was stored.
type PostCreated struct {
	PostID string `json:"postId"`
	UserID string `json:"userId"`
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Encode renders the event as JSON.
func Encode(event Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	return payload, nil
}

// LogPublisher writes events to a logger instead of a broker.
type LogPublisher struct {
	Logger *slog.Logger
}

// Publish logs the event at debug level.
func (p LogPublisher) Publish(_ context.Context, event Event) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("event published", "type", event.Type, "key", event.Key, "data", event.Data)
	return nil
}
