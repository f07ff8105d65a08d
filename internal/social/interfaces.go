package social

import (
	"context"
	"time"

	"github.com/socialfeed/backend/internal/events"
	"github.com/socialfeed/backend/internal/models"
)

// UserStore is the slice of user persistence the core depends on.
type UserStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	UpdateFriends(ctx context.Context, id string, friends []string) error
}

// PostStore is the slice of post persistence the core depends on.
type PostStore interface {
	Create(ctx context.Context, post models.Post) error
	FindAll(ctx context.Context) ([]models.Post, error)
	FindByAuthor(ctx context.Context, userID string) ([]models.Post, error)
	FindByID(ctx context.Context, id string) (models.Post, error)
	UpdateLikes(ctx context.Context, id string, likes models.LikeSet) (models.Post, error)
}

// MediaSigner issues time-limited read URLs for object-store keys.
type MediaSigner interface {
	Sign(ctx context.Context, key string, ttl time.Duration) (models.SignedURL, error)
}

// Locker serialises work on a set of entity keys. Implementations acquire the
// keys in sorted order so overlapping requests cannot deadlock.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (func(), error)
}

// EventPublisher hands domain events to the messaging layer.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Observer receives counts of core outcomes.
type Observer interface {
	FriendToggled(added bool)
	LikeToggled(liked bool)
	MediaSigned(requested, failed int)
	PartialMutation()
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, events.Event) error { return nil }

type nopObserver struct{}

func (nopObserver) FriendToggled(bool)   {}
func (nopObserver) LikeToggled(bool)     {}
func (nopObserver) MediaSigned(int, int) {}
func (nopObserver) PartialMutation()     {}

// Options carries the collaborators and limits shared by the core services.
type Options struct {
	// StoreTimeout bounds every repository and lock call. Zero means DefaultStoreTimeout.
	StoreTimeout time.Duration
	Publisher    EventPublisher
	Observer     Observer
	Now          func() time.Time
}

// DefaultStoreTimeout applies when Options.StoreTimeout is unset.
const DefaultStoreTimeout = 5 * time.Second

func (o Options) withDefaults() Options {
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = DefaultStoreTimeout
	}
	if o.Publisher == nil {
		o.Publisher = nopPublisher{}
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

func userLockKey(id string) string { return "user:" + id }

func postLockKey(id string) string { return "post:" + id }
