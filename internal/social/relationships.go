package social

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/socialfeed/backend/internal/events"
	"github.com/socialfeed/backend/internal/logging"
	"github.com/socialfeed/backend/internal/models"
	"github.com/socialfeed/backend/internal/repositories"
)

// RelationshipManager owns the symmetric friend graph.
type RelationshipManager struct {
	users  UserStore
	locker Locker
	opts   Options
}

// NewRelationshipManager constructs a RelationshipManager.
func NewRelationshipManager(users UserStore, locker Locker, opts Options) *RelationshipManager {
	return &RelationshipManager{users: users, locker: locker, opts: opts.withDefaults()}
}

// GetUser loads one user.
func (m *RelationshipManager) GetUser(ctx context.Context, id string) (models.User, error) {
	if strings.TrimSpace(id) == "" {
		return models.User{}, fmt.Errorf("user id is required: %w", ErrInvalidArgument)
	}

	var user models.User
	err := m.call(ctx, "find user", func(ctx context.Context) error {
		var err error
		user, err = m.users.FindByID(ctx, id)
		return err
	})
	return user, err
}

// ListFriends resolves the friend list of userID into display projections.
func (m *RelationshipManager) ListFriends(ctx context.Context, userID string) ([]models.FriendView, error) {
	user, err := m.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return m.resolve(ctx, user.Friends)
}

// ToggleFriend adds otherID to userID's friends and vice versa, or removes
// both sides when they are already friends. It returns userID's resolved
// friend list after the change. Once the change is written the toggle
// succeeds; if the friend details cannot be read back, the views carry ids
// only.
func (m *RelationshipManager) ToggleFriend(ctx context.Context, userID, otherID string) ([]models.FriendView, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(otherID) == "" {
		return nil, fmt.Errorf("both user ids are required: %w", ErrInvalidArgument)
	}
	if userID == otherID {
		return nil, fmt.Errorf("user %s cannot befriend themselves: %w", userID, ErrInvalidArgument)
	}

	ctx, span := logging.StartSpan(ctx, "social.toggle_friend")
	defer span.End()

	friends, added, err := m.toggleLocked(ctx, userID, otherID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	m.opts.Observer.FriendToggled(added)
	m.publish(ctx, events.Event{
		Type: events.TypeFriendToggled,
		Key:  userID,
		Data: events.FriendToggled{UserID: userID, FriendID: otherID, Added: added},
	})

	views, err := m.resolve(ctx, friends)
	if err != nil {
		logging.FromContext(ctx).Warn("friend list read-back failed after toggle",
			slog.String("userId", userID),
			slog.String("otherId", otherID),
			slog.Any("error", err),
		)
		return idViews(friends), nil
	}
	return views, nil
}

func idViews(ids []string) []models.FriendView {
	views := make([]models.FriendView, 0, len(ids))
	for _, id := range ids {
		views = append(views, models.FriendView{ID: id})
	}
	return views
}

func (m *RelationshipManager) toggleLocked(ctx context.Context, userID, otherID string) ([]string, bool, error) {
	var unlock func()
	err := m.call(ctx, "lock users", func(ctx context.Context) error {
		var err error
		unlock, err = m.locker.Lock(ctx, userLockKey(userID), userLockKey(otherID))
		return err
	})
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	var user, other models.User
	err = m.call(ctx, "find users", func(ctx context.Context) error {
		var err error
		if user, err = m.users.FindByID(ctx, userID); err != nil {
			return fmt.Errorf("user %s: %w", userID, err)
		}
		if other, err = m.users.FindByID(ctx, otherID); err != nil {
			return fmt.Errorf("user %s: %w", otherID, err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	added := !user.HasFriend(otherID)
	var userFriends, otherFriends []string
	if added {
		userFriends = user.WithFriend(otherID)
		otherFriends = other.WithFriend(userID)
	} else {
		userFriends = user.WithoutFriend(otherID)
		otherFriends = other.WithoutFriend(userID)
	}

	if err := m.persistPair(ctx, userID, userFriends, otherID, otherFriends); err != nil {
		return nil, false, err
	}
	return userFriends, added, nil
}

// persistPair writes both friend lists, atomically when the store supports it.
func (m *RelationshipManager) persistPair(ctx context.Context, userID string, userFriends []string, otherID string, otherFriends []string) error {
	if pair, ok := m.users.(repositories.FriendPairWriter); ok {
		return m.call(ctx, "update friend pair", func(ctx context.Context) error {
			return pair.UpdateFriendPair(ctx, userID, userFriends, otherID, otherFriends)
		})
	}

	if err := m.call(ctx, "update friends", func(ctx context.Context) error {
		return m.users.UpdateFriends(ctx, userID, userFriends)
	}); err != nil {
		return err
	}

	err := m.call(ctx, "update friends", func(ctx context.Context) error {
		return m.users.UpdateFriends(ctx, otherID, otherFriends)
	})
	if err == nil {
		return nil
	}

	partial := &PartialMutationError{UserID: userID, OtherID: otherID, Written: userID, Err: err}
	m.opts.Observer.PartialMutation()
	logging.FromContext(ctx).Error("friend symmetry broken",
		slog.String("userId", userID),
		slog.String("otherId", otherID),
		slog.String("written", userID),
		slog.Any("error", err),
	)
	return partial
}

func (m *RelationshipManager) resolve(ctx context.Context, ids []string) ([]models.FriendView, error) {
	var users []models.User
	err := m.call(ctx, "find friends", func(ctx context.Context) error {
		var err error
		users, err = m.users.FindByIDs(ctx, ids)
		return err
	})
	if err != nil {
		return nil, err
	}

	views := make([]models.FriendView, 0, len(users))
	for _, u := range users {
		views = append(views, u.View())
	}
	return views, nil
}

func (m *RelationshipManager) call(ctx context.Context, op string, fn func(context.Context) error) error {
	return storeCall(ctx, m.opts.StoreTimeout, op, fn)
}

func (m *RelationshipManager) publish(ctx context.Context, event events.Event) {
	publish(ctx, m.opts, event)
}
