package repositories

import (
	"context"

	"github.com/socialfeed/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	UpdateFriends(ctx context.Context, id string, friends []string) error
}

// FriendPairWriter is implemented by stores that can replace two friend lists
// in a single transaction.
type FriendPairWriter interface {
	UpdateFriendPair(ctx context.Context, userID string, userFriends []string, otherID string, otherFriends []string) error
}
