package repositories

import (
	"context"

	"github.com/socialfeed/backend/internal/models"
)

// PostRepository exposes data access for feed posts. List results are in
// insertion order.
type PostRepository interface {
	Create(ctx context.Context, post models.Post) error
	FindAll(ctx context.Context) ([]models.Post, error)
	FindByAuthor(ctx context.Context, userID string) ([]models.Post, error)
	FindByID(ctx context.Context, id string) (models.Post, error)
	UpdateLikes(ctx context.Context, id string, likes models.LikeSet) (models.Post, error)
}
