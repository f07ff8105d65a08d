package handlers

import (
	"context"
	"io"

	"github.com/socialfeed/backend/internal/models"
	"github.com/socialfeed/backend/internal/social"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
}

// SessionManager issues and refreshes authentication tokens for users.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Verify(accessToken string) (string, error)
	Revoke(ctx context.Context, refreshToken string)
}

// PictureStore normalises an uploaded picture and returns its object key.
type PictureStore interface {
	Store(ctx context.Context, prefix string, r io.Reader) (string, error)
}

// Relationships serves user lookups and the friend graph.
type Relationships interface {
	GetUser(ctx context.Context, id string) (models.User, error)
	ListFriends(ctx context.Context, userID string) ([]models.FriendView, error)
	ToggleFriend(ctx context.Context, userID, otherID string) ([]models.FriendView, error)
}

// Likes toggles likes on posts.
type Likes interface {
	ToggleLike(ctx context.Context, postID, userID string) (social.DecoratedPost, error)
}

// Feed lists and creates posts.
type Feed interface {
	ListFeed(ctx context.Context) ([]social.DecoratedPost, error)
	ListUserPosts(ctx context.Context, userID string) ([]social.DecoratedPost, error)
	CreatePost(ctx context.Context, in social.NewPostInput) ([]social.DecoratedPost, error)
}
