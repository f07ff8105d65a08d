package social

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/socialfeed/backend/internal/events"
	"github.com/socialfeed/backend/internal/models"
)

// FeedAssembler reads posts and decorates them for display.
type FeedAssembler struct {
	posts     PostStore
	users     UserStore
	decorator *Decorator
	opts      Options
	newID     func() string
}

// NewFeedAssembler constructs a FeedAssembler.
func NewFeedAssembler(posts PostStore, users UserStore, decorator *Decorator, opts Options) *FeedAssembler {
	return &FeedAssembler{
		posts:     posts,
		users:     users,
		decorator: decorator,
		opts:      opts.withDefaults(),
		newID:     uuid.NewString,
	}
}

// ListFeed returns every post in repository order.
func (f *FeedAssembler) ListFeed(ctx context.Context) ([]DecoratedPost, error) {
	var posts []models.Post
	err := storeCall(ctx, f.opts.StoreTimeout, "list posts", func(ctx context.Context) error {
		var err error
		posts, err = f.posts.FindAll(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return f.decorate(ctx, posts), nil
}

// ListUserPosts returns the posts authored by userID in repository order.
func (f *FeedAssembler) ListUserPosts(ctx context.Context, userID string) ([]DecoratedPost, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required: %w", ErrInvalidArgument)
	}

	var posts []models.Post
	err := storeCall(ctx, f.opts.StoreTimeout, "list user posts", func(ctx context.Context) error {
		var err error
		posts, err = f.posts.FindByAuthor(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return f.decorate(ctx, posts), nil
}

// NewPostInput describes a post about to be created.
type NewPostInput struct {
	AuthorID    string
	Description string
	PicturePath string
}

// CreatePost stores a post carrying a snapshot of the author's display
// fields and returns the full decorated feed.
func (f *FeedAssembler) CreatePost(ctx context.Context, in NewPostInput) ([]DecoratedPost, error) {
	if strings.TrimSpace(in.AuthorID) == "" {
		return nil, fmt.Errorf("author id is required: %w", ErrInvalidArgument)
	}

	var author models.User
	err := storeCall(ctx, f.opts.StoreTimeout, "find author", func(ctx context.Context) error {
		var err error
		author, err = f.users.FindByID(ctx, in.AuthorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	post := models.NewPost(f.newID(), author, strings.TrimSpace(in.Description), in.PicturePath, f.opts.Now())
	if err := storeCall(ctx, f.opts.StoreTimeout, "create post", func(ctx context.Context) error {
		return f.posts.Create(ctx, post)
	}); err != nil {
		return nil, err
	}

	publish(ctx, f.opts, events.Event{
		Type: events.TypePostCreated,
		Key:  post.ID,
		Data: events.PostCreated{PostID: post.ID, UserID: author.ID},
	})

	return f.ListFeed(ctx)
}

func (f *FeedAssembler) decorate(ctx context.Context, posts []models.Post) []DecoratedPost {
	decorated, _ := Decorate(ctx, f.decorator, posts, models.MediaPicture, models.MediaUserPicture)
	return decorated
}
