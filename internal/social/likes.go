package social

import (
	"context"
	"fmt"
	"strings"

	"github.com/socialfeed/backend/internal/events"
	"github.com/socialfeed/backend/internal/logging"
	"github.com/socialfeed/backend/internal/models"
)

// LikeToggleEngine flips per-user likes on posts.
type LikeToggleEngine struct {
	posts     PostStore
	locker    Locker
	decorator *Decorator
	opts      Options
}

// NewLikeToggleEngine constructs a LikeToggleEngine.
func NewLikeToggleEngine(posts PostStore, locker Locker, decorator *Decorator, opts Options) *LikeToggleEngine {
	return &LikeToggleEngine{posts: posts, locker: locker, decorator: decorator, opts: opts.withDefaults()}
}

// ToggleLike adds userID to the post's likes, or removes it when present,
// and returns the stored post decorated for display. The user id is not
// checked against the user store.
func (e *LikeToggleEngine) ToggleLike(ctx context.Context, postID, userID string) (DecoratedPost, error) {
	if strings.TrimSpace(postID) == "" {
		return DecoratedPost{}, fmt.Errorf("post id is required: %w", ErrInvalidArgument)
	}
	if strings.TrimSpace(userID) == "" {
		return DecoratedPost{}, fmt.Errorf("user id is required: %w", ErrInvalidArgument)
	}

	ctx, span := logging.StartSpan(ctx, "social.toggle_like")
	defer span.End()

	post, liked, err := e.toggleLocked(ctx, postID, userID)
	if err != nil {
		span.RecordError(err)
		return DecoratedPost{}, err
	}

	e.opts.Observer.LikeToggled(liked)
	publish(ctx, e.opts, events.Event{
		Type: events.TypePostLiked,
		Key:  postID,
		Data: events.PostLiked{PostID: postID, UserID: userID, Liked: liked, Likes: post.Likes.Len()},
	})

	decorated, _ := DecorateOne(ctx, e.decorator, post, models.MediaPicture, models.MediaUserPicture)
	return decorated, nil
}

func (e *LikeToggleEngine) toggleLocked(ctx context.Context, postID, userID string) (models.Post, bool, error) {
	var unlock func()
	err := storeCall(ctx, e.opts.StoreTimeout, "lock post", func(ctx context.Context) error {
		var err error
		unlock, err = e.locker.Lock(ctx, postLockKey(postID))
		return err
	})
	if err != nil {
		return models.Post{}, false, err
	}
	defer unlock()

	var post models.Post
	err = storeCall(ctx, e.opts.StoreTimeout, "find post", func(ctx context.Context) error {
		var err error
		post, err = e.posts.FindByID(ctx, postID)
		return err
	})
	if err != nil {
		return models.Post{}, false, err
	}

	likes := post.Likes.Clone()
	liked := likes.Toggle(userID)

	var updated models.Post
	err = storeCall(ctx, e.opts.StoreTimeout, "update likes", func(ctx context.Context) error {
		var err error
		updated, err = e.posts.UpdateLikes(ctx, postID, likes)
		return err
	})
	if err != nil {
		return models.Post{}, false, err
	}
	return updated, liked, nil
}
