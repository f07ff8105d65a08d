package handlers

import (
	"context"

	"github.com/socialfeed/backend/internal/models"
	"github.com/socialfeed/backend/internal/social"
)

type userResponse struct {
	models.User
	ImageURL string `json:"imageUrl,omitempty"`
}

type friendResponse struct {
	models.FriendView
	FriendImageURL string `json:"friendImageUrl,omitempty"`
}

type postResponse struct {
	models.Post
	ImageURL     string `json:"imageUrl,omitempty"`
	UserImageURL string `json:"userImageUrl,omitempty"`
}

func urlOf[R social.Referencer](d social.Decorated[R], field models.MediaField) string {
	if u, ok := d.URL(field); ok {
		return u.URL
	}
	return ""
}

func newUserResponse(d social.Decorated[models.User]) userResponse {
	return userResponse{User: d.Record, ImageURL: urlOf(d, models.MediaPicture)}
}

func newPostResponse(d social.DecoratedPost) postResponse {
	return postResponse{
		Post:         d.Record,
		ImageURL:     urlOf(d, models.MediaPicture),
		UserImageURL: urlOf(d, models.MediaUserPicture),
	}
}

func newPostResponses(posts []social.DecoratedPost) []postResponse {
	out := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, newPostResponse(p))
	}
	return out
}

func decorateUser(ctx context.Context, d *social.Decorator, user models.User) userResponse {
	decorated, _ := social.DecorateOne(ctx, d, user, models.MediaPicture)
	return newUserResponse(decorated)
}

func decorateFriends(ctx context.Context, d *social.Decorator, friends []models.FriendView) []friendResponse {
	decorated, _ := social.Decorate(ctx, d, friends, models.MediaPicture)
	out := make([]friendResponse, 0, len(decorated))
	for _, f := range decorated {
		out = append(out, friendResponse{FriendView: f.Record, FriendImageURL: urlOf(f, models.MediaPicture)})
	}
	return out
}
