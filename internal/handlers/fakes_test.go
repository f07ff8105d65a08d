package handlers

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/socialfeed/backend/internal/auth"
	"github.com/socialfeed/backend/internal/models"
	"github.com/socialfeed/backend/internal/repositories"
	"github.com/socialfeed/backend/internal/social"
)

type inMemoryUserStore struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newInMemoryUserStore() *inMemoryUserStore {
	return &inMemoryUserStore{users: make(map[string]models.User)}
}

func (s *inMemoryUserStore) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.Email]; exists {
		return repositories.ErrConflict
	}
	s.users[user.Email] = user
	return nil
}

func (s *inMemoryUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[email]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

type signerStub struct{}

func (signerStub) Sign(_ context.Context, key string, ttl time.Duration) (models.SignedURL, error) {
	return models.SignedURL{Key: key, URL: "https://cdn.test/" + key + "?sig=1", ExpiresAt: time.Now().Add(ttl)}, nil
}

type pictureStub struct {
	stored []string
	err    error
}

func (p *pictureStub) Store(_ context.Context, prefix string, r io.Reader) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	p.stored = append(p.stored, string(data))
	return prefix + "/stored.jpg", nil
}

type relationshipsStub struct {
	users   map[string]models.User
	toggled [][2]string
	err     error
}

func (s *relationshipsStub) GetUser(_ context.Context, id string) (models.User, error) {
	if s.err != nil {
		return models.User{}, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return models.User{}, social.ErrNotFound
	}
	return u, nil
}

func (s *relationshipsStub) ListFriends(ctx context.Context, userID string) ([]models.FriendView, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := []models.FriendView{}
	for _, id := range u.Friends {
		if f, ok := s.users[id]; ok {
			views = append(views, f.View())
		}
	}
	return views, nil
}

func (s *relationshipsStub) ToggleFriend(ctx context.Context, userID, otherID string) ([]models.FriendView, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.toggled = append(s.toggled, [2]string{userID, otherID})
	return s.ListFriends(ctx, userID)
}

type feedStub struct {
	posts   []models.Post
	created []social.NewPostInput
	err     error
}

func (f *feedStub) decorated(d *social.Decorator, posts []models.Post) []social.DecoratedPost {
	out, _ := social.Decorate(context.Background(), d, posts, models.MediaPicture, models.MediaUserPicture)
	return out
}

func (f *feedStub) ListFeed(context.Context) ([]social.DecoratedPost, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.decorated(testDecorator(), f.posts), nil
}

func (f *feedStub) ListUserPosts(_ context.Context, userID string) ([]social.DecoratedPost, error) {
	if f.err != nil {
		return nil, f.err
	}
	var mine []models.Post
	for _, p := range f.posts {
		if p.UserID == userID {
			mine = append(mine, p)
		}
	}
	return f.decorated(testDecorator(), mine), nil
}

func (f *feedStub) CreatePost(ctx context.Context, in social.NewPostInput) ([]social.DecoratedPost, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, in)
	f.posts = append(f.posts, models.Post{ID: "new", UserID: in.AuthorID, Description: strings.TrimSpace(in.Description), PicturePath: in.PicturePath, Likes: models.NewLikeSet()})
	return f.ListFeed(ctx)
}

type likesStub struct {
	calls [][2]string
	err   error
}

func (l *likesStub) ToggleLike(_ context.Context, postID, userID string) (social.DecoratedPost, error) {
	if l.err != nil {
		return social.DecoratedPost{}, l.err
	}
	l.calls = append(l.calls, [2]string{postID, userID})
	post := models.Post{ID: postID, PicturePath: "p.jpg", UserPicturePath: "a.jpg", Likes: models.NewLikeSet(userID)}
	out, _ := social.DecorateOne(context.Background(), testDecorator(), post, models.MediaPicture, models.MediaUserPicture)
	return out, nil
}

func testDecorator() *social.Decorator {
	return social.NewDecorator(signerStub{}, social.DecoratorConfig{})
}

func newTestSessions() *auth.Manager {
	manager, err := auth.NewManager("handler-secret", time.Minute, time.Hour, auth.NewInMemorySessionStore())
	if err != nil {
		panic(err)
	}
	return manager
}
