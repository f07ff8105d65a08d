package social

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/socialfeed/backend/internal/events"
	"github.com/socialfeed/backend/internal/models"
	"github.com/socialfeed/backend/internal/repositories"
)

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]models.User

	// failUpdate makes UpdateFriends fail for the listed ids.
	failUpdate map[string]error
	updates    []string
	findErr    error
	// findManyErr fails FindByIDs only, leaving single lookups working.
	findManyErr error
	delay       time.Duration
}

func newMemoryUsers(users ...models.User) *memoryUsers {
	store := &memoryUsers{users: make(map[string]models.User), failUpdate: make(map[string]error)}
	for _, u := range users {
		if u.Friends == nil {
			u.Friends = []string{}
		}
		store.users[u.ID] = u
	}
	return store
}

func (s *memoryUsers) FindByID(ctx context.Context, id string) (models.User, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return models.User{}, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return models.User{}, s.findErr
	}
	u, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	u.Friends = append([]string(nil), u.Friends...)
	return u, nil
}

func (s *memoryUsers) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if s.findManyErr != nil {
		return nil, s.findManyErr
	}
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		u, err := s.FindByID(ctx, id)
		if errors.Is(err, repositories.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *memoryUsers) UpdateFriends(ctx context.Context, id string, friends []string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failUpdate[id]; err != nil {
		return err
	}
	u, ok := s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	u.Friends = append([]string{}, friends...)
	s.users[id] = u
	s.updates = append(s.updates, id)
	return nil
}

func (s *memoryUsers) friendsOf(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.users[id].Friends...)
}

// pairUsers adds the transactional pair capability.
type pairUsers struct {
	*memoryUsers
	pairCalls int
	pairErr   error
}

func (s *pairUsers) UpdateFriendPair(ctx context.Context, userID string, userFriends []string, otherID string, otherFriends []string) error {
	_ = ctx
	s.pairCalls++
	if s.pairErr != nil {
		return s.pairErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, friends := range map[string][]string{userID: userFriends, otherID: otherFriends} {
		u, ok := s.users[id]
		if !ok {
			return repositories.ErrNotFound
		}
		u.Friends = append([]string{}, friends...)
		s.users[id] = u
	}
	return nil
}

type memoryPosts struct {
	mu        sync.Mutex
	order     []string
	posts     map[string]models.Post
	updateErr error
	listErr   error
}

func newMemoryPosts(posts ...models.Post) *memoryPosts {
	store := &memoryPosts{posts: make(map[string]models.Post)}
	for _, p := range posts {
		_ = store.Create(context.Background(), p)
	}
	return store
}

func (s *memoryPosts) Create(ctx context.Context, post models.Post) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.posts[post.ID]; exists {
		return repositories.ErrConflict
	}
	if post.Likes == nil {
		post.Likes = models.NewLikeSet()
	}
	s.order = append(s.order, post.ID)
	s.posts[post.ID] = post
	return nil
}

func (s *memoryPosts) FindAll(ctx context.Context) ([]models.Post, error) {
	return s.filter(func(models.Post) bool { return true })
}

func (s *memoryPosts) FindByAuthor(ctx context.Context, userID string) ([]models.Post, error) {
	return s.filter(func(p models.Post) bool { return p.UserID == userID })
}

func (s *memoryPosts) filter(keep func(models.Post) bool) ([]models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := []models.Post{}
	for _, id := range s.order {
		if p := s.posts[id]; keep(p) {
			p.Likes = p.Likes.Clone()
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memoryPosts) FindByID(ctx context.Context, id string) (models.Post, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return models.Post{}, repositories.ErrNotFound
	}
	p.Likes = p.Likes.Clone()
	return p, nil
}

func (s *memoryPosts) UpdateLikes(ctx context.Context, id string, likes models.LikeSet) (models.Post, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return models.Post{}, s.updateErr
	}
	p, ok := s.posts[id]
	if !ok {
		return models.Post{}, repositories.ErrNotFound
	}
	p.Likes = likes.Clone()
	s.posts[id] = p
	p.Likes = p.Likes.Clone()
	return p, nil
}

// countingSigner issues a distinct URL on every call.
type countingSigner struct {
	calls   atomic.Int64
	fail    map[string]error
	mu      sync.Mutex
	keys    []string
	ttls    []time.Duration
	inGate  chan struct{}
	release chan struct{}
}

func (s *countingSigner) Sign(ctx context.Context, key string, ttl time.Duration) (models.SignedURL, error) {
	n := s.calls.Add(1)
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.ttls = append(s.ttls, ttl)
	s.mu.Unlock()

	if s.inGate != nil {
		s.inGate <- struct{}{}
		select {
		case <-s.release:
		case <-ctx.Done():
			return models.SignedURL{}, ctx.Err()
		}
	}
	if err := s.fail[key]; err != nil {
		return models.SignedURL{}, err
	}
	return models.SignedURL{
		Key:       key,
		URL:       fmt.Sprintf("https://media.example.com/%s?sig=%d", key, n),
		ExpiresAt: time.Date(2024, time.January, 1, 1, 0, 0, 0, time.UTC),
	}, nil
}

func (s *countingSigner) signedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.keys...)
	sort.Strings(out)
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	_ = ctx
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

type recordingObserver struct {
	mu        sync.Mutex
	friends   []bool
	likes     []bool
	requested int
	failed    int
	partials  int
}

func (o *recordingObserver) FriendToggled(added bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.friends = append(o.friends, added)
}

func (o *recordingObserver) LikeToggled(liked bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.likes = append(o.likes, liked)
}

func (o *recordingObserver) MediaSigned(requested, failed int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requested += requested
	o.failed += failed
}

func (o *recordingObserver) PartialMutation() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.partials++
}

type failingLocker struct{ err error }

func (l failingLocker) Lock(context.Context, ...string) (func(), error) {
	return nil, l.err
}

func ids(views []models.FriendView) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.ID)
	}
	return out
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
