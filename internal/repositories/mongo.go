package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/socialfeed/backend/internal/auth"
	"github.com/socialfeed/backend/internal/models"
)

const (
	usersCollection    = "users"
	postsCollection    = "posts"
	sessionsCollection = "sessions"
)

type userDocument struct {
	ID            string    `bson:"_id"`
	FirstName     string    `bson:"firstName"`
	LastName      string    `bson:"lastName"`
	Email         string    `bson:"email"`
	Password      string    `bson:"password"`
	Location      string    `bson:"location"`
	Occupation    string    `bson:"occupation"`
	PicturePath   string    `bson:"picturePath"`
	Friends       []string  `bson:"friends"`
	ViewedProfile int       `bson:"viewedProfile"`
	Impressions   int       `bson:"impressions"`
	CreatedAt     time.Time `bson:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt"`
}

type postDocument struct {
	ID              string    `bson:"_id"`
	UserID          string    `bson:"userId"`
	FirstName       string    `bson:"firstName"`
	LastName        string    `bson:"lastName"`
	Location        string    `bson:"location"`
	Description     string    `bson:"description"`
	PicturePath     string    `bson:"picturePath"`
	UserPicturePath string    `bson:"userPicturePath"`
	Likes           []string  `bson:"likes"`
	Comments        []string  `bson:"comments"`
	CreatedAt       time.Time `bson:"createdAt"`
	UpdatedAt       time.Time `bson:"updatedAt"`
}

func newUserDocument(user models.User) userDocument {
	friends := user.Friends
	if friends == nil {
		friends = []string{}
	}
	return userDocument{
		ID:            user.ID,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Email:         user.Email,
		Password:      user.Password,
		Location:      user.Location,
		Occupation:    user.Occupation,
		PicturePath:   user.PicturePath,
		Friends:       friends,
		ViewedProfile: user.ViewedProfile,
		Impressions:   user.Impressions,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}

func (d userDocument) model() models.User {
	friends := d.Friends
	if friends == nil {
		friends = []string{}
	}
	return models.User{
		ID:            d.ID,
		FirstName:     d.FirstName,
		LastName:      d.LastName,
		Email:         d.Email,
		Password:      d.Password,
		Location:      d.Location,
		Occupation:    d.Occupation,
		PicturePath:   d.PicturePath,
		Friends:       friends,
		ViewedProfile: d.ViewedProfile,
		Impressions:   d.Impressions,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
}

func newPostDocument(post models.Post) postDocument {
	comments := post.Comments
	if comments == nil {
		comments = []string{}
	}
	return postDocument{
		ID:              post.ID,
		UserID:          post.UserID,
		FirstName:       post.FirstName,
		LastName:        post.LastName,
		Location:        post.Location,
		Description:     post.Description,
		PicturePath:     post.PicturePath,
		UserPicturePath: post.UserPicturePath,
		Likes:           post.Likes.IDs(),
		Comments:        comments,
		CreatedAt:       post.CreatedAt,
		UpdatedAt:       post.UpdatedAt,
	}
}

func (d postDocument) model() models.Post {
	comments := d.Comments
	if comments == nil {
		comments = []string{}
	}
	return models.Post{
		ID:              d.ID,
		UserID:          d.UserID,
		FirstName:       d.FirstName,
		LastName:        d.LastName,
		Location:        d.Location,
		Description:     d.Description,
		PicturePath:     d.PicturePath,
		UserPicturePath: d.UserPicturePath,
		Likes:           models.NewLikeSet(d.Likes...),
		Comments:        comments,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
	}
}

func byID(id string) bson.M {
	return bson.M{"_id": id}
}

func setFriends(friends []string, now time.Time) bson.M {
	if friends == nil {
		friends = []string{}
	}
	return bson.M{"$set": bson.M{"friends": friends, "updatedAt": now}}
}

func setLikes(likes models.LikeSet, now time.Time) bson.M {
	return bson.M{"$set": bson.M{"likes": likes.IDs(), "updatedAt": now}}
}

// insertionOrder sorts posts the way they were created.
var insertionOrder = bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}

// EnsureMongoIndexes creates the indexes the repositories rely on.
func EnsureMongoIndexes(ctx context.Context, database *mongo.Database) error {
	_, err := database.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users email index: %w", err)
	}

	_, err = database.Collection(postsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create posts author index: %w", err)
	}

	_, err = database.Collection(sessionsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("create sessions expiry index: %w", err)
	}
	return nil
}

// MongoUserRepository stores users as documents.
type MongoUserRepository struct {
	users *mongo.Collection
	now   func() time.Time
}

// NewMongoUserRepository constructs a user repository over the users collection.
func NewMongoUserRepository(database *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{
		users: database.Collection(usersCollection),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a new user document.
func (r *MongoUserRepository) Create(ctx context.Context, user models.User) error {
	if _, err := r.users.InsertOne(ctx, newUserDocument(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindByID fetches a user by identifier.
func (r *MongoUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, byID(id))
}

// FindByEmail fetches a user by email address.
func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// FindByIDs fetches users in the order of ids, skipping unknown ids.
func (r *MongoUserRepository) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	cursor, err := r.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	found := make(map[string]models.User, len(docs))
	for _, doc := range docs {
		found[doc.ID] = doc.model()
	}
	return orderUsers(ids, found), nil
}

// UpdateFriends replaces the friend list of one user.
func (r *MongoUserRepository) UpdateFriends(ctx context.Context, id string, friends []string) error {
	res, err := r.users.UpdateOne(ctx, byID(id), setFriends(friends, r.now()))
	if err != nil {
		return fmt.Errorf("update friends: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	var doc userDocument
	if err := r.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return doc.model(), nil
}

// MongoPostRepository stores posts as documents.
type MongoPostRepository struct {
	posts *mongo.Collection
	now   func() time.Time
}

// NewMongoPostRepository constructs a post repository over the posts collection.
func NewMongoPostRepository(database *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{
		posts: database.Collection(postsCollection),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a new post document.
func (r *MongoPostRepository) Create(ctx context.Context, post models.Post) error {
	if _, err := r.posts.InsertOne(ctx, newPostDocument(post)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// FindAll returns every post in insertion order.
func (r *MongoPostRepository) FindAll(ctx context.Context) ([]models.Post, error) {
	return r.find(ctx, bson.M{})
}

// FindByAuthor returns the posts written by userID.
func (r *MongoPostRepository) FindByAuthor(ctx context.Context, userID string) ([]models.Post, error) {
	return r.find(ctx, bson.M{"userId": userID})
}

// FindByID fetches one post.
func (r *MongoPostRepository) FindByID(ctx context.Context, id string) (models.Post, error) {
	var doc postDocument
	if err := r.posts.FindOne(ctx, byID(id)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Post{}, ErrNotFound
		}
		return models.Post{}, fmt.Errorf("find post: %w", err)
	}
	return doc.model(), nil
}

// UpdateLikes replaces the like set and returns the updated document.
func (r *MongoPostRepository) UpdateLikes(ctx context.Context, id string, likes models.LikeSet) (models.Post, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc postDocument
	if err := r.posts.FindOneAndUpdate(ctx, byID(id), setLikes(likes, r.now()), opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Post{}, ErrNotFound
		}
		return models.Post{}, fmt.Errorf("update post likes: %w", err)
	}
	return doc.model(), nil
}

func (r *MongoPostRepository) find(ctx context.Context, filter bson.M) ([]models.Post, error) {
	cursor, err := r.posts.Find(ctx, filter, options.Find().SetSort(insertionOrder))
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []postDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}

	posts := make([]models.Post, 0, len(docs))
	for _, doc := range docs {
		posts = append(posts, doc.model())
	}
	return posts, nil
}

var _ UserRepository = (*MongoUserRepository)(nil)
var _ PostRepository = (*MongoPostRepository)(nil)

type sessionDocument struct {
	RefreshToken string    `bson:"_id"`
	UserID       string    `bson:"userId"`
	ExpiresAt    time.Time `bson:"expiresAt"`
}

// MongoSessionStore persists refresh tokens as documents. Expired documents
// are reaped by the TTL index created in EnsureMongoIndexes.
type MongoSessionStore struct {
	sessions *mongo.Collection
}

// NewMongoSessionStore constructs a session store over the sessions collection.
func NewMongoSessionStore(database *mongo.Database) *MongoSessionStore {
	return &MongoSessionStore{sessions: database.Collection(sessionsCollection)}
}

// Save stores or replaces a session record.
func (s *MongoSessionStore) Save(ctx context.Context, session auth.Session) error {
	doc := sessionDocument{RefreshToken: session.RefreshToken, UserID: session.UserID, ExpiresAt: session.ExpiresAt.UTC()}
	_, err := s.sessions.ReplaceOne(ctx, byID(session.RefreshToken), doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Find loads a session by its refresh token.
func (s *MongoSessionStore) Find(ctx context.Context, refreshToken string) (auth.Session, error) {
	var doc sessionDocument
	if err := s.sessions.FindOne(ctx, byID(refreshToken)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return auth.Session{}, auth.ErrSessionNotFound
		}
		return auth.Session{}, fmt.Errorf("find session: %w", err)
	}
	return auth.Session{RefreshToken: doc.RefreshToken, UserID: doc.UserID, ExpiresAt: doc.ExpiresAt.UTC()}, nil
}

// Delete removes a session by its refresh token.
func (s *MongoSessionStore) Delete(ctx context.Context, refreshToken string) error {
	res, err := s.sessions.DeleteOne(ctx, byID(refreshToken))
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if res.DeletedCount == 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}

var _ auth.SessionStore = (*MongoSessionStore)(nil)
