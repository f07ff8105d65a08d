package repositories

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/socialfeed/backend/internal/models"
)

func TestPostDocumentStoresLikesAsArray(t *testing.T) {
	now := time.Date(2024, time.May, 4, 12, 0, 0, 0, time.UTC)
	post := models.NewPost("p1", models.User{ID: "u1", FirstName: "Ada"}, "hello", "pic.jpg", now)
	post.Likes.Add("u3")
	post.Likes.Add("u2")

	raw, err := bson.Marshal(newPostDocument(post))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded bson.M
	if err := bson.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	likes, ok := decoded["likes"].(bson.A)
	if !ok {
		t.Fatalf("expected likes array, got %T", decoded["likes"])
	}
	if len(likes) != 2 || likes[0] != "u2" || likes[1] != "u3" {
		t.Fatalf("unexpected likes %v", likes)
	}
	if decoded["_id"] != "p1" || decoded["userId"] != "u1" {
		t.Fatalf("unexpected identity fields %v", decoded)
	}
}

func TestDocumentModelsNormaliseNilSlices(t *testing.T) {
	user := userDocument{ID: "u1"}.model()
	if user.Friends == nil {
		t.Fatal("expected friends to be non-nil")
	}

	post := postDocument{ID: "p1", Likes: []string{"a", "a", "b"}}.model()
	if post.Comments == nil {
		t.Fatal("expected comments to be non-nil")
	}
	if post.Likes.Len() != 2 || !post.Likes.Has("a") || !post.Likes.Has("b") {
		t.Fatalf("unexpected like set %v", post.Likes.IDs())
	}

	doc := newUserDocument(models.User{ID: "u2"})
	if doc.Friends == nil {
		t.Fatal("expected stored friends to be an empty array")
	}
}

func TestMongoUpdateDocuments(t *testing.T) {
	now := time.Date(2024, time.May, 4, 12, 0, 0, 0, time.UTC)

	update := setFriends(nil, now)
	set, ok := update["$set"].(bson.M)
	if !ok {
		t.Fatalf("expected $set document, got %v", update)
	}
	if friends, ok := set["friends"].([]string); !ok || friends == nil || len(friends) != 0 {
		t.Fatalf("expected empty friends array, got %#v", set["friends"])
	}
	if set["updatedAt"] != now {
		t.Fatalf("expected updatedAt %v, got %v", now, set["updatedAt"])
	}

	update = setLikes(models.NewLikeSet("b", "a"), now)
	set = update["$set"].(bson.M)
	likes := set["likes"].([]string)
	if len(likes) != 2 || likes[0] != "a" || likes[1] != "b" {
		t.Fatalf("unexpected likes %v", likes)
	}

	if filter := byID("x"); filter["_id"] != "x" {
		t.Fatalf("unexpected filter %v", filter)
	}
}

func TestOrderUsersFollowsRequestedIDs(t *testing.T) {
	found := map[string]models.User{
		"a": {ID: "a"},
		"c": {ID: "c"},
	}

	users := orderUsers([]string{"c", "missing", "a"}, found)
	if len(users) != 2 || users[0].ID != "c" || users[1].ID != "a" {
		t.Fatalf("unexpected order %+v", users)
	}
}

func TestSessionDocumentUsesTokenAsID(t *testing.T) {
	expires := time.Date(2024, time.May, 5, 0, 0, 0, 0, time.UTC)
	raw, err := bson.Marshal(sessionDocument{RefreshToken: "tok", UserID: "u1", ExpiresAt: expires})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded bson.M
	if err := bson.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["_id"] != "tok" || decoded["userId"] != "u1" {
		t.Fatalf("unexpected session document %v", decoded)
	}
	if _, ok := decoded["expiresAt"]; !ok {
		t.Fatal("expected expiresAt for the TTL index")
	}
}
