package models

import "time"

// User represents an account within the social feed.
type User struct {
	ID            string    `json:"_id"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	Email         string    `json:"email"`
	Password      string    `json:"-"`
	Location      string    `json:"location"`
	Occupation    string    `json:"occupation"`
	PicturePath   string    `json:"picturePath"`
	Friends       []string  `json:"friends"`
	ViewedProfile int       `json:"viewedProfile"`
	Impressions   int       `json:"impressions"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// HasFriend reports whether id appears in the user's friend list.
func (u User) HasFriend(id string) bool {
	for _, friend := range u.Friends {
		if friend == id {
			return true
		}
	}
	return false
}

// WithFriend returns a copy of the friend list with id appended, unless present.
func (u User) WithFriend(id string) []string {
	if u.HasFriend(id) {
		return append([]string(nil), u.Friends...)
	}
	out := make([]string, 0, len(u.Friends)+1)
	out = append(out, u.Friends...)
	return append(out, id)
}

// WithoutFriend returns a copy of the friend list with every occurrence of id removed.
func (u User) WithoutFriend(id string) []string {
	out := make([]string, 0, len(u.Friends))
	for _, friend := range u.Friends {
		if friend != id {
			out = append(out, friend)
		}
	}
	return out
}

// FriendView is the display projection of a friend.
type FriendView struct {
	ID          string `json:"_id"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Occupation  string `json:"occupation"`
	Location    string `json:"location"`
	PicturePath string `json:"picturePath"`
}

// View projects the user into its friend display shape.
func (u User) View() FriendView {
	return FriendView{
		ID:          u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Occupation:  u.Occupation,
		Location:    u.Location,
		PicturePath: u.PicturePath,
	}
}

// Post is a feed entry. The author fields are a snapshot taken when the post
// was created and are never refreshed from the User record.
type Post struct {
	ID              string    `json:"_id"`
	UserID          string    `json:"userId"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	Location        string    `json:"location"`
	Description     string    `json:"description"`
	PicturePath     string    `json:"picturePath"`
	UserPicturePath string    `json:"userPicturePath"`
	Likes           LikeSet   `json:"likes"`
	Comments        []string  `json:"comments"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// NewPost builds a post authored by the given user, copying the author snapshot.
func NewPost(id string, author User, description, picturePath string, now time.Time) Post {
	return Post{
		ID:              id,
		UserID:          author.ID,
		FirstName:       author.FirstName,
		LastName:        author.LastName,
		Location:        author.Location,
		Description:     description,
		PicturePath:     picturePath,
		UserPicturePath: author.PicturePath,
		Likes:           NewLikeSet(),
		Comments:        []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// SignedURL is a time-limited read URL for one object-store key. It is
// derived per response and never persisted.
type SignedURL struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
