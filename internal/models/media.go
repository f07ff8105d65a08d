package models

// MediaField names a record attribute that holds an object-store key.
type MediaField string

const (
	// MediaPicture is the record's own picture: a post image or a user avatar.
	MediaPicture MediaField = "picturePath"
	// MediaUserPicture is the author avatar copied onto a post.
	MediaUserPicture MediaField = "userPicturePath"
)

// MediaReference returns the object key stored under field, or "".
func (u User) MediaReference(field MediaField) string {
	if field == MediaPicture {
		return u.PicturePath
	}
	return ""
}

// MediaReference returns the object key stored under field, or "".
func (f FriendView) MediaReference(field MediaField) string {
	if field == MediaPicture {
		return f.PicturePath
	}
	return ""
}

// MediaReference returns the object key stored under field, or "".
func (p Post) MediaReference(field MediaField) string {
	switch field {
	case MediaPicture:
		return p.PicturePath
	case MediaUserPicture:
		return p.UserPicturePath
	}
	return ""
}
