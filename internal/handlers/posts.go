package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/socialfeed/backend/internal/logging"
	"github.com/socialfeed/backend/internal/media"
	"github.com/socialfeed/backend/internal/social"
)

// PostHandler serves feed, post creation and like endpoints.
type PostHandler struct {
	Feed     Feed
	Likes    Likes
	Pictures PictureStore
}

// List handles GET /posts.
func (h PostHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	posts, err := h.Feed.ListFeed(ctx)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, newPostResponses(posts))
}

// UserPosts handles GET /posts/{userId}/posts.
func (h PostHandler) UserPosts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	posts, err := h.Feed.ListUserPosts(ctx, chi.URLParam(r, "userId"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, newPostResponses(posts))
}

// Create handles POST /posts. The body is a multipart form with a
// "description" field and an optional "picture" file, or a JSON object with
// a description. The response is the full decorated feed.
func (h PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	in := social.NewPostInput{AuthorID: logging.UserIDFromContext(ctx)}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			logger.Warn("invalid post form", "error", err)
			respondMessage(ctx, w, http.StatusBadRequest, "invalid_argument", "invalid request body")
			return
		}
		in.Description = r.FormValue("description")

		file, _, err := r.FormFile("picture")
		switch {
		case err == nil:
			defer file.Close()
			key, status, msg := h.storePicture(r, file)
			if status != 0 {
				respondMessage(ctx, w, status, pictureErrorCode(status), msg)
				return
			}
			in.PicturePath = key
		case !errors.Is(err, http.ErrMissingFile):
			respondMessage(ctx, w, http.StatusBadRequest, "invalid_argument", "invalid picture upload")
			return
		}
	} else {
		var body createPostRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			logger.Warn("invalid post payload", "error", err)
			respondMessage(ctx, w, http.StatusBadRequest, "invalid_argument", "invalid request body")
			return
		}
		in.Description = body.Description
	}

	posts, err := h.Feed.CreatePost(ctx, in)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, newPostResponses(posts))
}

// Like handles PATCH /posts/{id}/like for the authenticated caller. A userId
// in the body is accepted only when it names the caller.
func (h PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body likeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		logging.FromContext(ctx).Warn("invalid like payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid_argument", "invalid request body")
		return
	}

	userID := logging.UserIDFromContext(ctx)
	if named := strings.TrimSpace(body.UserID); named != "" && named != userID {
		logging.FromContext(ctx).Warn("like on behalf of another user", "caller", userID, "userId", named)
		respondMessage(ctx, w, http.StatusForbidden, "forbidden", "cannot like on behalf of another user")
		return
	}

	post, err := h.Likes.ToggleLike(ctx, chi.URLParam(r, "id"), userID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, newPostResponse(post))
}

func (h PostHandler) storePicture(r *http.Request, file io.Reader) (string, int, string) {
	if h.Pictures == nil {
		return "", http.StatusServiceUnavailable, "picture uploads are disabled"
	}
	key, err := h.Pictures.Store(r.Context(), "posts", file)
	if err != nil {
		if errors.Is(err, media.ErrInvalidImage) {
			return "", http.StatusBadRequest, "picture is not a supported image"
		}
		logging.FromContext(r.Context()).Error("failed to store post picture", "error", err)
		return "", http.StatusServiceUnavailable, "failed to store picture"
	}
	return key, 0, ""
}

func pictureErrorCode(status int) string {
	if status == http.StatusBadRequest {
		return "invalid_argument"
	}
	return "store_unavailable"
}

type createPostRequest struct {
	Description string `json:"description"`
}

type likeRequest struct {
	UserID string `json:"userId"`
}
