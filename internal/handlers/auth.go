package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/socialfeed/backend/internal/auth"
	"github.com/socialfeed/backend/internal/logging"
	"github.com/socialfeed/backend/internal/media"
	"github.com/socialfeed/backend/internal/models"
	"github.com/socialfeed/backend/internal/repositories"
	"github.com/socialfeed/backend/internal/social"
)

const maxUploadBytes = 10 << 20

// AuthHandler implements registration and session endpoints.
type AuthHandler struct {
	Users     UserStore
	Sessions  SessionManager
	Pictures  PictureStore
	Decorator *social.Decorator
	NowFunc   func() time.Time
}

// Login handles POST /auth/login requests.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid_argument", "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		logger.Warn("login missing credentials", "email", req.Email)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid_argument", "email and password are required")
		return
	}

	user, err := h.Users.FindByEmail(ctx, req.Email)
	if err != nil {
		logger.Warn("login user lookup failed", "email", req.Email, "error", err)
		respondMessage(ctx, w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.Warn("login password mismatch", "userId", user.ID)
		respondMessage(ctx, w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
		return
	}

	tokens, err := h.Sessions.Issue(ctx, user.ID)
	if err != nil {
		logger.Error("failed to issue session", "error", err, "userId", user.ID)
		respondMessage(ctx, w, http.StatusInternalServerError, "internal", "failed to create session")
		return
	}

	view := decorateUser(ctx, h.Decorator, user)
	respondJSON(ctx, w, http.StatusOK, authResponse{User: &view, Tokens: tokens})
}

// Register handles POST /auth/register. It accepts a multipart form with an
// optional "picture" file, or a JSON body without one.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	req, err := h.decodeRegister(w, r)
	if err != nil {
		logger.Warn("invalid registration payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid_argument", "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		logger.Warn("signup missing credentials", "email", req.Email)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid_argument", "email and password are required")
		return
	}

	if _, err := mail.ParseAddress(req.Email); err != nil {
		logger.Warn("signup invalid email", "email", req.Email, "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid_argument", "invalid email address")
		return
	}

	if len(req.Password) < 8 {
		logger.Warn("signup password too short", "email", req.Email)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid_argument", "password must be at least 8 characters")
		return
	}

	if _, err := h.Users.FindByEmail(ctx, req.Email); err == nil {
		logger.Warn("signup existing account", "email", req.Email)
		respondMessage(ctx, w, http.StatusConflict, "conflict", "account already exists")
		return
	} else if !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("signup user lookup failed", "error", err, "email", req.Email)
		respondMessage(ctx, w, http.StatusServiceUnavailable, "store_unavailable", "unable to verify existing accounts")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("signup failed to hash password", "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "internal", "failed to secure password")
		return
	}

	picturePath := ""
	if req.picture != nil {
		defer req.picture.Close()
		if h.Pictures == nil {
			respondMessage(ctx, w, http.StatusServiceUnavailable, "store_unavailable", "picture uploads are disabled")
			return
		}
		picturePath, err = h.Pictures.Store(ctx, "users", req.picture)
		if err != nil {
			if errors.Is(err, media.ErrInvalidImage) {
				respondMessage(ctx, w, http.StatusBadRequest, "invalid_argument", "picture is not a supported image")
				return
			}
			logger.Error("signup failed to store picture", "error", err)
			respondMessage(ctx, w, http.StatusServiceUnavailable, "store_unavailable", "failed to store picture")
			return
		}
	}

	now := h.now()
	user := models.User{
		ID:          uuid.NewString(),
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Email:       req.Email,
		Password:    string(hashed),
		Location:    strings.TrimSpace(req.Location),
		Occupation:  strings.TrimSpace(req.Occupation),
		PicturePath: picturePath,
		Friends:     []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			logger.Warn("signup conflict", "email", req.Email)
			respondMessage(ctx, w, http.StatusConflict, "conflict", "account already exists")
			return
		}
		logger.Error("signup failed to create user", "error", err, "email", req.Email)
		respondMessage(ctx, w, http.StatusInternalServerError, "internal", "failed to create account")
		return
	}

	tokens, err := h.Sessions.Issue(ctx, user.ID)
	if err != nil {
		logger.Error("signup failed to issue session", "error", err, "userId", user.ID)
		respondMessage(ctx, w, http.StatusInternalServerError, "internal", "failed to create session")
		return
	}

	view := decorateUser(ctx, h.Decorator, user)
	respondJSON(ctx, w, http.StatusCreated, authResponse{User: &view, Tokens: tokens})
}

// Refresh exchanges a refresh token for a new session.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid refresh payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid_argument", "invalid request body")
		return
	}

	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		logger.Warn("missing refresh token")
		respondMessage(ctx, w, http.StatusBadRequest, "invalid_argument", "refresh token is required")
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrRefreshTokenExpired) || errors.Is(err, auth.ErrSessionNotFound) {
			logger.Warn("refresh rejected", "error", err)
			respondMessage(ctx, w, http.StatusUnauthorized, "unauthorized", "unable to refresh session")
			return
		}
		logger.Error("refresh failed", "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "internal", "unable to refresh session")
		return
	}

	respondJSON(ctx, w, http.StatusOK, authResponse{Tokens: tokens})
}

// Logout handles POST /auth/logout. Unknown tokens are not an error so the
// call is safe to repeat.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logging.FromContext(ctx).Warn("invalid logout payload", "error", err)
		respondMessage(ctx, w, http.StatusBadRequest, "invalid_argument", "invalid request body")
		return
	}

	h.Sessions.Revoke(ctx, strings.TrimSpace(req.RefreshToken))
	w.WriteHeader(http.StatusNoContent)
}

func (h AuthHandler) decodeRegister(w http.ResponseWriter, r *http.Request) (registerRequest, error) {
	var req registerRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return req, err
	}
	req.FirstName = r.FormValue("firstName")
	req.LastName = r.FormValue("lastName")
	req.Email = r.FormValue("email")
	req.Password = r.FormValue("password")
	req.Location = r.FormValue("location")
	req.Occupation = r.FormValue("occupation")

	file, _, err := r.FormFile("picture")
	switch {
	case err == nil:
		req.picture = file
	case !errors.Is(err, http.ErrMissingFile):
		return req, err
	}
	return req, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Location   string `json:"location"`
	Occupation string `json:"occupation"`

	picture multipart.File
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	User   *userResponse        `json:"user,omitempty"`
	Tokens models.SessionTokens `json:"tokens"`
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
