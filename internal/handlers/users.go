package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/socialfeed/backend/internal/logging"
	"github.com/socialfeed/backend/internal/social"
)

// UserHandler serves profile and friend endpoints.
type UserHandler struct {
	Relationships Relationships
	Decorator     *social.Decorator
}

// Get handles GET /users/{id}.
func (h UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.Relationships.GetUser(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, decorateUser(ctx, h.Decorator, user))
}

// Friends handles GET /users/{id}/friends.
func (h UserHandler) Friends(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	friends, err := h.Relationships.ListFriends(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, decorateFriends(ctx, h.Decorator, friends))
}

// ToggleFriend handles PATCH /users/{id}/{friendId}. Only the user named in
// the path may change their own friend list.
func (h UserHandler) ToggleFriend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "id")
	friendID := chi.URLParam(r, "friendId")

	if caller := logging.UserIDFromContext(ctx); caller != userID {
		logging.FromContext(ctx).Warn("friend toggle for another user", "caller", caller, "userId", userID)
		respondMessage(ctx, w, http.StatusForbidden, "forbidden", "cannot change another user's friends")
		return
	}

	friends, err := h.Relationships.ToggleFriend(ctx, userID, friendID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, decorateFriends(ctx, h.Decorator, friends))
}
