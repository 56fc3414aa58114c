package handler

import (
	"errors"
	"net/http"

	"wirechat/internal/pkg/auth/jwt"
	"wirechat/internal/pkg/errs"
	"wirechat/internal/pkg/logx"
	"wirechat/internal/pkg/req"
	"wirechat/internal/pkg/resp"
)

// requireUserID resolves the authenticated user id from the request context.
// Returns an empty string after writing a 401 response when no identity is bound.
func requireUserID(w http.ResponseWriter, r *http.Request) string {
	claims := jwt.GetClaimsFromContext(r)
	if claims == nil {
		resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
		return ""
	}

	userID := claims.UserID()
	if userID == "" {
		resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
		return ""
	}

	return userID
}

// respondServiceError maps a service-layer error to an HTTP error response.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var customErr *errs.CustomError
	if errors.As(err, &customErr) {
		resp.RespondError(w, r, customErr)
		return
	}

	logx.Error(err, "Unclassified error reached the HTTP boundary")
	resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
}

type createPrivateRequest struct {
	UserID string `json:"userId"`
}

// HandleGetOrCreatePrivate returns the private conversation between the caller
// and the given user, creating it when it does not exist yet.
func HandleGetOrCreatePrivate(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requireUserID(w, r)
		if userID == "" {
			return
		}

		var body createPrivateRequest
		if customErr := req.BindJSON(r, &body); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if body.UserID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		conv, err := deps.Service.GetOrCreatePrivateConversation(r.Context(), userID, body.UserID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, conv)
	}
}

type createGroupRequest struct {
	GroupName string   `json:"groupName"`
	Members   []string `json:"members"`
}

// HandleCreateGroup creates a group conversation with the caller as admin.
func HandleCreateGroup(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requireUserID(w, r)
		if userID == "" {
			return
		}

		var body createGroupRequest
		if customErr := req.BindJSON(r, &body); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if body.GroupName == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		conv, err := deps.Service.CreateGroupConversation(r.Context(), userID, body.GroupName, body.Members)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, conv)
	}
}

type inviteRequest struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// HandleInviteToGroup adds a user to an existing group conversation.
// Only group admins may invite.
func HandleInviteToGroup(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requireUserID(w, r)
		if userID == "" {
			return
		}

		var body inviteRequest
		if customErr := req.BindJSON(r, &body); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if body.ChatID == "" || body.UserID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		conv, err := deps.Service.InviteToGroup(r.Context(), body.ChatID, userID, body.UserID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, conv)
	}
}

// HandleListConversations returns every conversation the caller is a member of.
func HandleListConversations(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requireUserID(w, r)
		if userID == "" {
			return
		}

		convs, err := deps.Service.ConversationsFor(r.Context(), userID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, convs)
	}
}
