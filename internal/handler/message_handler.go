package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"wirechat/internal/app/chat"
	"wirechat/internal/app/store"
	"wirechat/internal/pkg/errs"
	"wirechat/internal/pkg/randx"
	"wirechat/internal/pkg/req"
	"wirechat/internal/pkg/resp"
)

// paginationInfo describes the page window returned by a history query.
type paginationInfo struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

type historyResponse struct {
	Messages   []store.Message `json:"messages"`
	Pagination paginationInfo  `json:"pagination"`
}

// messageIDParam validates the {id} route parameter shape before any store
// lookup. Malformed ids resolve to the same not-found error a missing message
// would.
func messageIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !randx.IsValidID(id) {
		resp.RespondError(w, r, errs.NewError(errs.ErrMessageNotFound))
		return "", false
	}
	return id, true
}

// queryInt parses a positive integer query parameter, falling back to def
// when the parameter is absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}

	return n
}

// HandleGetMessages returns a page of a conversation's history, oldest first
// within the page, newest page last.
func HandleGetMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requireUserID(w, r)
		if userID == "" {
			return
		}

		chatID := chi.URLParam(r, "chatId")
		page := queryInt(r, "page", 1)
		limit := queryInt(r, "limit", chat.DefaultHistoryLimit)

		messages, total, err := deps.Service.History(r.Context(), userID, chatID, page, limit)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		pages := (total + limit - 1) / limit
		resp.RespondSuccess(w, r, historyResponse{
			Messages:   messages,
			Pagination: paginationInfo{Total: total, Page: page, Pages: pages},
		})
	}
}

type editMessageRequest struct {
	Content string `json:"content"`
}

// HandleEditMessage replaces a message's content. Only the original sender may edit.
func HandleEditMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requireUserID(w, r)
		if userID == "" {
			return
		}

		var body editMessageRequest
		if customErr := req.BindJSON(r, &body); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if body.Content == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		messageID, ok := messageIDParam(w, r)
		if !ok {
			return
		}

		msg, err := deps.Service.Edit(r.Context(), userID, messageID, body.Content)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, msg)
	}
}

// HandleDeleteMessage removes a message. Only the original sender may delete.
func HandleDeleteMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requireUserID(w, r)
		if userID == "" {
			return
		}

		messageID, ok := messageIDParam(w, r)
		if !ok {
			return
		}

		if err := deps.Service.Delete(r.Context(), userID, messageID); err != nil {
			respondServiceError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}

type forwardRequest struct {
	RecipientID string `json:"recipientId,omitempty"`
	RoomID      string `json:"roomId,omitempty"`
}

// HandleForwardMessage copies an existing message into another conversation,
// stamping the copy with its origin.
func HandleForwardMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requireUserID(w, r)
		if userID == "" {
			return
		}

		var body forwardRequest
		if customErr := req.BindJSON(r, &body); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if body.RecipientID == "" && body.RoomID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		messageID, ok := messageIDParam(w, r)
		if !ok {
			return
		}

		msg, err := deps.Service.Forward(r.Context(), userID, messageID, body.RecipientID, body.RoomID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, msg)
	}
}

type pinRequest struct {
	Pinned bool `json:"pinned"`
}

// HandlePinMessage sets or clears a message's pinned flag. Idempotent.
func HandlePinMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requireUserID(w, r)
		if userID == "" {
			return
		}

		var body pinRequest
		if customErr := req.BindJSON(r, &body); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		messageID, ok := messageIDParam(w, r)
		if !ok {
			return
		}

		msg, err := deps.Service.Pin(r.Context(), messageID, body.Pinned)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, msg)
	}
}

type starRequest struct {
	Starred bool `json:"starred"`
}

// HandleStarMessage adds or removes the caller from a message's star list.
func HandleStarMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requireUserID(w, r)
		if userID == "" {
			return
		}

		var body starRequest
		if customErr := req.BindJSON(r, &body); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		messageID, ok := messageIDParam(w, r)
		if !ok {
			return
		}

		msg, err := deps.Service.Star(r.Context(), userID, messageID, body.Starred)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, msg)
	}
}
