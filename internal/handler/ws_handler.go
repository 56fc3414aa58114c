/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate limiting,
verifying the bearer credential presented at connection time, upgrading the HTTP connection
to WebSocket, and initiating the client lifecycle.
*/
package handler

import (
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"wirechat/internal/app/chat"
	"wirechat/internal/pkg/auth/jwt"
	"wirechat/internal/pkg/errs"
	"wirechat/internal/pkg/limiter"
	"wirechat/internal/pkg/logx"
	"wirechat/internal/pkg/resp"
)

// connectionToken extracts the bearer credential from the upgrade request.
// Browsers cannot set headers on WebSocket upgrades from every client stack,
// so a "token" query parameter is accepted alongside the Authorization header.
func connectionToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}

	return ""
}

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
// Authentication is a hard boundary: a missing or invalid credential rejects the
// connection before any event is accepted.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		token := connectionToken(r)
		if token == "" {
			logx.Warn("WebSocket connection rejected: Missing credential.")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		claims, err := jwt.ParseToken(token, deps.Config.JWTSecret)
		if err != nil {
			logx.Warn("WebSocket connection rejected: Invalid credential.", "error", err)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		userID := claims.UserID()
		if userID == "" {
			logx.Warn("WebSocket connection rejected: Credential carries no user id.")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := chat.NewClient(deps.Service, conn, userID)

		go client.WritePump()

		logx.Info("WebSocket connection established and client registered", "client_id", userID)

		deps.Service.Register(r.Context(), client)

		client.ReadPump()
	}
}
