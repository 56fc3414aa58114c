package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"wirechat/internal/app/chat"
	"wirechat/internal/pkg/errs"
	"wirechat/internal/pkg/logx"
	"wirechat/internal/pkg/req"
	"wirechat/internal/pkg/resp"
)

type presignUploadRequest struct {
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	FileSize int64  `json:"fileSize"`
}

type presignUploadResponse struct {
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"key"`
}

// HandlePresignUpload validates attachment metadata and returns a short-lived
// presigned URL the client uploads against directly. The object key is scoped
// to the caller so uploads cannot collide across users.
func HandlePresignUpload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requireUserID(w, r)
		if userID == "" {
			return
		}

		var body presignUploadRequest
		if customErr := req.BindJSON(r, &body); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := chat.ValidateFileType(body.FileName, body.MimeType); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := chat.ValidateFileSize(body.FileSize); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		ext := strings.ToLower(filepath.Ext(body.FileName))
		key := fmt.Sprintf("%s/%s%s", userID, uuid.New().String(), ext)

		uploadURL, err := deps.StorageService.PresignUpload(
			r.Context(),
			key,
			strings.ToLower(body.MimeType),
			body.FileSize,
			chat.PresignedURLDuration,
		)
		if err != nil {
			logx.Error(err, "Failed to presign upload URL", "key", key)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, presignUploadResponse{UploadURL: uploadURL, Key: key})
	}
}

type presignDownloadResponse struct {
	DownloadURL string `json:"downloadUrl"`
}

// HandlePresignDownload returns a short-lived presigned URL for fetching a
// previously uploaded attachment by its object key.
func HandlePresignDownload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := requireUserID(w, r)
		if userID == "" {
			return
		}

		key := r.URL.Query().Get("key")
		if key == "" || strings.Contains(key, "..") {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		downloadURL, err := deps.StorageService.PresignDownload(r.Context(), key, chat.PresignedURLDuration)
		if err != nil {
			logx.Error(err, "Failed to presign download URL", "key", key)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, presignDownloadResponse{DownloadURL: downloadURL})
	}
}
