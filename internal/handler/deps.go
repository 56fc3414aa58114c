package handler

import (
	"wirechat/internal/app/chat"
	"wirechat/internal/app/storage"
	"wirechat/internal/configs"
)

// AppDeps bundles the shared dependencies injected into every handler.
type AppDeps struct {
	Service        *chat.Service
	Config         *configs.AppConfig
	StorageService storage.StorageService
}
