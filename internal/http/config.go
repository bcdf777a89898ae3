package http

import (
	"github.com/kitaabse/audiobooks/internal/audit"
	"github.com/kitaabse/audiobooks/internal/auth"
	"github.com/kitaabse/audiobooks/internal/config"
	"github.com/kitaabse/audiobooks/internal/database"
	"github.com/kitaabse/audiobooks/internal/database/books"
	"github.com/kitaabse/audiobooks/internal/database/library"
	"github.com/kitaabse/audiobooks/internal/database/pages"
	"github.com/kitaabse/audiobooks/internal/database/progress"
	"github.com/kitaabse/audiobooks/internal/pipeline"
	"github.com/kitaabse/audiobooks/internal/storage"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router. This replaces a long parameter list
// in NewRouter for better maintainability.
type RouterConfig struct {
	// Core dependencies
	Database *database.Database
	Books    *books.Repository
	Pages    *pages.Repository
	Progress *progress.Repository
	Library  *library.Repository

	// Authentication
	AuthService    *auth.Service
	AuthMiddleware *auth.Middleware

	// Upload pipeline
	Orchestrator *pipeline.Orchestrator
	Store        storage.ArtifactStore
	Upload       config.Upload

	// Auditor snapshots accepted uploads to disk (optional)
	Auditor *audit.Auditor

	// Application info
	Version string
}
