package http

import (
	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Uses RouterConfig to receive all dependencies, improving testability
// and reducing parameter count.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	health := NewHealthController(cfg.Database, cfg.Version)
	authController := NewAuthController(cfg.AuthService)
	booksController := NewBooksController(cfg.Books)
	uploadController := NewUploadController(cfg.Books, cfg.Orchestrator, cfg.Store, cfg.Auditor, cfg.Upload)
	statusController := NewStatusController(cfg.Books, cfg.Pages, cfg.Upload.EstimateSecondsPerPage)
	pagesController := NewPagesController(cfg.Books, cfg.Pages)
	progressController := NewProgressController(cfg.Books, cfg.Progress)
	libraryController := NewLibraryController(cfg.Books, cfg.Library)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// Auth endpoints
	router.POST("/api/auth/register", authController.Register)
	router.POST("/api/auth/login", authController.Login)

	// Public catalog. Anonymous requests see public books; a valid
	// bearer token additionally unlocks the caller's private ones.
	public := router.Group("/api", cfg.AuthMiddleware.Optional())
	public.GET("/books", booksController.ListPublic)
	public.GET("/books/:id", booksController.Get)
	public.GET("/books/:id/status", statusController.Get)
	public.GET("/books/:id/pages", pagesController.List)

	// Everything below needs an authenticated user.
	private := router.Group("/api", cfg.AuthMiddleware.Required())
	private.POST("/books", uploadController.Upload)
	private.POST("/books/:id/reprocess", uploadController.Reprocess)
	private.GET("/books/mine", booksController.ListMine)
	private.PATCH("/books/:id", booksController.Update)
	private.DELETE("/books/:id", booksController.Delete)

	private.GET("/books/:id/progress", progressController.Get)
	private.PUT("/books/:id/progress", progressController.Update)
	private.GET("/progress", progressController.ListAll)

	private.GET("/library", libraryController.List)
	private.POST("/library/add", libraryController.Add)
	private.DELETE("/library/:book_id", libraryController.Remove)
	private.POST("/library/:book_id/favorite", libraryController.ToggleFavorite)

	return router
}
