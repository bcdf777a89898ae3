package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kitaabse/audiobooks/internal/audit"
	"github.com/kitaabse/audiobooks/internal/auth"
	"github.com/kitaabse/audiobooks/internal/config"
	"github.com/kitaabse/audiobooks/internal/database"
	"github.com/kitaabse/audiobooks/internal/database/books"
	"github.com/kitaabse/audiobooks/internal/database/library"
	"github.com/kitaabse/audiobooks/internal/database/pages"
	"github.com/kitaabse/audiobooks/internal/database/progress"
	"github.com/kitaabse/audiobooks/internal/extractor"
	http_controllers "github.com/kitaabse/audiobooks/internal/http"
	"github.com/kitaabse/audiobooks/internal/pipeline"
	"github.com/kitaabse/audiobooks/internal/scheduler"
	"github.com/kitaabse/audiobooks/internal/storage"
	"github.com/kitaabse/audiobooks/internal/tasks"
	"github.com/kitaabse/audiobooks/internal/tts"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until SIGINT/SIGTERM, then drains it within
// the configured shutdown timeout.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Call shutdown callback first (e.g., to stop task queue and sweeps)
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

// buildExtractor selects the page extractor backend from configuration.
// "auto" uses the native parser and reruns the document through Gemini
// when native extraction fails or yields no text.
func buildExtractor(cfg *config.Config) (extractor.PageExtractor, error) {
	newGemini := func() (*extractor.Gemini, error) {
		if cfg.Extractor.GeminiAPIKey == "" {
			return nil, fmt.Errorf("extractor backend %q requires GEMINI_API_KEY", cfg.Extractor.Backend)
		}
		return extractor.NewGemini(cfg.Extractor.GeminiAPIKey, cfg.Extractor.GeminiModel, cfg.Extractor.RequestPause)
	}

	switch cfg.Extractor.Backend {
	case "native":
		return extractor.NewNative(), nil
	case "gemini":
		return newGemini()
	case "auto", "":
		if cfg.Extractor.GeminiAPIKey == "" {
			log.Printf("GEMINI_API_KEY not set; scanned PDFs without embedded text will produce empty pages")
			return extractor.NewNative(), nil
		}
		gemini, err := newGemini()
		if err != nil {
			return nil, err
		}
		return extractor.NewWithFallback(extractor.NewNative(), gemini), nil
	default:
		return nil, fmt.Errorf("unknown extractor backend %q", cfg.Extractor.Backend)
	}
}

// Run wires the application together and serves it.
func Run(cfg *config.Config, version string) {
	log.Printf("Starting Kitaabse v%s", version)

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	booksRepo := books.NewRepository(db.DB)
	pagesRepo := pages.NewRepository(db.DB)
	progressRepo := progress.NewRepository(db.DB)
	libraryRepo := library.NewRepository(db.DB)

	store, err := storage.NewMinioStore(
		cfg.Storage.Endpoint,
		cfg.Storage.AccessKey,
		cfg.Storage.SecretKey,
		cfg.Storage.Bucket,
		cfg.Storage.UseSSL,
		cfg.Storage.PublicBaseURL,
	)
	if err != nil {
		log.Fatalf("Failed to initialize object store: %v", err)
	}

	pageExtractor, err := buildExtractor(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize extractor: %v", err)
	}

	synthesizer := tts.NewHTTPSynthesizer(cfg.TTS.Endpoint, cfg.TTS.APIKey)

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskCfg := tasks.Config{
			Workers:           cfg.Tasks.Workers,
			MaxRetries:        cfg.Tasks.MaxRetries,
			RetryDelay:        cfg.Tasks.RetryDelay,
			TaskTimeout:       cfg.Tasks.TaskTimeout,
			ReleaseAfter:      cfg.Tasks.ReleaseAfter,
			CleanupInterval:   cfg.Tasks.CleanupInterval,
			RetentionDuration: cfg.Tasks.RetentionDuration,
		}

		taskClient, err = tasks.NewClient(cfg.Database.Path, taskCfg)
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()
	}

	// The orchestrator and the task processors reference each other:
	// upload-time extraction schedules audio jobs, audio jobs call back
	// into the orchestrator. The JobScheduler interface breaks the cycle.
	var jobScheduler pipeline.JobScheduler = taskClient
	if taskClient == nil {
		log.Printf("WARNING: task queue disabled; uploaded books will not get audio until it is enabled")
		jobScheduler = noopScheduler{}
	}

	orchestrator := pipeline.NewOrchestrator(pipeline.Config{
		Books:     booksRepo,
		Pages:     pagesRepo,
		Extractor: pageExtractor,
		TTS:       synthesizer,
		Store:     store,
		Scheduler: jobScheduler,
		Voice:     cfg.TTS.DefaultVoice,
	})

	if taskClient != nil {
		taskClient.Register(
			tasks.NewGeneratePageAudioQueue(orchestrator),
			tasks.NewProcessBookPDFQueue(orchestrator),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	// Liveness sweeps: reclaim books stuck in processing, re-enqueue
	// recently failed pages.
	var sweeps *scheduler.SweepScheduler
	if cfg.Sweep.Enabled && taskClient != nil {
		sweeps = scheduler.NewSweepScheduler(booksRepo, pagesRepo, taskClient, scheduler.Config{
			StaleSchedule:   cfg.Sweep.StaleSchedule,
			RetrySchedule:   cfg.Sweep.RetrySchedule,
			StalenessWindow: cfg.Sweep.StalenessWindow,
			RetryRecency:    cfg.Sweep.RetryRecency,
		})
		if err := sweeps.Start(context.Background()); err != nil {
			log.Fatalf("Failed to start sweep scheduler: %v", err)
		}
	}

	var auditor *audit.Auditor
	if cfg.Audit.Dir != "" {
		auditor = audit.NewAuditor(cfg.Audit.Dir)
		log.Printf("Upload audit trail enabled at %s", cfg.Audit.Dir)
	}

	authService := auth.NewService(db.DB, cfg.Auth)
	authMiddleware := auth.NewMiddleware(authService)
	if cfg.Auth.JWTSecret == "" {
		log.Printf("AUTH_JWT_SECRET not set; using a generated secret (tokens expire on restart)")
	}

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Database:       db,
		Books:          booksRepo,
		Pages:          pagesRepo,
		Progress:       progressRepo,
		Library:        libraryRepo,
		AuthService:    authService,
		AuthMiddleware: authMiddleware,
		Orchestrator:   orchestrator,
		Store:          store,
		Upload:         cfg.Upload,
		Auditor:        auditor,
		Version:        version,
	})

	onShutdown := func(ctx context.Context) {
		if sweeps != nil {
			sweeps.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}

// noopScheduler discards scheduling requests when the queue is disabled.
type noopScheduler struct{}

func (noopScheduler) EnqueuePageAudio(bookID uint, pageNumber int) error { return nil }
func (noopScheduler) EnqueueBookPDF(bookID uint) error                   { return nil }
