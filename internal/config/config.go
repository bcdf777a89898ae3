package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Audit
		Storage
		Extractor
		TTS
		Tasks
		Sweep
		Auth
		Upload
	}

	HTTP struct {
		Port int32
		Host string
	}

	Global struct {
		ShutdownTimeoutInSeconds int
	}

	Database struct {
		Path string
	}

	// Audit configures the upload audit trail. Disabled when Dir is empty.
	Audit struct {
		Dir string
	}

	// Storage configures the MinIO/S3-compatible artifact store holding
	// uploaded PDFs, cover images and generated page audio.
	Storage struct {
		Endpoint  string
		AccessKey string
		SecretKey string
		Bucket    string
		UseSSL    bool
		// PublicBaseURL, when set, is used to build stable retrieval URLs
		// instead of presigned ones (e.g. behind a CDN).
		PublicBaseURL string
	}

	Extractor struct {
		// Backend selects the page extractor: "native", "gemini" or "auto"
		// (native text with Gemini fallback for empty pages).
		Backend      string
		GeminiAPIKey string
		GeminiModel  string
		// RequestPause throttles per-page Gemini calls to stay under
		// free-tier rate limits.
		RequestPause time.Duration
	}

	TTS struct {
		Endpoint     string
		APIKey       string
		DefaultVoice string
	}

	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		RetryDelay        time.Duration
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}

	// Sweep configures the periodic liveness safeguards: stale books stuck
	// in processing are failed, recently failed pages are re-enqueued.
	Sweep struct {
		Enabled         bool
		StaleSchedule   string // cron format
		RetrySchedule   string // cron format
		StalenessWindow time.Duration
		RetryRecency    time.Duration
	}

	Auth struct {
		JWTSecret   string
		TokenExpiry time.Duration
		BcryptCost  int
	}

	Upload struct {
		MaxPDFBytes   int64
		MaxCoverBytes int64
		// EstimateSecondsPerPage feeds the status endpoint's
		// estimated_time_remaining derivation.
		EstimateSecondsPerPage int
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("port", 8190)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("database_path", "./audiobooks.db")
	v.SetDefault("audit_dir", "")

	v.SetDefault("storage_endpoint", "localhost:9000")
	v.SetDefault("storage_access_key", "")
	v.SetDefault("storage_secret_key", "")
	v.SetDefault("storage_bucket", "kitaabse")
	v.SetDefault("storage_use_ssl", false)
	v.SetDefault("storage_public_base_url", "")

	v.SetDefault("extractor_backend", "auto")
	v.SetDefault("gemini_api_key", "")
	v.SetDefault("gemini_model", "gemini-2.0-flash")
	v.SetDefault("extractor_request_pause", 4*time.Second)

	v.SetDefault("tts_endpoint", "http://localhost:5050/v1/audio/speech")
	v.SetDefault("tts_api_key", "")
	v.SetDefault("tts_default_voice", "female")

	v.SetDefault("tasks_enabled", true)
	v.SetDefault("tasks_workers", 2)
	v.SetDefault("tasks_max_retries", 3)
	v.SetDefault("tasks_retry_delay", 60*time.Second)
	v.SetDefault("tasks_task_timeout", 5*time.Minute)
	v.SetDefault("tasks_release_after", 15*time.Minute)
	v.SetDefault("tasks_cleanup_interval", 1*time.Hour)
	v.SetDefault("tasks_retention_duration", 24*time.Hour)

	v.SetDefault("sweep_enabled", true)
	v.SetDefault("sweep_stale_schedule", "*/10 * * * *")
	v.SetDefault("sweep_retry_schedule", "0 * * * *")
	v.SetDefault("sweep_staleness_window", 2*time.Hour)
	v.SetDefault("sweep_retry_recency", 24*time.Hour)

	v.SetDefault("auth_jwt_secret", "")
	v.SetDefault("auth_token_expiry", 24*time.Hour)
	v.SetDefault("auth_bcrypt_cost", 12)

	v.SetDefault("upload_max_pdf_bytes", int64(50*1024*1024))
	v.SetDefault("upload_max_cover_bytes", int64(5*1024*1024))
	v.SetDefault("upload_estimate_seconds_per_page", 30)

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("port"),
			Host: v.GetString("host"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("shutdown_timeout_in_seconds"),
		},
		Database: Database{
			Path: v.GetString("database_path"),
		},
		Audit: Audit{
			Dir: v.GetString("audit_dir"),
		},
		Storage: Storage{
			Endpoint:      v.GetString("storage_endpoint"),
			AccessKey:     v.GetString("storage_access_key"),
			SecretKey:     v.GetString("storage_secret_key"),
			Bucket:        v.GetString("storage_bucket"),
			UseSSL:        v.GetBool("storage_use_ssl"),
			PublicBaseURL: v.GetString("storage_public_base_url"),
		},
		Extractor: Extractor{
			Backend:      v.GetString("extractor_backend"),
			GeminiAPIKey: v.GetString("gemini_api_key"),
			GeminiModel:  v.GetString("gemini_model"),
			RequestPause: v.GetDuration("extractor_request_pause"),
		},
		TTS: TTS{
			Endpoint:     v.GetString("tts_endpoint"),
			APIKey:       v.GetString("tts_api_key"),
			DefaultVoice: v.GetString("tts_default_voice"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("tasks_enabled"),
			Workers:           v.GetInt("tasks_workers"),
			MaxRetries:        v.GetInt("tasks_max_retries"),
			RetryDelay:        v.GetDuration("tasks_retry_delay"),
			TaskTimeout:       v.GetDuration("tasks_task_timeout"),
			ReleaseAfter:      v.GetDuration("tasks_release_after"),
			CleanupInterval:   v.GetDuration("tasks_cleanup_interval"),
			RetentionDuration: v.GetDuration("tasks_retention_duration"),
		},
		Sweep: Sweep{
			Enabled:         v.GetBool("sweep_enabled"),
			StaleSchedule:   v.GetString("sweep_stale_schedule"),
			RetrySchedule:   v.GetString("sweep_retry_schedule"),
			StalenessWindow: v.GetDuration("sweep_staleness_window"),
			RetryRecency:    v.GetDuration("sweep_retry_recency"),
		},
		Auth: Auth{
			JWTSecret:   v.GetString("auth_jwt_secret"),
			TokenExpiry: v.GetDuration("auth_token_expiry"),
			BcryptCost:  v.GetInt("auth_bcrypt_cost"),
		},
		Upload: Upload{
			MaxPDFBytes:            v.GetInt64("upload_max_pdf_bytes"),
			MaxCoverBytes:          v.GetInt64("upload_max_cover_bytes"),
			EstimateSecondsPerPage: v.GetInt("upload_estimate_seconds_per_page"),
		},
	}
}
