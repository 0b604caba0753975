package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"liquid-tasks/internal/cache"
	"liquid-tasks/internal/config"
	"liquid-tasks/internal/database"
	"liquid-tasks/internal/handlers"
	"liquid-tasks/internal/identity"
	"liquid-tasks/internal/middleware"
	"liquid-tasks/internal/monitoring"
	"liquid-tasks/internal/notify"
	"liquid-tasks/internal/remote"
	"liquid-tasks/internal/repositories"
	"liquid-tasks/internal/store"
	tasksync "liquid-tasks/internal/sync"
	"liquid-tasks/internal/toast"
	"liquid-tasks/internal/worker"
)

// Application holds all application dependencies and state
type Application struct {
	Config *config.Config
	DB     *gorm.DB
	Pool   *database.DatabasePool
	Redis  *redis.Client
	Cache  cache.Cache
	Router *gin.Engine
	Server *http.Server

	Local       *store.Store
	Remote      *remote.GormStore
	Provider    *identity.CloudProvider
	Coordinator *tasksync.Coordinator
	Toasts      *toast.Center
	Watcher     *notify.Watcher
	Worker      *worker.Worker
	Queue       *worker.JobQueue

	watcherCancel context.CancelFunc
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize application: %v", err)
	}

	app.setupRoutes()
	app.startServer()
}

func initializeApplication(cfg *config.Config) (*Application, error) {
	app := &Application{
		Config: cfg,
	}

	log.Println("🚀 Initializing Liquid Tasks...")
	log.Printf("📋 Environment: %s", cfg.Server.Environment)

	local, err := store.Open(cfg.Local.DBPath)
	if err != nil {
		return nil, fmt.Errorf("local store failed to open: %w", err)
	}
	app.Local = local
	log.Printf("✅ Local store ready at %s", cfg.Local.DBPath)

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		DSN:             cfg.GetDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	app.Pool = pool
	app.DB = pool.DB

	migrationConfig := &repositories.MigrationConfig{
		MigrationsPath: "file://migrations",
		DBName:         cfg.Database.Name,
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
	}
	if err := repositories.RunMigrations(app.DB, migrationConfig); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("⚠️  Redis unavailable: %v (continuing single-instance, memory cache)", err)
		redisClient = nil
	} else {
		app.Redis = redisClient
		log.Println("✅ Redis connected")
	}

	if redisClient != nil {
		app.Cache = cache.NewRedisCache(redisClient, "liquid:")
		log.Println("✅ Redis cache initialized")
	} else {
		app.Cache = cache.NewMemoryCache()
		log.Println("✅ Memory cache initialized")
	}

	app.Remote = remote.NewGormStore(app.DB, app.Cache, redisClient)
	app.Provider = identity.NewCloudProvider(app.DB, local, cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	app.Toasts = toast.NewCenter(cfg.Toast.TTL)

	app.Coordinator = tasksync.New(local, app.Remote, app.Provider, app.Toasts)
	app.Coordinator.Start()
	log.Printf("✅ Sync coordinator started (%s)", app.Coordinator.Status())

	// Deadline alerts: queued through Redis when available, toast-only
	// otherwise. The worker drains the queue back into the toast center.
	var sink notify.Sink = app.Toasts
	if redisClient != nil {
		app.Queue = worker.NewJobQueue(redisClient)
		sink = worker.NewAlertSink(app.Queue, cfg.Notify.AlertQueue, app.Toasts)

		app.Worker = worker.NewWorker(worker.WorkerConfig{
			RedisClient:  redisClient,
			Concurrency:  cfg.Notify.Concurrency,
			PollInterval: time.Second,
			Queues:       []string{cfg.Notify.AlertQueue, worker.RetryQueue},
		})
		app.Worker.RegisterHandler(worker.JobTypeDeadlineAlert, func(ctx context.Context, job *worker.Job) error {
			title, _ := job.Payload["title"].(string)
			body, _ := job.Payload["body"].(string)
			app.Toasts.Notify(title, body)
			return nil
		})
		app.Worker.RegisterHandler(worker.JobTypeVerificationEmail, func(ctx context.Context, job *worker.Job) error {
			email, _ := job.Payload["email"].(string)
			token, _ := job.Payload["token"].(string)
			log.Printf("📧 Verification mail for %s (token %s)", email, token)
			return nil
		})
		app.Worker.Start(cfg.Notify.Concurrency)

		app.Provider.SetMailFunc(func(email, token string) {
			err := app.Queue.Enqueue(cfg.Notify.AlertQueue, worker.JobTypeVerificationEmail, map[string]interface{}{
				"email": email,
				"token": token,
			})
			if err != nil {
				log.Printf("📧 Verification token for %s: %s (queue unavailable: %v)", email, token, err)
			}
		})
	}

	app.Watcher = notify.NewWatcher(app.Coordinator.Tasks, sink, cfg.Notify.ScanInterval)
	watcherCtx, watcherCancel := context.WithCancel(context.Background())
	app.watcherCancel = watcherCancel
	go app.Watcher.Run(watcherCtx)

	monitoring.RegisterHealthCheck("database", func(ctx context.Context) error {
		return app.Pool.Health()
	})
	monitoring.RegisterHealthCheck("local_store", func(ctx context.Context) error {
		_, _, err := local.Get(store.KeyTasks)
		return err
	})
	if app.Redis != nil {
		monitoring.RegisterHealthCheck("redis", func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		})
	}

	log.Println("✅ All services initialized")
	return app, nil
}

func (app *Application) setupRoutes() {
	r := gin.New()

	r.Use(gin.Logger())
	r.Use(middleware.RecoveryWithLog())
	r.Use(monitoring.MetricsMiddleware())

	rateLimit := rate.Limit(float64(app.Config.RateLimit.RequestsPerMin) / 60.0)
	r.Use(middleware.RateLimiter(rateLimit, app.Config.RateLimit.BurstSize))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", monitoring.HealthHandler())
	r.GET("/ready", monitoring.ReadinessHandler())
	r.GET("/live", monitoring.LivenessHandler())
	r.GET("/metrics", monitoring.MetricsHandler())

	taskHandler := handlers.NewTaskHandler(app.Coordinator)
	authHandler := handlers.NewAuthHandler(app.Provider, app.Coordinator)
	settingsHandler := handlers.NewSettingsHandler(app.Coordinator)
	toastHandler := handlers.NewToastHandler(app.Toasts)

	v1 := r.Group("/api/v1")
	{
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/federated", authHandler.LoginFederated)
			authRoutes.POST("/logout", authHandler.Logout)
			authRoutes.POST("/guest", authHandler.ContinueAsGuest)
			authRoutes.GET("/session", authHandler.Session)
			authRoutes.POST("/reload", authHandler.Reload)
			authRoutes.POST("/verify/send", authHandler.SendVerification)
			authRoutes.POST("/verify/confirm", authHandler.ConfirmVerification)
		}

		taskRoutes := v1.Group("/tasks")
		{
			taskRoutes.GET("", taskHandler.GetTasks)
			taskRoutes.POST("", taskHandler.CreateTask)
			taskRoutes.GET("/stats", taskHandler.GetStats)
			taskRoutes.PUT("/:id", taskHandler.UpdateTask)
			taskRoutes.POST("/:id/toggle", taskHandler.ToggleTask)
			taskRoutes.DELETE("/:id", taskHandler.DeleteTask)
		}

		v1.GET("/settings", settingsHandler.GetSettings)
		v1.PATCH("/settings", settingsHandler.UpdateSettings)
		v1.GET("/weather", settingsHandler.GetWeather)
		v1.PUT("/weather", settingsHandler.UpdateWeather)

		v1.GET("/toasts", toastHandler.GetToasts)
		v1.DELETE("/toasts/:id", toastHandler.DismissToast)
	}

	app.Router = r
}

func (app *Application) startServer() {
	addr := app.Config.GetServerAddr()

	app.Server = &http.Server{
		Addr:         addr,
		Handler:      app.Router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("🛑 Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := app.Server.Shutdown(ctx); err != nil {
			log.Printf("❌ Server forced to shutdown: %v", err)
		}

		app.cleanup()
		log.Println("✅ Server stopped gracefully")
	}()

	log.Printf("🚀 Server starting on %s", addr)
	log.Printf("📊 Metrics available at http://%s/metrics", addr)
	log.Printf("💚 Health check at http://%s/health", addr)

	if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("❌ Server failed to start: %v", err)
	}
}

func (app *Application) cleanup() {
	log.Println("🧹 Cleaning up resources...")

	if app.watcherCancel != nil {
		app.watcherCancel()
	}
	if app.Worker != nil {
		app.Worker.Stop()
	}
	if app.Coordinator != nil {
		app.Coordinator.Close()
	}
	if app.Remote != nil {
		app.Remote.Close()
	}
	if app.Toasts != nil {
		app.Toasts.Close()
	}

	if app.Cache != nil {
		if err := app.Cache.Close(); err != nil {
			log.Printf("⚠️  Error closing cache: %v", err)
		}
	}
	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			log.Printf("⚠️  Error closing Redis: %v", err)
		}
	}
	if app.Pool != nil {
		if err := app.Pool.Close(); err != nil {
			log.Printf("⚠️  Error closing database: %v", err)
		}
	}
	if app.Local != nil {
		if err := app.Local.Close(); err != nil {
			log.Printf("⚠️  Error closing local store: %v", err)
		}
	}

	log.Println("✅ Cleanup complete")
}
