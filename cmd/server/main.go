package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"fleetwatch-backend/internal/config"
	"fleetwatch-backend/internal/database"
	"fleetwatch-backend/internal/handlers"
	"fleetwatch-backend/internal/middleware"
	"fleetwatch-backend/internal/models"
	"fleetwatch-backend/internal/monitor"
	"fleetwatch-backend/internal/poller"
	"fleetwatch-backend/internal/services"
	"fleetwatch-backend/internal/services/foresight"
	"fleetwatch-backend/internal/store"
	"fleetwatch-backend/internal/websocket"
)

const banner = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

func fatal(msg string, err error, hints ...string) {
	log.Println(banner)
	log.Printf("❌ FATAL ERROR: %s", msg)
	log.Printf("   Error: %v", err)
	for _, h := range hints {
		log.Printf("   %s", h)
	}
	log.Println(banner)
	log.Fatal(err)
}

func main() {
	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("🚀 FLEETWATCH BACKEND SERVER STARTING")
	log.Println("═══════════════════════════════════════════════════════════════════")

	log.Println("📂 Loading environment variables...")
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Warning: .env file not found, using environment variables from system")
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg, err := config.Load()
	if err != nil {
		fatal("Invalid configuration", err)
	}
	loc := cfg.Location()
	log.Printf("✅ Configuration loaded (timezone %s, dismissals %s, stop log %s)", cfg.Timezone, cfg.DismissalScope, cfg.StopLogPolicy)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database is optional: without it fleets come from FLEETS_FILE and
	// threshold changes do not survive a restart.
	var db *sqlx.DB
	if cfg.DatabaseURL != "" {
		log.Println("🔌 Connecting to database...")
		db, err = database.Connect(cfg.DatabaseURL)
		if err != nil {
			fatal("Database connection failed", err,
				"This is usually caused by:",
				"1. Wrong DATABASE_URL format",
				"2. PostgreSQL service is down",
				"3. Invalid credentials")
		}
		defer db.Close()

		log.Println("🔄 Running database migrations...")
		if err := database.Migrate(db); err != nil {
			fatal("Database migrations failed", err)
		}
		log.Println("✅ Database migrations completed")

		if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
			if err := database.SeedAdmin(db, cfg.AdminEmail, cfg.AdminPassword); err != nil {
				fatal("Admin seeding failed", err)
			}
		}
	} else {
		log.Println("⚠️  DATABASE_URL not set - running from FLEETS_FILE without login")
	}

	fleets, err := loadFleets(ctx, cfg, db)
	if err != nil {
		fatal("Could not load fleets", err)
	}
	fleets, err = config.FilterValidFleets(fleets)
	if err != nil {
		fatal("No fleet can be monitored", err, "Check unit ids and zones in the fleet configuration")
	}

	thresholds := cfg.Thresholds
	if db != nil {
		saved, ok, err := database.LoadThresholds(ctx, db)
		switch {
		case err != nil:
			log.Printf("⚠️  Could not load saved thresholds, using environment: %v", err)
		case ok:
			if err := saved.Validate(); err != nil {
				log.Printf("⚠️  Saved thresholds are invalid, using environment: %v", err)
			} else {
				thresholds = saved
				log.Println("✅ Saved thresholds restored")
			}
		}
	}
	settings := config.NewSettings(thresholds)

	// Redis shares dismissals between replicas and publishes alert notices
	var dismissals monitor.DismissalStore = monitor.NewMemoryDismissals()
	var redisStore *store.RedisStore
	if cfg.RedisAddr != "" {
		redisStore, err = store.NewRedisStore(ctx, cfg)
		if err != nil {
			log.Printf("⚠️  Redis unavailable, keeping dismissals in memory: %v", err)
		} else {
			defer redisStore.Close()
			dismissals = redisStore
			log.Printf("✅ Redis connected at %s", cfg.RedisAddr)
		}
	}

	engine := monitor.NewEngine(monitor.EngineOptions{
		Settings:        settings,
		Dismissals:      dismissals,
		DismissalScope:  cfg.DismissalScope,
		StopLogPolicy:   cfg.StopLogPolicy,
		Location:        loc,
		EventLogDisplay: cfg.EventLogDisplay,
	})
	for _, f := range fleets {
		engine.AddFleet(f)
		log.Printf("🚛 Monitoring fleet %s (%d units, %d zones)", f.Name, len(f.UnitIDs), f.Zones.Count())
	}

	client := foresight.NewClient(foresight.Options{
		URL:             cfg.ForesightURL,
		AuthHeader:      cfg.ForesightAuthHeader,
		UserID:          cfg.ForesightUserID,
		ConnCode:        cfg.ForesightConnCode,
		ReportTimeField: cfg.ForesightTimeField,
		Timeout:         cfg.ForesightTimeout,
	})
	cache := foresight.NewSnapshotCache(client, cfg.SnapshotCacheTTL)
	cache.BoundTTL(func() time.Duration { return settings.Get().RefreshInterval() })
	defer cache.Close()

	hub := websocket.NewHub(engine)
	go hub.Run(ctx)
	log.Println("✅ WebSocket hub started")

	// With Redis, viewers get alerts raised on any replica through the relay;
	// without it the hub is notified directly
	if redisStore != nil {
		go func() {
			if err := redisStore.RelayAlerts(ctx, hub); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("❌ Alert relay stopped: %v", err)
			}
		}()
	}

	notifier := buildNotifier(cfg, loc, redisStore, hub)
	log.Printf("✅ %d alert notifier(s) configured", notifier.Len())

	poll := poller.New(engine, cache, poller.Options{
		Notifier:    notifier,
		Broadcaster: hub,
	})

	settings.OnChange(func(th config.Thresholds) {
		log.Printf("⚙️  Thresholds changed, refreshing every fleet")
		cache.InvalidateAll()
		poll.Trigger("")
	})

	auth := newAuthenticator(cfg)
	r := newRouter(routerDeps{
		db:       db,
		auth:     auth,
		engine:   engine,
		settings: settings,
		hub:      hub,
		poller:   poll,
		cache:    cache,
		redis:    redisStore,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		if err := poll.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("❌ Poller stopped: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		log.Println("🛑 Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("⚠️  HTTP shutdown: %v", err)
		}
	}()

	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("✅ ALL INITIALIZATION COMPLETE")
	log.Printf("🚀 Server starting on http://localhost:%s", cfg.Port)
	log.Println("═══════════════════════════════════════════════════════════════════")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fatal("Server failed to start", err, "Port: "+cfg.Port)
	}

	<-pollDone
	log.Println("👋 Server stopped")
}

func loadFleets(ctx context.Context, cfg *config.Config, db *sqlx.DB) ([]models.Fleet, error) {
	if db != nil {
		fleets, err := database.LoadFleets(ctx, db)
		if err != nil {
			return nil, err
		}
		if len(fleets) > 0 {
			log.Printf("✅ Loaded %d fleet(s) from database", len(fleets))
			return fleets, nil
		}
		log.Printf("⚠️  No fleets in database, reading %s", cfg.FleetsFile)
	}

	fleets, err := config.LoadFleetsFile(cfg.FleetsFile)
	if err != nil {
		return nil, err
	}
	log.Printf("✅ Loaded %d fleet(s) from %s", len(fleets), cfg.FleetsFile)
	return fleets, nil
}

func buildNotifier(cfg *config.Config, loc *time.Location, redisStore *store.RedisStore, hub *websocket.Hub) *services.MultiNotifier {
	var notifiers []services.Notifier

	// Supports both file path and base64-encoded credentials
	var (
		fcm *services.FCMService
		err error
	)
	switch {
	case cfg.FirebaseCredentialsBase64 != "":
		fcm, err = services.NewFCMServiceFromBase64(cfg.FirebaseCredentialsBase64, cfg.FCMAlertTopic)
	case cfg.FirebaseCredentialsFile != "":
		fcm, err = services.NewFCMService(cfg.FirebaseCredentialsFile, cfg.FCMAlertTopic)
	}
	if err != nil {
		log.Printf("⚠️  Failed to initialize FCM: %v (push notifications disabled)", err)
	} else if fcm != nil {
		log.Printf("✅ Firebase Cloud Messaging initialized (topic %s)", cfg.FCMAlertTopic)
		notifiers = append(notifiers, fcm)
	}

	if cfg.SMTPEnabled() {
		notifiers = append(notifiers, services.NewMailNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.AlertEmailTo, loc))
		log.Printf("✅ E-mail alerts enabled for %d recipient(s)", len(cfg.AlertEmailTo))
	}

	if redisStore != nil {
		notifiers = append(notifiers, redisStore)
	} else {
		notifiers = append(notifiers, hub)
	}

	return services.NewMultiNotifier(notifiers...)
}

func newAuthenticator(cfg *config.Config) *middleware.Authenticator {
	secret := cfg.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		log.Println("⚠️  APP_JWT_SECRET not set - tokens will not survive a restart")
	}
	return middleware.NewAuthenticator(secret, 24*time.Hour)
}

type routerDeps struct {
	db       *sqlx.DB
	auth     *middleware.Authenticator
	engine   *monitor.Engine
	settings *config.Settings
	hub      *websocket.Hub
	poller   *poller.Poller
	cache    *foresight.SnapshotCache
	redis    *store.RedisStore
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", handlers.ViewerHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", handlers.Health())

	// WebSocket endpoint (optional token via query param)
	r.Get("/ws", websocket.HandleWebSocket(d.hub, d.auth))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", handlers.Login(d.db, d.auth))

		r.Get("/legend", handlers.GetLegend())
		r.Get("/fleets", handlers.ListFleets(d.engine))
		r.Get("/fleets/{fleet}/dashboard", handlers.GetDashboard(d.engine))
		r.Get("/fleets/{fleet}/events", handlers.ListEvents(d.engine))
		r.Post("/fleets/{fleet}/alerts/{kind}/dismiss", handlers.DismissAlert(d.engine, d.hub))
		r.Post("/fleets/{fleet}/alerts/{kind}/dismiss-all", handlers.DismissAllAlerts(d.engine, d.hub))
		r.Get("/settings", handlers.GetSettings(d.settings))
		r.Get("/stats", handlers.GetStats(map[string]handlers.StatsSource{
			"snapshot_cache": func() interface{} { return d.cache.GetStats() },
			"poller":         func() interface{} { return d.poller.Stats() },
			"viewers": func() interface{} {
				return map[string]interface{}{
					"connected": d.hub.GetClientCount(),
					"by_fleet":  d.hub.ViewersByFleet(),
				}
			},
			"redis": func() interface{} {
				if d.redis == nil {
					return "disabled"
				}
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := d.redis.Ping(ctx); err != nil {
					return err.Error()
				}
				return "ok"
			},
		}))

		// Admin endpoints
		r.Group(func(r chi.Router) {
			r.Use(d.auth.Auth)
			r.Use(middleware.RequireRole(models.RoleAdmin))

			r.Patch("/settings", handlers.UpdateSettings(d.settings, d.db))
			r.Put("/fleets/{fleet}", handlers.PutFleet(d.engine, d.db, d.cache, d.poller))
			r.Post("/users", handlers.CreateUser(d.db))
		})
	})

	return r
}
