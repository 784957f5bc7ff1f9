package huddle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/huddle-chat/huddle/core"
	"github.com/huddle-chat/huddle/pkg/router"
	"github.com/huddle-chat/huddle/pkg/server"
)

// App wires the chat core to its collaborators: the HTTP/websocket surface,
// the SQLite-backed user and auth stores, the configured history backend and
// the disk blob store.
type App struct {
	config      *Config
	db          *core.SQLiteDB
	context     context.Context
	logger      *slog.Logger
	router      *router.Router
	eventRouter *core.EventRouter
	wsManager   *core.ConnManager

	history  core.HistoryStore
	presence *core.PresenceRegistry
	typing   *core.TypingTracker
	blobs    core.BlobStore

	userStore core.UserStore
	authStore core.AuthStore

	authHandler    *AuthHandler
	messageHandler *MessageHandler
	uploadHandler  *UploadHandler

	cleanupFuncs []func(context.Context)

	wg sync.WaitGroup
}

func New(ctx context.Context, config *Config) *App {
	var err error
	app := &App{}
	if ctx == nil {
		ctx, _ = signal.NotifyContext(
			context.Background(),
			syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	}
	app.context = ctx

	if config == nil {
		config, err = LoadConfig()
		if err != nil {
			failed(1, "failed to load config: %v\n", err)
		}
	}
	if err := config.Validate(); err != nil {
		failed(1, FormatValidationErrors(err))
	}
	app.config = config

	app.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				source, _ := a.Value.Any().(*slog.Source)
				if source != nil {
					source.File = filepath.Base(source.File)
				}
			}
			return a
		},
	}))

	sqliteOptions := &core.SQLiteDBOption{
		Mode:        "rwc",
		Cache:       "shared",
		JournalMode: "WAL",
	}
	app.db, err = core.NewSQLiteDB(app.config.SQLite.File, app.config.SQLite.Migrations, sqliteOptions)
	if err != nil {
		failed(1, "failed to open database: %v\n", err)
	}
	if err := app.db.Migrate(); err != nil {
		failed(1, "failed to migrate database: %v\n", err)
	}

	app.userStore = core.NewSQLiteUserStore(app.db.DB)
	app.authStore = core.NewSQLiteAuthStore(app.db.DB, app.userStore,
		[]byte(app.config.Auth.Secret), core.WithTokenExp(app.config.Auth.TokenExp))
	app.seedUsers()

	switch app.config.History.Backend {
	case "sqlite":
		app.history = core.NewSQLiteHistoryStore(app.db.DB, app.config.History.Limit)
	default:
		app.history = core.NewMemoryHistoryStore(app.config.History.Limit)
	}
	app.presence = core.NewPresenceRegistry()
	app.typing = core.NewTypingTracker(core.WithTypingTTL(app.config.Typing.TTL))

	blobs, err := core.NewDiskBlobStore(app.config.Upload.Dir, "/uploads", app.config.Upload.MaxBytes)
	if err != nil {
		failed(1, "failed to open blob store: %v\n", err)
	}
	app.blobs = blobs

	app.wsManager = core.NewConnManager(app.context, &app.wg, app.logger)
	app.wsManager.OnUserConnected(app.onUserConnect)
	app.wsManager.OnConnectionOpened(app.onConnectionOpen)
	app.wsManager.OnUserDisconnected(app.onUserDisconnect)

	app.eventRouter = core.NewEventRouter(app.context, app.logger, app.wsManager)
	app.eventRouter.On(MessageEvent, app.MessageEventHandler)
	app.eventRouter.On(EditMessageEvent, app.EditMessageEventHandler)
	app.eventRouter.On(DeleteMessageEvent, app.DeleteMessageEventHandler)
	app.eventRouter.On(ReadMessageEvent, app.ReadMessageEventHandler)
	app.eventRouter.On(TypingEvent, app.TypingEventHandler)
	app.eventRouter.On(StopTypingEvent, app.StopTypingEventHandler)

	app.authHandler = NewAuthHandler(app.authStore)
	app.messageHandler = NewMessageHandler(app.history)
	app.uploadHandler = NewUploadHandler(app.blobs)
	authMiddleware := core.JWTMiddleware(app.authStore)

	app.router = router.New(router.WithLogger(app.logger))

	app.router.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	app.router.With(authMiddleware).Get("/ws", func(w http.ResponseWriter, r *http.Request) error {
		session := core.SessionFromRequest(r)
		if err := app.wsManager.Connect(session.Username, w, r); err != nil {
			return fmt.Errorf("Connect: %w", err)
		}
		return nil
	})

	api := router.New(router.WithLogger(app.logger))

	api.Route("/auth", func(r *router.Router) {
		r.Post("/signin", app.authHandler.SigninHandler)
		r.With(authMiddleware).Post("/signout", app.authHandler.SignoutHandler)
	})

	api.Group(func(r *router.Router) {
		r.Use(authMiddleware)
		r.Get("/messages", app.messageHandler.GetMessagesHandler)
		r.Get("/messages/search", app.messageHandler.SearchMessagesHandler)
		r.Post("/uploads", app.uploadHandler.UploadHandler)
	})

	app.router.Mount("/api", api)

	// attachment retrieval; the blob store hands out /uploads/{name} URLs
	app.router.Router.Handle("/uploads/*",
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(app.config.Upload.Dir))))

	return app
}

// AddCleanupFunc registers a function to run during shutdown.
func (app *App) AddCleanupFunc(f func(context.Context)) {
	app.cleanupFuncs = append(app.cleanupFuncs, f)
}

// seedUsers creates the configured accounts. Accounts that already exist are
// left untouched.
func (app *App) seedUsers() {
	for _, u := range app.config.Users {
		err := app.userStore.CreateUser(app.context, core.User{
			Name:     u.Name,
			Username: u.Username,
			Password: u.Password,
		})
		if err != nil && !errors.Is(err, core.ErrConflictedUser) {
			failed(1, "failed to seed user %s: %v\n", u.Username, err)
		}
	}
}

// Start runs the event router, the typing expiry sweeper and the HTTP server.
// It blocks until the app context is cancelled and the server has shut down.
func (app *App) Start() {
	app.wg.Add(1)
	go app.eventRouter.Listen(&app.wg)

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.typing.Run(app.context, app.config.Typing.SweepInterval, app.onTypingExpired)
	}()

	app.AddCleanupFunc(func(ctx context.Context) {
		app.wsManager.DisconnectAll()
	})
	app.AddCleanupFunc(func(ctx context.Context) {
		done := make(chan struct{})
		go func() {
			app.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			app.logger.Info("app shutdown gracefully")
		case <-ctx.Done():
			app.logger.Info("app shutdown timed out")
		}
	})
	app.AddCleanupFunc(func(ctx context.Context) {
		app.db.Close()
	})

	srv := &server.Server{
		Server: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", app.config.Hostname, app.config.Port),
			Handler: app.router.Router,
		},
		ShutdownTimeout: 10 * time.Second,
		Logger:          app.logger,
	}
	// run cleanup funcs in registration order once the server has drained
	srv.CleanUpFuncs = app.cleanupFuncs

	app.logger.Info(fmt.Sprintf("huddle running on %s:%d with %s history",
		app.config.Hostname, app.config.Port, app.config.History.Backend))

	srv.Start(app.context)
}

func failed(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(code)
}
