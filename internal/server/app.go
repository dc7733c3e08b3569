// Package server builds the application graph once at startup and runs the
// HTTP, gRPC and session sweeper loops until the process is told to stop.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/muneebhashone/gqlauth/internal/logging"
	"github.com/muneebhashone/gqlauth/internal/server/auth"
	"github.com/muneebhashone/gqlauth/internal/server/authctx"
	"github.com/muneebhashone/gqlauth/internal/server/config"
	"github.com/muneebhashone/gqlauth/internal/server/graph"
	"github.com/muneebhashone/gqlauth/internal/server/httpapi"
	"github.com/muneebhashone/gqlauth/internal/server/metrics"
	"github.com/muneebhashone/gqlauth/internal/server/repositories/repomanager"
	"github.com/muneebhashone/gqlauth/internal/server/services"
	"github.com/muneebhashone/gqlauth/internal/server/sessions"
	"github.com/muneebhashone/gqlauth/internal/server/strategies"
	"github.com/muneebhashone/gqlauth/internal/server/subscriptions"
	"github.com/muneebhashone/gqlauth/internal/tracing"
	"github.com/redis/go-redis/v9"

	gs "github.com/muneebhashone/gqlauth/internal/server/grpc"
)

const (
	shutdownTimeout = 10 * time.Second
	serviceName     = "gqlauth"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	sessions *sessions.Manager
	metrics  *metrics.Metrics
	grpc     *gs.GRPCServer
	http     *http.Server
	closers  []func() error
}

// NewApp connects to the backing stores, runs migrations and wires every
// component. Nothing is started.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogLevel)
	app := &App{config: c, logger: logger}

	shutdownTracing, err := tracing.Setup(ctx, c.OTELEndpoint, serviceName)
	if err != nil {
		return nil, fmt.Errorf("tracing init error: %w", err)
	}
	// registered first so it flushes after everything else has closed
	app.closers = append(app.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return shutdownTracing(ctx)
	})

	db, err := repomanager.Open(ctx, c.DatabaseURL)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	app.closers = append(app.closers, db.Close)

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.close()
		return nil, err
	}

	store, err := app.openSessionStore(ctx, rm)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("session store init error: %w", err)
	}
	app.sessions, err = sessions.NewManager(store, sessions.Options{
		Secret: []byte(c.SessionSecret),
		MaxAge: c.SessionMaxAge,
		Secure: c.SessionCookieSecure,
	}, logger)
	if err != nil {
		app.close()
		return nil, err
	}

	codec := auth.NewCodec([]byte(c.JWTSecret), c.TokenTTL)
	app.metrics = metrics.New()

	verifier := services.NewCredentialVerifier(rm.Users(db), logger)
	pubsub := graph.NewPubSub(0)
	users := services.NewUserService(db, rm, pubsub, logger)

	registry, err := app.buildRegistry(ctx, verifier)
	if err != nil {
		app.close()
		return nil, err
	}

	policy, err := authctx.ParsePolicy(c.AuthPolicy)
	if err != nil {
		app.close()
		return nil, err
	}
	resolver := authctx.NewResolver(codec, policy, logger, authctx.WithRecorder(app.metrics))

	schema, err := graph.NewSchema(graph.NewResolver(users, pubsub, logger))
	if err != nil {
		app.close()
		return nil, fmt.Errorf("schema: %w", err)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Sessions:      app.sessions,
		Tokens:        codec,
		Strategies:    registry,
		GraphQL:       graph.NewHandler(schema, resolver, logger),
		Subscriptions: subscriptions.NewBridge(schema, app.sessions, resolver, logger, subscriptions.WithGauge(app.metrics)),
		Metrics:       app.metrics.Handler(),
		Logins:        app.metrics,
		Logger:        logger,
		TokenMaxAge:   c.TokenTTL,
		SecureCookies: c.SessionCookieSecure,
	})
	app.http = &http.Server{
		Addr:              c.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	app.grpc = gs.NewGRPCServer(c.GRPCAddr, logger, codec)

	logger.Info(ctx, "application wired",
		"session_store", c.SessionStore,
		"auth_policy", string(policy),
		"tracing", c.OTELEndpoint != "",
		"strategies", registry.Names())
	return app, nil
}

func (app *App) openSessionStore(ctx context.Context, rm *repomanager.PostgresRepositoryManager) (sessions.Store, error) {
	switch app.config.SessionStore {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: app.config.RedisAddr})
		store, err := sessions.NewRedisStore(client, "")
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, store.Close)
		if err := store.Ping(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case config.StoreMongo:
		client, db, err := sessions.Connect(ctx, app.config.MongoURL)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return client.Disconnect(ctx)
		})
		return sessions.NewMongoStore(ctx, db)
	default:
		return rm.Sessions(app.db), nil
	}
}

func (app *App) buildRegistry(ctx context.Context, verifier *services.CredentialVerifier) (*strategies.Registry, error) {
	registry := strategies.NewRegistry()
	if err := registry.Register(strategies.LocalName, strategies.NewLocalStrategy(verifier)); err != nil {
		return nil, err
	}

	fetcher, err := strategies.NewOIDCProfileFetcher(ctx, app.config.GoogleIssuer, app.config.GoogleClientID)
	if err != nil {
		return nil, err
	}
	google := strategies.NewOAuthStrategy(strategies.OAuthOptions{
		ClientID:     app.config.GoogleClientID,
		ClientSecret: app.config.GoogleClientSecret,
		RedirectURL:  app.config.GoogleCallbackURL,
		Endpoint:     fetcher.Endpoint(),
		SecureCookie: app.config.SessionCookieSecure,
	}, fetcher, verifier, app.logger)
	if err := registry.Register(strategies.GoogleName, google); err != nil {
		return nil, err
	}
	return registry, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.http.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "http server listening", "address", app.http.Addr)
	if err := app.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.grpc.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until SIGINT/SIGTERM, ctx cancellation or a server failure,
// then shuts everything down.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		sw := &sweeper{
			sessions: app.sessions,
			swept:    app.metrics,
			health:   app.grpc,
			logger:   app.logger,
		}
		sw.run(ctx, app.config.SweepInterval)
	}()

	wg.Wait()
	app.close()
	app.logger.Info(context.Background(), "app stopped")
}

func (app *App) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
	app.closers = nil
}
