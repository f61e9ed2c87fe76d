// Command server runs the relay API: the token issuance endpoint, the demo
// organization resource, and the background maintenance sweeps.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/pronym/relay/internal/api"
	"github.com/pronym/relay/internal/config"
	"github.com/pronym/relay/internal/domain"
	"github.com/pronym/relay/internal/engine"
	"github.com/pronym/relay/internal/platform/logger"
	"github.com/pronym/relay/internal/platform/postgres"
	"github.com/pronym/relay/internal/service"
	"github.com/pronym/relay/internal/task"
	"github.com/pronym/relay/internal/token"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.MigrateUp(db); err != nil {
		return err
	}
	log.Info("database ready")

	accountStore := postgres.NewPostgresAccountStore(db, log)
	memberStore := postgres.NewPostgresMemberStore(db, log)
	tokenStore := postgres.NewPostgresTokenStore(db, log)
	logStore := postgres.NewPostgresLogStore(db, log)

	tokenService, err := token.NewService(cfg.Auth, tokenStore, memberStore, log)
	if err != nil {
		return fmt.Errorf("failed to create token service: %w", err)
	}
	accountService := service.NewAccountService(db, accountStore, memberStore, log)
	recorder := engine.NewStoreRecorder(logStore, log)

	sweeper := task.NewSweeper(
		tokenService,
		logStore,
		time.Duration(cfg.Task.SweepIntervalMinutes)*time.Minute,
		time.Duration(cfg.Task.LogRetentionDays)*24*time.Hour,
		log,
	)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	opts := api.EndpointOptions{
		RaiseOnFault: cfg.Server.RaiseOnFault,
		Logger:       log,
	}
	getToken := api.NewGetTokenEndpoint(accountService, tokenService, recorder, opts)

	extra, err := demoEndpoints(tokenService, recorder, opts)
	if err != nil {
		return fmt.Errorf("failed to build demo endpoints: %w", err)
	}

	router := api.NewRouter(getToken, extra)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", slog.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// Organization is the demo resource: an account-owned record exercising all
// three relationship kinds. It lives in memory; real deployments register
// their own models against their own sources.
type Organization struct {
	engine.PK
	AccountID  int64       `json:"-"`
	Name       string      `json:"name" validate:"required"`
	Contact    *Contact    `json:"contact" rel:"one"`
	Categories []*Category `json:"categories" rel:"many"`
	Locations  []*Location `json:"locations" rel:"has,fk=OrganizationID"`
}

// Contact is a singular reference saved before its organization.
type Contact struct {
	engine.PK
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone"`
}

// Category is a shared label attached many-to-many.
type Category struct {
	engine.PK
	Name string `json:"name" validate:"required"`
}

// Location is a child record carrying its organization's identifier.
type Location struct {
	engine.PK
	OrganizationID int64  `json:"-"`
	City           string `json:"city" validate:"required"`
}

// demoEndpoints registers the demo models and mounts collection and detail
// endpoints for organizations.
func demoEndpoints(tokens *token.Service, recorder engine.Recorder, opts api.EndpointOptions) (map[string]http.Handler, error) {
	registry := engine.NewRegistry()

	orgs, err := registry.Register(engine.Model{
		Name:       "organization",
		Prototype:  &Organization{},
		Source:     engine.NewMemSource(),
		OwnerField: "AccountID",
	})
	if err != nil {
		return nil, err
	}
	if _, err := registry.Register(engine.Model{
		Name:      "contact",
		Prototype: &Contact{},
		Source:    engine.NewMemSource(),
	}); err != nil {
		return nil, err
	}
	if _, err := registry.Register(engine.Model{
		Name:      "category",
		Prototype: &Category{},
		Source:    engine.NewMemSource(),
	}); err != nil {
		return nil, err
	}
	if _, err := registry.Register(engine.Model{
		Name:      "location",
		Prototype: &Location{},
		Source:    engine.NewMemSource(),
	}); err != nil {
		return nil, err
	}

	collection := &engine.Collection{Schema: orgs, Scope: engine.OwnedScope(orgs)}

	listEndpoint := &engine.Endpoint{
		Name:          "organizations",
		RequireAuth:   true,
		Authenticator: tokens,
		Resource: func(r *http.Request, member *domain.AccountMember) (any, error) {
			return collection, nil
		},
		Actions: map[string]engine.Action{
			http.MethodGet:  &engine.SearchAction{},
			http.MethodPost: engine.NewOwnedCreateAction(orgs),
		},
		Recorder:     recorder,
		RaiseOnFault: opts.RaiseOnFault,
		Logger:       opts.Logger,
	}

	detailEndpoint := &engine.Endpoint{
		Name:          "organization_detail",
		RequireAuth:   true,
		Authenticator: tokens,
		Resource: func(r *http.Request, member *domain.AccountMember) (any, error) {
			id, err := strconv.ParseInt(chi.URLParam(r, "organizationID"), 10, 64)
			if err != nil {
				return nil, nil
			}
			return orgs.Source.Get(r.Context(), id)
		},
		Actions:           engine.DetailActions(orgs),
		AuthorizeResource: engine.OwnedResource(orgs),
		Recorder:          recorder,
		RaiseOnFault:      opts.RaiseOnFault,
		Logger:            opts.Logger,
	}

	return map[string]http.Handler{
		"/organizations":                  listEndpoint,
		"/organizations/{organizationID}": detailEndpoint,
	}, nil
}
