package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/metrics-bridge/internal/api"
	"github.com/isdelr/metrics-bridge/internal/auth"
	"github.com/isdelr/metrics-bridge/internal/config"
	"github.com/isdelr/metrics-bridge/internal/database"
	"github.com/isdelr/metrics-bridge/internal/docker"
	"github.com/isdelr/metrics-bridge/internal/host"
	"github.com/isdelr/metrics-bridge/internal/logger"
	"github.com/isdelr/metrics-bridge/internal/monitoring"
	"github.com/isdelr/metrics-bridge/internal/services"
	"github.com/isdelr/metrics-bridge/internal/websocket"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP bridge",
	Long: `Start the HTTP API, the console stream and the metrics history jobs.

In local host mode the bridge also runs an in-process 20 TPS game loop.
In rcon mode it talks to an existing server over RCON, optionally finding
the RCON port through the Docker container named by rcon.container.

Examples:
  metrics-bridge serve
  metrics-bridge serve --port 9000 --web-dir ./web
  METRICSBRIDGE_HOST_MODE=rcon METRICSBRIDGE_RCON_ADDR=127.0.0.1:25575 metrics-bridge serve`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCommand(cmd)
	},
}

func serveCommand(cmd *cobra.Command) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Level, cfg.Log.Pretty)

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Stop()

	// Set up services
	console := services.NewConsoleService(cfg.ConsoleMaxLines, hub)
	users, err := services.NewUserService(cfg.UsersPath, services.DefaultHashParams)
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}
	sessions := services.NewSessionService(users, cfg.SessionTimeout)
	events := services.NewEventService(db)
	history := services.NewHistoryService(db)

	sampler := monitoring.NewSampler()
	srv, stopHost, err := newHost(cfg, console, sampler)
	if err != nil {
		return err
	}
	defer stopHost()

	metrics := services.NewMetricsService(sampler, srv, cfg.WorldDir)
	admin := services.NewAdminService(srv, users, sessions, console, events)

	tickets, err := auth.NewTicketIssuer(nil, auth.DefaultTicketTTL)
	if err != nil {
		return err
	}
	authorizer := auth.NewAuthorizer(
		auth.SessionStrategy{Sessions: sessions},
		auth.StaticTokenStrategy{Secret: cfg.Token},
	)
	if cfg.Token == "" {
		log.Info().Msg("No legacy token configured; only session logins are accepted")
	}

	// Set up and run the metrics history scheduler
	updater := monitoring.NewStatUpdater(metrics, history, events)
	scheduler, err := monitoring.NewScheduler(updater, cfg.History.RecordSchedule, cfg.History.PruneSchedule, cfg.History.Retention)
	if err != nil {
		return err
	}
	go scheduler.Run()
	defer scheduler.Stop()

	router := api.NewRouter(api.Dependencies{
		Hub:            hub,
		Authorizer:     authorizer,
		Tickets:        tickets,
		Users:          users,
		Sessions:       sessions,
		Metrics:        metrics,
		History:        history,
		Admin:          admin,
		Console:        console,
		Events:         events,
		AllowedOrigins: cfg.AllowedOrigins,
		WebDir:         cfg.WebDir,
	})

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Str("host_mode", cfg.Host.Mode).Msg("Metrics bridge starting")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
	}
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exiting")
	return nil
}

// newHost builds the configured game server collaborator and returns a
// function that stops it.
func newHost(cfg config.Config, console *services.ConsoleService, sampler *monitoring.Sampler) (host.Server, func(), error) {
	switch cfg.Host.Mode {
	case config.HostModeRCON:
		resolve := host.StaticAddr(cfg.RCON.Addr)
		if cfg.RCON.Container != "" {
			dc, err := docker.New()
			if err != nil {
				return nil, nil, fmt.Errorf("failed to initialize Docker client: %w", err)
			}
			container := cfg.RCON.Container
			resolve = func(ctx context.Context) (string, error) {
				return dc.RCONAddr(ctx, container)
			}
		}
		log.Warn().Msg("RCON host mode: tick timings are not observable, TPS will report as unavailable")
		return host.NewRCON(resolve, cfg.RCON.Password), func() {}, nil
	default:
		local := host.NewLocal(cfg.Host.Version, console)
		local.OnTickEnd(sampler.OnTickEnd)
		go local.Run()
		return local, local.Stop, nil
	}
}
