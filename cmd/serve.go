package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"dessertcast/config"
	"dessertcast/db"
	"dessertcast/form"
	qhttp "dessertcast/http"
	"dessertcast/logging"
	"dessertcast/monitoring"
	"dessertcast/predict"
	"dessertcast/session"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the production form (default)",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := predict.NewClient(
		predict.WithTimeout(cfg.Predictor.Timeout),
		predict.WithLogger(logger),
	)

	seed := cfg.Seed()
	store, err := session.NewStore(cfg.Sessions.Capacity, func() *form.Session {
		return form.NewSession(form.WithSeed(seed), form.WithLogger(logger))
	}, logger)
	if err != nil {
		return err
	}

	hub := monitoring.NewHub(logger)
	handler := &qhttp.FormHandler{
		Sessions:  store,
		Predictor: client,
		Hub:       hub,
		Metrics:   monitoring.NewMetrics(),
		Logger:    logger,
	}

	if cfg.Database.Path != "" {
		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer database.Close()
		handler.History = database
		logger.Info("submission history enabled", zap.String("path", cfg.Database.Path))
	}

	srvCfg := qhttp.DefaultServerConfig()
	srvCfg.Port = cfg.Http.Port
	srvCfg.Timeout = cfg.Http.Timeout
	srvCfg.AllowedOrigins = cfg.Http.AllowedOrigins
	srvCfg.MaxBodyBytes = cfg.Http.MaxBodyBytes
	server := qhttp.NewServer(srvCfg, logger, handler.Register)

	logger.Info("forecasting through prediction service", zap.String("endpoint", client.Endpoint()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		err := config.Watch(gctx, flagConfig, logger, func(c *config.Config) {
			if err := logging.SetLevel(logLevel, c.Log.Level); err != nil {
				logger.Warn("ignoring log level from reloaded config", zap.Error(err))
			}
		})
		if err != nil {
			logger.Warn("config hot reload disabled", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return server.Stop()
	})

	return g.Wait()
}
