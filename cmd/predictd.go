package cmd

import (
	"os"
	"os/signal"
	"syscall"

	qhttp "dessertcast/http"
	"dessertcast/ml"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var flagPredictdHost string

var predictdCmd = &cobra.Command{
	Use:   "predictd",
	Short: "Run the local prediction service the form submits to",
	RunE:  runPredictd,
}

func init() {
	predictdCmd.Flags().StringVar(&flagPredictdHost, "host", "127.0.0.1", "Listen address")
	rootCmd.AddCommand(predictdCmd)
}

func runPredictd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srvCfg := qhttp.DefaultServerConfig()
	srvCfg.Host = flagPredictdHost
	srvCfg.Port = cfg.Predictd.Port
	srvCfg.Timeout = cfg.Http.Timeout
	srvCfg.HandlerTimeout = true
	srvCfg.AllowedOrigins = cfg.Http.AllowedOrigins
	srvCfg.MaxBodyBytes = cfg.Http.MaxBodyBytes

	handler := &qhttp.PredictHandler{Forecaster: ml.NewTrendForecaster(), Logger: logger}
	server := qhttp.NewServer(srvCfg, logger, handler.Register)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		return server.Stop()
	})
	return g.Wait()
}
