package cmd

import (
	"os"
	"os/signal"

	"dessertcast/form"
	"dessertcast/logging"
	"dessertcast/predict"
	"dessertcast/tui"

	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Fill in the production form in the terminal",
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	// Console log lines would tear the form.
	quiet := logging.FileOnly(cfg.Log, logLevel)

	client := predict.NewClient(
		predict.WithTimeout(cfg.Predictor.Timeout),
		predict.WithLogger(quiet),
	)
	sess := form.NewSession(form.WithSeed(cfg.Seed()), form.WithLogger(quiet))

	return tui.Run(ctx, sess, client, cmd.OutOrStdout())
}
