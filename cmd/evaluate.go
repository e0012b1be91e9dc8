package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"dessertcast/backtest"
	"dessertcast/ml"
	"dessertcast/pipeline"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var flagEvalJSON bool

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <series.csv>",
	Short: "Backtest the forecaster over a monthly production history",
	Long: "Reads a CSV of month,production rows, drops invalid and duplicate months, " +
		"then forecasts every month from the twelve before it and reports the error.",
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().BoolVar(&flagEvalJSON, "json", false, "Print the full result as JSON")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	obs, err := pipeline.ReadSeriesFile(args[0])
	if err != nil {
		return err
	}

	cleaned, issues := pipeline.NewDataCleaner(logger).Clean(obs)
	for _, issue := range issues {
		logger.Warn("series issue",
			zap.String("rule", issue.Rule),
			zap.String("month", issue.Month.Format("2006-01")),
			zap.String("message", issue.Message))
	}

	engine := backtest.NewEngine(ml.NewTrendForecaster(), logger)
	res, err := engine.Run(cmd.Context(), pipeline.Values(cleaned))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flagEvalJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printSummary(out, args[0], len(issues), res.Summary)
	return nil
}

func printSummary(w io.Writer, source string, issues int, s backtest.Summary) {
	title := lipgloss.NewStyle().Bold(true)
	label := lipgloss.NewStyle().Width(10).Foreground(lipgloss.Color("#6B7280"))

	fmt.Fprintln(w, title.Render("Backtest of "+source))
	fmt.Fprintf(w, "%s %d\n", label.Render("forecasts"), s.Count)
	fmt.Fprintf(w, "%s %d\n", label.Render("issues"), issues)
	fmt.Fprintf(w, "%s %.2fM gallons\n", label.Render("MAE"), s.MAE)
	fmt.Fprintf(w, "%s %.2fM gallons\n", label.Render("RMSE"), s.RMSE)
	fmt.Fprintf(w, "%s %.2f%%\n", label.Render("MAPE"), s.MAPE)
	fmt.Fprintf(w, "%s %+.2fM gallons\n", label.Render("bias"), s.Bias)
}
