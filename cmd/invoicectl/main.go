package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-extract/internal/common"
)

var mainCMD = &cobra.Command{
	Use:           "invoicectl",
	Short:         "Invoice extraction toolbox",
	Long:          "Recover JSON records from model output, run OCR, preprocess images and score extractions.",
	SilenceUsage:  true,
	SilenceErrors: false,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	mainCMD.PersistentFlags().String("log-level", "", "override LOG_LEVEL")
	mainCMD.AddCommand(recoverCMD, evaluateCMD, preprocessCMD, ocrCMD, dbhealthCMD, batchCMD)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := mainCMD.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// setup loads env config and a stderr logger so stdout stays machine readable.
func setup(cmd *cobra.Command) (*common.Config, *slog.Logger) {
	cfg := common.LoadConfig()
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	logger := common.NewLoggerTo(cmd.ErrOrStderr(), cfg.Log)
	slog.SetDefault(logger)
	return cfg, logger
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readInput reads the named file, or stdin for "-" or no argument.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}
