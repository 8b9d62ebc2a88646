package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-extract/internal/evaluation"
	"github.com/joseph-ayodele/invoice-extract/internal/export"
)

var evaluateCMD = &cobra.Command{
	Use:   "evaluate <ground-truth.json> <prediction.json>",
	Short: "Score predicted records against ground truth",
	Long: "Each file holds one JSON object, or an array of objects scored pairwise. " +
		"Prints metrics as JSON; --xlsx also writes a workbook.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger := setup(cmd)

		truth, err := readRecords(args[0])
		if err != nil {
			return err
		}
		pred, err := readRecords(args[1])
		if err != nil {
			return err
		}
		if len(truth) != len(pred) {
			return fmt.Errorf("ground truth has %d records, prediction has %d", len(truth), len(pred))
		}

		pairs := make([]evaluation.Pair, len(truth))
		for i := range truth {
			pairs[i] = evaluation.Pair{ID: strconv.Itoa(i + 1), GroundTruth: truth[i], Prediction: pred[i]}
		}
		rows, sum, err := evaluation.EvaluateBatch(cmd.Context(), pairs, logger)
		if err != nil {
			return err
		}

		if path, _ := cmd.Flags().GetString("xlsx"); path != "" {
			data, err := export.NewService(nil, logger).EvaluationXLSX(rows, sum)
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
		}
		if len(rows) == 1 {
			return writeJSON(cmd.OutOrStdout(), rows[0].Metrics)
		}
		return writeJSON(cmd.OutOrStdout(), map[string]any{"rows": rows, "summary": sum})
	},
}

func init() {
	evaluateCMD.Flags().String("xlsx", "", "also write the results to this workbook")
}

func readRecords(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var many []map[string]any
	if err := json.Unmarshal(data, &many); err == nil {
		return many, nil
	}
	var one map[string]any
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("%s: expected a JSON object or array of objects: %w", path, err)
	}
	return []map[string]any{one}, nil
}
