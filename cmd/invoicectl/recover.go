package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-extract/internal/core"
	"github.com/joseph-ayodele/invoice-extract/internal/llm"
)

var recoverCMD = &cobra.Command{
	Use:   "recover [file|-]",
	Short: "Recover an invoice record from model output",
	Long: "Reads model output (or, with --infer, invoice text to send to the model) " +
		"and prints the recovered record, the parse stage and any warnings as JSON.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := setup(cmd)
		in, err := readInput(cmd, args)
		if err != nil {
			return err
		}

		infer, _ := cmd.Flags().GetBool("infer")
		var gen llm.Generator
		if infer {
			if gen = core.NewGenerator(cfg.LLM, logger); gen == nil {
				return fmt.Errorf("--infer needs a model backend: set LLM_BASE_URL or LLM_API_KEY")
			}
		}
		ex, err := llm.NewExtractor(gen, cfg.LLM.Instruction, logger)
		if err != nil {
			return err
		}

		var res llm.ExtractResult
		if infer {
			res, err = ex.ExtractFields(cmd.Context(), string(in))
		} else {
			res, err = ex.ExtractFromOutput(cmd.Context(), string(in))
		}
		if err != nil {
			return err
		}

		out := map[string]any{
			"record":   res.Record,
			"stage":    res.Outcome.Terminal(),
			"path":     res.Outcome.Path,
			"repaired": res.Outcome.NeededRepair(),
			"warnings": res.Warnings,
		}
		if fieldsOnly, _ := cmd.Flags().GetBool("fields"); fieldsOnly {
			return writeJSON(cmd.OutOrStdout(), res.Fields)
		}
		return writeJSON(cmd.OutOrStdout(), out)
	},
}

func init() {
	recoverCMD.Flags().Bool("infer", false, "treat input as invoice text and run the model first")
	recoverCMD.Flags().Bool("fields", false, "print only the typed invoice fields")
}
