package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-extract/internal/ocr"
)

var ocrCMD = &cobra.Command{
	Use:   "ocr <image>",
	Short: "Recognize text in an invoice image",
	Long:  "Runs one engine (--engine) or, with --compare, every configured engine concurrently.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := setup(cmd)

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		engines, err := ocr.NewRegistryFromConfig(cfg.OCR, logger)
		if err != nil {
			return err
		}

		if compare, _ := cmd.Flags().GetBool("compare"); compare {
			return writeJSON(cmd.OutOrStdout(), engines.RunAll(cmd.Context(), data))
		}
		engine, _ := cmd.Flags().GetString("engine")
		res, err := engines.Recognize(cmd.Context(), engine, data)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	ocrCMD.Flags().String("engine", "tesseract", "tesseract, easy, paddle or doctr")
	ocrCMD.Flags().Bool("compare", false, "run every configured engine")
}
