package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/invoice-extract/internal/imgprep"
)

var preprocessCMD = &cobra.Command{
	Use:   "preprocess <image> <out.png>",
	Short: "Binarize an invoice image for OCR",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger := setup(cmd)

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		img, mime, err := imgprep.Decode(data)
		if err != nil {
			return err
		}

		cfg := imgprep.Default()
		if only, _ := cmd.Flags().GetBool("threshold-only"); only {
			cfg = imgprep.ThresholdOnly()
		}
		gray, cleaned := imgprep.Preprocess(img, cfg)

		out := cleaned
		if keepGray, _ := cmd.Flags().GetBool("gray"); keepGray {
			out = gray
		}
		png, err := imgprep.EncodePNG(out)
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[1], png, 0o644); err != nil {
			return err
		}
		logger.Info("preprocess.ok", "in", args[0], "mime", mime, "out", args[1],
			"width", out.Bounds().Dx(), "height", out.Bounds().Dy())
		return nil
	},
}

func init() {
	preprocessCMD.Flags().Bool("threshold-only", false, "skip resize and blur, only grayscale and threshold")
	preprocessCMD.Flags().Bool("gray", false, "write the grayscale image instead of the binarized one")
}
