package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shelfcheck/backend/internal/domain"
	"github.com/shelfcheck/backend/internal/usecase"
)

var extractInput string

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Recover normalized products from vision model output",
	RunE: func(cmd *cobra.Command, _ []string) error {
		raw, err := readInput(cmd, extractInput)
		if err != nil {
			return err
		}

		logger := zap.L()
		extracted := usecase.NewProductExtractor(logger).Extract(raw)
		products, stats := usecase.NewNormalizer(logger).Normalize(extracted)

		return writeJSON(cmd, struct {
			Products []domain.ExtractedProduct `json:"products"`
			Stats    usecase.NormalizeStats    `json:"stats"`
		}{products, stats})
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractInput, "input", "", "model output file (default stdin)")
	rootCmd.AddCommand(extractCmd)
}
