package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shelfcheck/backend/config"
	"github.com/shelfcheck/backend/internal/app"
)

var (
	indexCatalog string
	indexFileID  string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Load a catalog JSON file into the configured vector index",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		entries, err := loadCatalog(indexCatalog)
		if err != nil {
			return err
		}
		if indexFileID != "" {
			for i := range entries {
				if entries[i].FileID == "" {
					entries[i].FileID = indexFileID
				}
			}
		}

		cfg, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load configuration")
		}
		a, err := app.New(ctx, cfg, zap.L())
		if err != nil {
			return err
		}
		defer a.Close()

		indexed, err := a.Catalog.Index(ctx, entries)
		if err != nil {
			return eris.Wrapf(err, "index catalog after %d entries", indexed)
		}

		zap.L().Info("index complete",
			zap.String("catalog", indexCatalog),
			zap.Int("received", len(entries)),
			zap.Int("indexed", indexed))
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "indexed %d of %d entries\n", indexed, len(entries))
		return eris.Wrap(err, "write output")
	},
}

func init() {
	indexCmd.Flags().StringVar(&indexCatalog, "catalog", "", "catalog JSON file (required)")
	indexCmd.Flags().StringVar(&indexFileID, "file-id", "", "source file id for entries without one")
	_ = indexCmd.MarkFlagRequired("catalog")
	rootCmd.AddCommand(indexCmd)
}
