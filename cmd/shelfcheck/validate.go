package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shelfcheck/backend/config"
	"github.com/shelfcheck/backend/internal/app"
	"github.com/shelfcheck/backend/internal/domain"
	"github.com/shelfcheck/backend/internal/infrastructure/export"
	"github.com/shelfcheck/backend/internal/usecase"
)

var (
	validateStore   int
	validateInput   string
	validateCatalog string
	validateXLSX    string
	validateJSON    bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate shelf prices from model output against a store catalog",
	Long: "Validates the products in a vision model answer against a store catalog. " +
		"With --catalog the catalog is read from a JSON file and searched locally; " +
		"otherwise the configured embedding and index backends are used.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if !domain.ValidStoreID(validateStore) {
			return eris.Errorf("--store must be between %d and %d", domain.MinStoreID, domain.MaxStoreID)
		}

		raw, err := readInput(cmd, validateInput)
		if err != nil {
			return err
		}

		a, err := openApp(ctx, validateCatalog)
		if err != nil {
			return err
		}
		defer a.Close()

		products := a.Normalizer.NormalizeAndDedupe(a.Extractor.Extract(raw))
		results, err := a.Matcher.Validate(ctx, products, validateStore)
		if err != nil {
			return eris.Wrap(err, "validate products")
		}
		summary := usecase.Summarize(results)

		if validateXLSX != "" {
			data, err := export.ValidationXLSX(summary, validateStore)
			if err != nil {
				return err
			}
			if err := os.WriteFile(validateXLSX, data, 0o644); err != nil {
				return eris.Wrapf(err, "write %s", validateXLSX)
			}
			zap.L().Info("wrote workbook", zap.String("path", validateXLSX))
		}

		if validateJSON {
			return writeJSON(cmd, summary)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), usecase.FormatValidationTable(summary, validateStore))
		return eris.Wrap(err, "write table")
	},
}

// openApp builds the usecases. A catalog file selects the local embedder
// and an in-memory index seeded from the file.
func openApp(ctx context.Context, catalogPath string) (*app.App, error) {
	if catalogPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, eris.Wrap(err, "load configuration")
		}
		return app.New(ctx, cfg, zap.L())
	}

	entries, err := loadCatalog(catalogPath)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Default()
	if err != nil {
		return nil, err
	}
	cfg.Embedding.Provider = "local"
	cfg.Embedding.Dimension = 0
	cfg.Index.Type = "memory"
	cfg.Cache.Type = "memory"

	a, err := app.New(ctx, cfg, zap.L())
	if err != nil {
		return nil, err
	}
	if _, err := a.Catalog.Index(ctx, entries); err != nil {
		_ = a.Close()
		return nil, eris.Wrap(err, "index catalog")
	}
	return a, nil
}

// loadCatalog reads a JSON array of catalog entries.
func loadCatalog(path string) ([]domain.CatalogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read catalog %s", path)
	}
	var entries []domain.CatalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrapf(err, "decode catalog %s", path)
	}
	return entries, nil
}

func init() {
	validateCmd.Flags().IntVar(&validateStore, "store", 0, "store number (required)")
	validateCmd.Flags().StringVar(&validateInput, "input", "", "model output file (default stdin)")
	validateCmd.Flags().StringVar(&validateCatalog, "catalog", "", "catalog JSON file searched locally")
	validateCmd.Flags().StringVar(&validateXLSX, "xlsx", "", "also write the results to this workbook")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "print the summary as JSON")
	_ = validateCmd.MarkFlagRequired("store")
	rootCmd.AddCommand(validateCmd)
}
