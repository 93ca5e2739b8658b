package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shelfcheck/backend/internal/domain"
	"github.com/shelfcheck/backend/internal/usecase"
)

var intentCmd = &cobra.Command{
	Use:   "intent <message>",
	Short: "Parse the store number and search phrase of a chat message",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := joinArgs(args)
		if text == "" {
			return eris.New("message is empty")
		}

		query, greeting := usecase.NewIntentParser(zap.L()).Parse(text)
		return writeJSON(cmd, struct {
			Query    domain.StoreQuery `json:"query"`
			HasStore bool              `json:"hasStore"`
			Greeting bool              `json:"greeting"`
		}{query, query.HasStore(), greeting})
	},
}

func init() {
	rootCmd.AddCommand(intentCmd)
}
