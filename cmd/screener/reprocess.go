package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ternarybob/screener/internal/models"
	"github.com/ternarybob/screener/internal/services/artifact"
	"github.com/ternarybob/screener/internal/services/normalize"
)

var reprocessCmd = &cobra.Command{
	Use:   "reprocess <in> <out>",
	Short: "Re-split compound fields of an existing artifact",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := artifact.Reprocess(args[0], args[1], normalize.NewDefaultSplitter())
		if err != nil {
			return err
		}

		logger.Info().Int("records", result.Records).Str("output", args[1]).Msg("Reprocessed artifact")
		if result.Sample != nil {
			for _, f := range result.Sample.Fields {
				logger.Info().
					Str("ticker", result.Sample.Ticker).
					Str("label", f.Label).
					Str("before", f.Before.String()).
					Str("after", formatFields(f.After)).
					Msg("Sample")
			}
		}
		return nil
	},
}

func formatFields(fields map[string]models.Value) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%s", k, fields[k].String())
	}
	return strings.Join(parts, " ")
}
