package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ccz-paraguacu/zoonoses/internal/records"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Resolve records without coordinates",
	Long:  "Re-resolves, one at a time, records that have no coordinates or whose confidence is below --min-confidence. Manually pinned records are never touched.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		kind, _ := cmd.Flags().GetString("kind")
		minConf, _ := cmd.Flags().GetFloat64("min-confidence")
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		resolver, _ := newResolver(cfg.Geocode, nil)
		log := zap.L().With(zap.String("command", "backfill"), zap.String("kind", kind))
		log.Info("starting backfill", zap.Float64("min_confidence", minConf), zap.Int("limit", limit))

		stats, err := records.NewLocator(resolver).Backfill(ctx, st, records.BackfillOptions{
			Kind:          kind,
			MinConfidence: minConf,
			Limit:         limit,
		})
		if err != nil {
			return err
		}

		log.Info("backfill complete",
			zap.Int("scanned", stats.Scanned),
			zap.Int("updated", stats.Updated),
			zap.Int("synthesized", stats.Synthesized),
			zap.Int("failed", stats.Failed),
		)
		return printJSON(cmd.OutOrStdout(), stats)
	},
}

func init() {
	backfillCmd.Flags().String("kind", records.KindCases, "record kind: cases or vaccinations")
	backfillCmd.Flags().Float64("min-confidence", 0.3, "re-resolve records below this confidence")
	backfillCmd.Flags().Int("limit", 0, "max records to process (0 = all)")
	rootCmd.AddCommand(backfillCmd)
}
