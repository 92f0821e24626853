package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ccz-paraguacu/zoonoses/internal/importer"
	"github.com/ccz-paraguacu/zoonoses/internal/records"
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import rabies vaccinations from a spreadsheet",
	Long:  "Loads vaccination records from an .xlsx or .csv campaign sheet, resolves each row's address and upserts the batch. Re-importing the same sheet updates rows in place.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sheet, _ := cmd.Flags().GetString("sheet")
		campaign, _ := cmd.Flags().GetString("campaign")
		noGeocode, _ := cmd.Flags().GetBool("no-geocode")
		batchSize, _ := cmd.Flags().GetInt("batch-size")

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var locator *records.Locator
		if !noGeocode {
			resolver, _ := newResolver(cfg.Geocode, nil)
			locator = records.NewLocator(resolver)
		}

		im := importer.New(st, locator, importer.Options{
			Sheet:     importer.SheetOptions{SheetName: sheet},
			Campaign:  campaign,
			Geocode:   !noGeocode,
			BatchSize: batchSize,
		})
		stats, err := im.Import(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "import vaccinations")
		}

		zap.L().Info("import complete",
			zap.String("file", args[0]),
			zap.Int("rows", stats.Rows),
			zap.Int("imported", stats.Imported),
			zap.Int("skipped", stats.Skipped),
		)
		return printJSON(cmd.OutOrStdout(), stats)
	},
}

func init() {
	importCmd.Flags().String("sheet", "", "worksheet name for .xlsx files (default first sheet)")
	importCmd.Flags().String("campaign", "", "campaign name for rows without one")
	importCmd.Flags().Bool("no-geocode", false, "store rows without resolving addresses")
	importCmd.Flags().Int("batch-size", 500, "rows per database write")
	rootCmd.AddCommand(importCmd)
}
