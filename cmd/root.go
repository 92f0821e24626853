package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ccz-paraguacu/zoonoses/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "zoonoses",
	Short: "Leishmaniasis and rabies tracking backend",
	Long:  "Stores leishmaniasis cases and rabies vaccinations for the zoonoses control center and places them on the municipal map by resolving their addresses.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
