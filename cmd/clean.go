package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cleandl/cleandl/internal/output"
	"github.com/cleandl/cleandl/internal/storage/sqlite"
)

func newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Clear the download history",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			db, err := sqlite.InitDB(cfg.HistoryDB)
			if err != nil {
				output.PrintError(fmt.Sprintf("Error opening history database: %v", err))
				os.Exit(1)
			}
			defer db.Close()
			if err := sqlite.NewHistoryRepository(db).Clear(); err != nil {
				output.PrintError(fmt.Sprintf("Error clearing history: %v", err))
				os.Exit(1)
			}
			output.PrintSuccess("Download history cleared")
		},
	}
	return cmd
}
