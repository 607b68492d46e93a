package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cleandl/cleandl/internal/output"
	"github.com/cleandl/cleandl/internal/storage/sqlite"
	"github.com/cleandl/cleandl/internal/utils"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show finished downloads",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			db, err := sqlite.InitDB(cfg.HistoryDB)
			if err != nil {
				output.PrintError(fmt.Sprintf("Error opening history database: %v", err))
				os.Exit(1)
			}
			defer db.Close()
			records, err := sqlite.NewHistoryRepository(db).All()
			if err != nil {
				output.PrintError(fmt.Sprintf("Error reading history: %v", err))
				os.Exit(1)
			}
			if len(records) == 0 {
				output.PrintInfo("No download history")
				return
			}
			output.PrintHeader("Download history")
			for _, record := range records {
				line := fmt.Sprintf("  %s  %s  %s  %s",
					record.FinishedAt.Format("2006-01-02 15:04"),
					record.Status,
					utils.FormatBytes(uint64(max(record.Size, 0))),
					record.FilePath)
				switch record.Status {
				case "completed":
					if record.ScanStatus == "danger" {
						output.PrintError(line + "  [scan: MALICIOUS]")
					} else if record.ScanStatus == "warning" {
						output.PrintWarning(line + "  [scan: suspicious]")
					} else {
						output.PrintSuccess(line)
					}
				case "failed":
					output.PrintError(line)
				default:
					output.PrintDebug(line)
				}
			}
		},
	}
	return cmd
}
