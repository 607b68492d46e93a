package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cleandl/cleandl/internal/output"
	"github.com/cleandl/cleandl/internal/utils"
)

type BatchEntry struct {
	Link       string `yaml:"link"`
	OutputPath string `yaml:"op,omitempty"`
}

type BatchFile struct {
	Downloads []BatchEntry `yaml:"downloads"`
}

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [YAML_FILE]",
		Short: "Process multiple downloads from a YAML file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			data, err := os.ReadFile(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading YAML file: %v\n", err)
				os.Exit(1)
			}
			var batchFile BatchFile
			if err := yaml.Unmarshal(data, &batchFile); err != nil {
				fmt.Fprintf(os.Stderr, "Error parsing YAML file: %v\n", err)
				os.Exit(1)
			}
			entries := make([]BatchEntry, 0, len(batchFile.Downloads))
			for _, entry := range batchFile.Downloads {
				if entry.Link == "" {
					fmt.Fprintf(os.Stderr, "Warning: Empty link in batch file, skipping...\n")
					continue
				}
				entries = append(entries, entry)
			}
			if len(entries) == 0 {
				fmt.Fprintf(os.Stderr, "No valid entries found in the batch file\n")
				os.Exit(1)
			}

			cfg := loadConfig(cmd)
			utils.InitLogger(cfg.Debug)
			manager, closeHistory := buildManager(cfg)
			for _, entry := range entries {
				if _, err := manager.Add(entry.Link, destinationHint(entry.OutputPath, cfg)); err != nil {
					output.PrintError(fmt.Sprintf("Error adding %s: %v", entry.Link, err))
				}
			}

			display := output.NewDisplay(manager.List)
			if !cfg.Debug {
				utils.SetLogOutput(io.Discard)
				display.Start()
			}
			failures := waitForDownloads(manager)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			manager.Shutdown(shutdownCtx)
			if !cfg.Debug {
				display.Stop()
				utils.SetLogOutput(os.Stderr)
			}
			closeHistory()
			if failures > 0 {
				output.PrintError("Encountered failed operation(s)")
				os.Exit(1)
			}
		},
	}
	return cmd
}
