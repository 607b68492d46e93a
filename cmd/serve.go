package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleandl/cleandl/internal/notify"
	"github.com/cleandl/cleandl/internal/output"
	"github.com/cleandl/cleandl/internal/utils"
)

func newServeCmd() *cobra.Command {
	var listenAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run in the background and accept download requests over HTTP",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			if cmd.Flags().Changed("listen") {
				cfg.ListenAddr = listenAddr
			}
			utils.InitLogger(cfg.Debug)
			manager, closeHistory := buildManager(cfg)
			defer closeHistory()

			listener := notify.NewListener(cfg.ListenAddr, func(url, filename string) (string, error) {
				outputPath := ""
				if filename != "" {
					outputPath = utils.SanitizeFilename(filename)
				}
				if cfg.DownloadDir != "" && cfg.DownloadDir != "." {
					outputPath = filepath.Join(cfg.DownloadDir, outputPath)
				}
				return manager.Add(url, outputPath)
			})
			errCh := make(chan error, 1)
			go func() { errCh <- listener.Start() }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				if err != nil {
					output.PrintError(fmt.Sprintf("Listener error: %v", err))
					os.Exit(1)
				}
			case <-sigCh:
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			listener.Stop(shutdownCtx)
			if err := manager.Shutdown(shutdownCtx); err != nil {
				output.PrintWarning(fmt.Sprintf("Shutdown incomplete: %v", err))
			}
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "127.0.0.1:8077", "Address for the download request listener")
	return cmd
}
