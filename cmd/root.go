package cmd

import (
	"context"
	"fmt"
	"io"
	u "net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleandl/cleandl/internal/config"
	"github.com/cleandl/cleandl/internal/engine"
	"github.com/cleandl/cleandl/internal/output"
	"github.com/cleandl/cleandl/internal/scan"
	"github.com/cleandl/cleandl/internal/storage"
	"github.com/cleandl/cleandl/internal/storage/sqlite"
	"github.com/cleandl/cleandl/internal/utils"
)

var (
	configPath    string
	outputPath    string
	workers       int
	connections   int
	retries       int
	rateLimit     int64
	timeout       time.Duration
	kaTimeout     time.Duration
	userAgent     string
	proxyURL      string
	proxyUsername string
	proxyPassword string
	headers       []string
	noScan        bool
	debug         bool
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:     "cleandl [URL]...",
	Short:   "cleandl is a download manager with checksum and malware verification",
	Version: Version,
	Args:    cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			output.PrintError("No URL provided")
			os.Exit(1)
		}
		for _, arg := range args {
			if _, err := u.Parse(arg); err != nil {
				output.PrintError(fmt.Sprintf("Invalid URL: %s", arg))
				os.Exit(1)
			}
		}
		cfg := loadConfig(cmd)
		utils.InitLogger(cfg.Debug)
		manager, closeHistory := buildManager(cfg)
		dest := destinationHint(outputPath, cfg)
		for _, arg := range args {
			if _, err := manager.Add(arg, dest); err != nil {
				output.PrintError(fmt.Sprintf("Error adding %s: %v", arg, err))
			}
		}

		display := output.NewDisplay(manager.List)
		if !cfg.Debug {
			// Keep log lines off the terminal while the display redraws it
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

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// destinationHint resolves the destination handed to the engine. An
// explicit output path wins; otherwise downloads land in the configured
// download directory, which is created on first use.
func destinationHint(flagValue string, cfg config.Config) string {
	if flagValue != "" {
		return flagValue
	}
	if cfg.DownloadDir == "" || cfg.DownloadDir == "." {
		return ""
	}
	if err := os.MkdirAll(cfg.DownloadDir, 0755); err != nil {
		output.PrintWarning(fmt.Sprintf("Cannot create download directory %s: %v", cfg.DownloadDir, err))
		return ""
	}
	return cfg.DownloadDir
}

// loadConfig layers file and environment configuration, then applies any
// flags the user set explicitly on top.
func loadConfig(cmd *cobra.Command) config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		output.PrintError(fmt.Sprintf("Error loading config: %v", err))
		os.Exit(1)
	}
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.MaxParallel = workers
	}
	if flags.Changed("connections") {
		cfg.Connections = connections
	}
	if flags.Changed("retries") {
		cfg.MaxRetries = retries
	}
	if flags.Changed("rate-limit") {
		cfg.RateLimit = rateLimit
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if flags.Changed("keep-alive-timeout") {
		cfg.KATimeout = kaTimeout
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent = userAgent
	}
	if flags.Changed("proxy") {
		cfg.Proxy = proxyURL
	}
	if flags.Changed("proxy-username") {
		cfg.ProxyUsername = proxyUsername
	}
	if flags.Changed("proxy-password") {
		cfg.ProxyPassword = proxyPassword
	}
	if debug {
		cfg.Debug = true
	}
	return cfg
}

func buildManager(cfg config.Config) (*engine.Manager, func()) {
	if cfg.UserAgent == "randomize" {
		cfg.UserAgent = utils.GetRandomUserAgent()
	}
	// Proxy auth may be embedded in the URL
	if parsedProxy, err := u.Parse(cfg.Proxy); err == nil && parsedProxy.User != nil && cfg.ProxyUsername == "" {
		cfg.ProxyUsername = parsedProxy.User.Username()
		if password, set := parsedProxy.User.Password(); set {
			cfg.ProxyPassword = password
		}
		parsedProxy.User = nil
		cfg.Proxy = parsedProxy.String()
	}

	var scanner scan.Provider
	if noScan {
		scanner = &scan.Heuristic{}
	} else {
		scanner = scan.NewProvider(cfg.VirusTotalKey)
	}

	var history storage.Repository
	closeHistory := func() {}
	if cfg.HistoryDB != "" {
		db, err := sqlite.InitDB(cfg.HistoryDB)
		if err != nil {
			output.PrintWarning(fmt.Sprintf("History disabled: %v", err))
		} else {
			history = sqlite.NewHistoryRepository(db)
			closeHistory = func() { db.Close() }
		}
	}

	manager := engine.NewManager(engine.Options{
		MaxParallel: cfg.MaxParallel,
		Connections: cfg.Connections,
		MaxRetries:  cfg.MaxRetries,
		RetryDelay:  cfg.RetryDelay,
		RateLimit:   cfg.RateLimit,
		ClientConfig: utils.HTTPClientConfig{
			Timeout:       cfg.Timeout,
			KATimeout:     cfg.KATimeout,
			ProxyURL:      cfg.Proxy,
			ProxyUsername: cfg.ProxyUsername,
			ProxyPassword: cfg.ProxyPassword,
			UserAgent:     cfg.UserAgent,
			Headers:       utils.ParseHeaderArgs(headers),
		},
		Scanner: scanner,
		History: history,
	})
	return manager, closeHistory
}

// waitForDownloads blocks until every download reaches a terminal state
// and returns the number of failures.
func waitForDownloads(manager *engine.Manager) int {
	for {
		snaps := manager.List()
		pending := 0
		failures := 0
		for _, snap := range snaps {
			if !snap.Status.IsTerminal() {
				pending++
			}
			if snap.Status == engine.StatusFailed {
				failures++
			}
		}
		if pending == 0 {
			return failures
		}
		time.Sleep(300 * time.Millisecond)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 5, "Number of downloads to run in parallel")
	rootCmd.PersistentFlags().IntVarP(&connections, "connections", "c", 8, "Number of connections per download")
	rootCmd.PersistentFlags().IntVarP(&retries, "retries", "r", 5, "Max retries per chunk before the download fails")
	rootCmd.PersistentFlags().Int64Var(&rateLimit, "rate-limit", 0, "Per-download bandwidth limit in bytes/sec (0 disables)")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 3*time.Minute, "Connection timeout (eg. 5s, 10m)")
	rootCmd.PersistentFlags().DurationVarP(&kaTimeout, "keep-alive-timeout", "k", 90*time.Second, "Keep-alive timeout for client (eg. 10s, 1m, 80s)")
	rootCmd.PersistentFlags().StringVarP(&userAgent, "user-agent", "a", utils.ToolUserAgent, "User agent ('randomize' picks a browser agent)")
	rootCmd.PersistentFlags().StringVarP(&proxyURL, "proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	rootCmd.PersistentFlags().StringVar(&proxyUsername, "proxy-username", "", "Proxy username (if not provided in proxy URL)")
	rootCmd.PersistentFlags().StringVar(&proxyPassword, "proxy-password", "", "Proxy password (if not provided in proxy URL)")
	rootCmd.PersistentFlags().StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers (like 'Authorization: Basic dXNlcjpwYXNz'); can be specified multiple times")
	rootCmd.PersistentFlags().BoolVar(&noScan, "no-scan", false, "Skip the malware lookup and use local heuristics only")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (file name is inferred if not provided)")

	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newCleanCmd())
}
