// Command advisor is the terminal client for the assessment API: it runs the
// questionnaire and chats about the results.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/tui/api"
)

var (
	serverURL string
	token     string
	stateDir  string
	verbose   bool
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "advisor",
	Short: "Digital transformation assessment from the terminal",
	Long: `advisor walks through the readiness questionnaire, submits it and
chats with the AI advisor about the results.

Server and token default to ADVISOR_SERVER and ADVISOR_TOKEN.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
}

func init() {
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", envOr("ADVISOR_SERVER", "http://localhost:8080"), "API base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("ADVISOR_TOKEN"), "Bearer token for authenticated requests")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", defaultStateDir(), "Directory for saved progress and logs")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Overall timeout for one command")

	rootCmd.AddCommand(wizardCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultStateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".advisor"
	}
	return filepath.Join(dir, "advisor")
}

// setupLogging sends logs to a file so they never draw over the terminal UI.
func setupLogging() error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = io.Discard
	if err := os.MkdirAll(stateDir, 0o700); err == nil {
		if f, err := os.OpenFile(filepath.Join(stateDir, "advisor.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600); err == nil {
			w = f
		}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return nil
}

func newClient() *api.Client {
	var opts []api.Option
	if token != "" {
		opts = append(opts, api.WithToken(token))
	}
	return api.New(serverURL, opts...)
}

// commandContext is cancelled on SIGINT/SIGTERM or after --timeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func fail(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
