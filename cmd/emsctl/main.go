package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

func newRootCmd() *cobra.Command {
	var poolID string

	cmd := &cobra.Command{
		Use:           "emsctl",
		Short:         "Run and monitor jobs on a process-mining platform",
		Long:          "emsctl executes data jobs, reloads data models and pushes tables into a data pool, waiting for each operation to finish.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(getEnv("LOG_LEVEL", "info"))
		},
	}

	cmd.PersistentFlags().StringVarP(&poolID, "pool", "p", getEnv("EMS_POOL_ID", ""), "data pool id (env EMS_POOL_ID)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newHealthCmd(&poolID))
	cmd.AddCommand(newExecuteJobCmd(&poolID))
	cmd.AddCommand(newReloadModelCmd(&poolID))
	cmd.AddCommand(newCancelCmd(&poolID))
	cmd.AddCommand(newPushCSVCmd(&poolID))
	cmd.AddCommand(newPushSQLCmd(&poolID))
	cmd.AddCommand(newPushS3Cmd(&poolID))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "emsctl %s (commit: %s)\n", Version, Commit)
		},
	}
}

// setupLogging installs a text handler on stderr at the given level
func setupLogging(logLevel string) {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func execute(ctx context.Context, cmd *cobra.Command) int {
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "emsctl: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, newRootCmd())
	stop()
	os.Exit(code)
}
