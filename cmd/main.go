package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gaggiuino_mcp/internal/app"
	"gaggiuino_mcp/internal/config"
	"gaggiuino_mcp/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const shutdownTimeout = 2 * time.Second

var configFile string

var rootCmd = &cobra.Command{
	Use:   "gaggiuino-mcp",
	Short: "Gaggiuino MCP Server",
	Long:  `Expose a Gaggiuino espresso machine as MCP tools over stdio or HTTP.`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tools (default)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the server name and version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s v%s\n", config.ServerName, config.ServerVersion)
	},
}

func init() {
	for _, c := range []*cobra.Command{rootCmd, serveCmd} {
		config.RegisterFlags(c.Flags())
		c.Flags().StringVar(&configFile, "config", "", "Config file (default configs/config.yml when present)")
	}
	rootCmd.AddCommand(serveCmd, versionCmd)
	rootCmd.SilenceUsage = true
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viper.New()
	config.SetDefaults(v)
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return fmt.Errorf("error reading config: %w", err)
	}

	// init logger
	log := logger.Get(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	a := app.New(cfg, log)

	stop := waitForShutdown(a, log)
	defer stop()

	if err := a.Run(context.Background()); err != nil {
		log.Errorw("server stopped with error", "err", err)
		return err
	}
	return nil
}

// waitForShutdown shuts the app down on SIGINT or SIGTERM. The returned
// func releases the signal handler.
func waitForShutdown(a *app.App, log *logger.Logger) func() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case <-quit:
		case <-done:
			return
		}
		log.Infow("shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Shutdown(ctx); err != nil {
			log.Warnw("server forced to shutdown", "err", err)
		}
	}()

	return func() {
		signal.Stop(quit)
		close(done)
	}
}
