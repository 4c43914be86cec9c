package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/photo-finder/internal/faces"
	"github.com/kozaktomas/photo-finder/internal/logger"
	"github.com/kozaktomas/photo-finder/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Photo Finder HTTP API.
Scans are submitted as multipart uploads and run in the background; progress
is streamed over server-sent events and matched photos can be downloaded.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (defaults to WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (defaults to WEB_HOST or 0.0.0.0)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Web.Port = mustFlag(cmd.Flags().GetInt, "port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Web.Host = mustFlag(cmd.Flags().GetString, "host")
	}

	backend, err := faces.NewBackend(cfg.Face.Backend, cfg.Embedding.URL, cfg.Face.ModelsDir)
	if err != nil {
		return fmt.Errorf("creating face backend: %w", err)
	}
	defer backend.Close()

	server := web.NewServer(cfg, backend)

	ctx := cmd.Context()
	go func() {
		<-ctx.Done()
		fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during shutdown", logger.LoggerOptions{Key: "error", Data: err})
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Starting Photo Finder API on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
