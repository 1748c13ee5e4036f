package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"docrag/internal/adapter/fs"
	"docrag/internal/server"

	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serve upload, populate, query and document listing over HTTP.

Routes:
  GET  /health             index entry count
  GET  /health/embedding   embed a probe sentence
  POST /upload             multipart field "files"
  POST /populate           {"reset": true}
  POST /query              {"question": "..."}
  GET  /documents          files in the data directory`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	a, err := buildApp(cfg, GetRootDir())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := fs.EnsureDataDir(cfg.DataDir(a.root), cfg.Loader.MarkerFile); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	answerer, err := a.answerer(ctx)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		DataDir:        cfg.DataDir(a.root),
		MarkerFile:     cfg.Loader.MarkerFile,
		Allowed:        cfg.AllowedExtensions(),
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
	}, a.manager, answerer, a.logger)

	err = srv.ListenAndServe(ctx, cfg.Server.Addr)
	if errors.Is(err, http.ErrServerClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
