package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/surveyth/cadastre-engine/internal/ocr"
	"github.com/surveyth/cadastre-engine/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve <folder>",
	Short: "Open the interactive verification editor",
	Long: `Serve starts a local web application over a folder of deed scans. The
editor shows each scan next to its extracted marker records, accepts
corrections one record at a time, re-plots the boundary after every
accepted edit, and saves verified records as <base>_OCRedit.toml.`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := appConfig()
	if err != nil {
		return err
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Serve.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Serve.Port = port
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// The editor works without an OCR engine; extraction is then done
	// ahead of time with the extract command.
	engine, err := ocr.NewEngine(cfg.Extract)
	if err != nil {
		logger.Warn("OCR engine unavailable, extract disabled in editor", "error", err)
		engine = nil
	}

	srv, err := server.New(server.Config{
		Folder: args[0],
		Engine: engine,
		App:    cfg,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "editor running at http://%s\n", srv.Addr())
	return srv.Start(ctx)
}

func init() {
	serveCmd.Flags().String("host", "", "address to bind (overrides serve.host)")
	serveCmd.Flags().Int("port", 0, "port to listen on (overrides serve.port)")

	rootCmd.AddCommand(serveCmd)
}
