package cmd

import (
	"github.com/spf13/cobra"

	"github.com/stroydoc/upd-processor/internal/config"
	"github.com/stroydoc/upd-processor/internal/database"
	"github.com/stroydoc/upd-processor/internal/logger"
	"github.com/stroydoc/upd-processor/internal/parser/upd"
	"github.com/stroydoc/upd-processor/internal/repository"
	"github.com/stroydoc/upd-processor/internal/securexml"
	"github.com/stroydoc/upd-processor/internal/server"
	"github.com/stroydoc/upd-processor/internal/service"
	"github.com/stroydoc/upd-processor/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API for UPD ingestion and distribution.

Endpoints:
  - POST /api/v1/documents                     - Upload a UPD XML file
  - GET  /api/v1/documents                     - List documents
  - GET  /api/v1/documents/:id                 - Document detail
  - POST /api/v1/documents/:id/distributions   - Apply allocations
  - GET  /api/v1/documents/:id/distributions   - List allocations
  - POST /api/v1/documents/:id/archive         - Archive a document
  - GET  /health                               - Health check

Configuration comes from environment variables (optionally via .env):
UPD_DATABASE_DSN, UPD_LISTEN_ADDR, UPD_STORAGE_DIR, UPD_MAX_FILE_SIZE,
UPD_PARSE_BUDGET, UPD_LOG_LEVEL.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := logger.Setup(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		return err
	}

	db, err := database.NewConnection(cfg.DatabaseDSN)
	if err != nil {
		return err
	}

	store, err := storage.NewStore(cfg.StorageDir)
	if err != nil {
		return err
	}

	limits := securexml.DefaultLimits()
	limits.MaxFileSize = cfg.MaxFileSize
	limits.ParseBudget = cfg.ParseBudget
	parser := upd.NewParserWithLimits(limits)

	txManager := repository.NewTransactionManager(db)
	docRepo := repository.NewDocumentRepository(db)
	distRepo := repository.NewDistributionRepository(db)

	uploads := service.NewUploadService(parser, docRepo, store, txManager)
	distributions := service.NewDistributionService(docRepo, distRepo, txManager)

	srv := server.NewServer(&server.Config{
		Address:       cfg.ListenAddr,
		ReadTimeout:   cfg.ReadTimeout,
		WriteTimeout:  cfg.WriteTimeout,
		MaxUploadSize: cfg.MaxFileSize,
		Debug:         cfg.Debug,
	}, uploads, distributions)

	log := logger.WithComponent("server")
	log.Info().Str("addr", cfg.ListenAddr).Msg("starting HTTP server")
	return srv.Run()
}
