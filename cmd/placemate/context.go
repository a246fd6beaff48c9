package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vbonduro/placemate/internal/config"
	"github.com/vbonduro/placemate/internal/db"
	"github.com/vbonduro/placemate/internal/logging"
	"github.com/vbonduro/placemate/internal/photostore/local"
	"github.com/vbonduro/placemate/internal/scanlock"
	"github.com/vbonduro/placemate/internal/service"
	"github.com/vbonduro/placemate/internal/store"
	"github.com/vbonduro/placemate/internal/vision"
	claudevision "github.com/vbonduro/placemate/internal/vision/claude"
	ollamavision "github.com/vbonduro/placemate/internal/vision/ollama"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// app holds everything a command needs against one catalog.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *sql.DB
	photos    *local.Store
	catalog   *store.Catalog
	inventory *service.InventoryService
	closers   []func()
}

func (c *commandContext) withApp(fn func(*app) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}

func openApp(cfg *config.Config) (*app, error) {
	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, closers: []func(){cleanup}}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.db = database
	a.closers = append(a.closers, func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	})

	photos, err := local.New(cfg.PhotoPath)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize photo store: %w", err)
	}
	a.photos = photos
	a.catalog = store.NewCatalog(database)
	a.inventory = service.NewInventoryService(a.catalog, photos, logger)
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// scanService wires the configured recognition backend. It is built on
// demand so catalog-only commands work without one.
func (a *app) scanService() (*service.ScanService, error) {
	analyzer, err := newVisionAnalyzer(a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	if !a.cfg.ScanLock {
		return service.NewScanService(a.catalog, analyzer, a.photos, nil, a.logger), nil
	}
	lock := scanlock.New(a.cfg.ScanLockPath())
	return service.NewScanService(a.catalog, analyzer, a.photos, lock, a.logger), nil
}

func newVisionAnalyzer(cfg *config.Config, logger *slog.Logger) (vision.SceneAnalyzer, error) {
	switch cfg.VisionBackend {
	case "claude":
		if cfg.ClaudeAPIKey == "" {
			return nil, fmt.Errorf("claude_api_key is required when vision_backend is claude")
		}
		logger.Info("using Claude vision backend", "model", cfg.ClaudeModel)
		return claudevision.NewClaudeAnalyzer(cfg.ClaudeAPIKey, cfg.ClaudeModel), nil
	case "ollama":
		logger.Info("using Ollama vision backend", "model", cfg.OllamaModel)
		return ollamavision.NewOllamaAnalyzer(cfg.OllamaHost, cfg.OllamaModel), nil
	default:
		return nil, fmt.Errorf("unknown vision backend %q", cfg.VisionBackend)
	}
}

// splitPath turns "Garage > Shelf" or "Garage/Shelf" into its segments.
func splitPath(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == '>' || r == '/' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
