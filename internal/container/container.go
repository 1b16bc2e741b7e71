package container

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cyclopcam/logs"

	"chip-counter/config"
	app "chip-counter/internal/application"
	"chip-counter/internal/domain/port"
	"chip-counter/internal/infrastructure/render"
	"chip-counter/internal/infrastructure/storage"
	"chip-counter/internal/infrastructure/vision"
)

const memoryHistorySize = 1000

type Container struct {
	UserService     *app.UserService
	CountingService *app.CountingService

	detector port.Detector
	history  port.ScanRepository
}

// New wires the application services around an already built detector.
// history may be nil.
func New(log logs.Log, cfg *config.Config, detector port.Detector, history port.ScanRepository, userRepo port.UserRepository) *Container {
	userService := app.NewUserService(userRepo)
	countingService := app.NewCountingService(log, vision.NewDecoder(), detector, render.NewAnnotator(), history, app.CountingOptions{
		Threshold: cfg.Confidence,
		Timeout:   cfg.DetectTimeout,
		Values:    cfg.ChipValues,
	})

	return &Container{
		UserService:     userService,
		CountingService: countingService,
		detector:        detector,
		history:         history,
	}
}

// Build creates the detector and the scan history from cfg and wires everything.
func Build(log logs.Log, cfg *config.Config) (*Container, error) {
	detector, err := NewDetector(log, cfg)
	if err != nil {
		return nil, err
	}

	var history port.ScanRepository
	switch cfg.HistoryDB {
	case "":
	case config.HistoryInMemory:
		log.Infof("Keeping the last %d scans in memory", memoryHistorySize)
		history = storage.NewMemoryScanRepository(memoryHistorySize)
	default:
		repo, err := storage.NewSQLiteScanRepository(cfg.HistoryDB)
		if err != nil {
			detector.Close()
			return nil, fmt.Errorf("open history %s: %w", cfg.HistoryDB, err)
		}
		log.Infof("Recording scan history in %v", cfg.HistoryDB)
		history = repo
	}

	return New(log, cfg, detector, history, storage.NewMemoryUserRepository()), nil
}

// NewDetector builds the configured detector backend, wrapped for tiling when TILE_SIZE is set.
func NewDetector(log logs.Log, cfg *config.Config) (port.Detector, error) {
	classes, err := vision.LoadClasses(cfg.ModelClasses)
	if err != nil {
		return nil, err
	}

	var detector port.Detector
	switch cfg.Detector {
	case config.DetectorYOLO:
		d, err := vision.NewYOLODetector(log, vision.YOLOOptions{
			ModelPath:    cfg.ModelPath,
			Classes:      classes,
			InputSize:    cfg.InputSize,
			NMSThreshold: cfg.NMSThreshold,
			Workers:      cfg.Workers,
		})
		if err != nil {
			return nil, fmt.Errorf("load model: %w", err)
		}
		detector = d
	case config.DetectorRemote:
		d := vision.NewRemoteDetector(cfg.InferenceURL, cfg.DetectTimeout)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := d.CheckHealth(ctx); err != nil {
			// the service may still be starting up
			log.Warnf("Inference service at %v is not healthy yet: %v", cfg.InferenceURL, err)
		}
		cancel()
		detector = d
	case config.DetectorOllama:
		d, err := vision.NewOllamaDetector(cfg.OllamaURL, cfg.OllamaModel, classes)
		if err != nil {
			return nil, err
		}
		detector = d
	default:
		return nil, fmt.Errorf("unknown detector %q", cfg.Detector)
	}
	log.Infof("Using %v detector", cfg.Detector)

	if cfg.TileSize > 0 {
		log.Infof("Tiling frames larger than %dx%d", cfg.TileSize, cfg.TileSize)
		detector = vision.NewTiledDetector(detector, cfg.TileSize, cfg.Workers)
	}
	return detector, nil
}

// Close releases the detector and the history database.
func (c *Container) Close() error {
	var errs []error
	if c.detector != nil {
		errs = append(errs, c.detector.Close())
	}
	if c.history != nil {
		errs = append(errs, c.history.Close())
	}
	return errors.Join(errs...)
}
