// Package watch rebuilds the output tree whenever the source tree changes.
//
// Filesystem events are debounced so editor save bursts trigger one rebuild.
// An optional interval rebuild catches changes the watcher missed, and an
// optional HTTP endpoint exposes the run metrics.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"git.home.luguber.info/inful/mdxflatten/internal/config"
	"git.home.luguber.info/inful/mdxflatten/internal/observability"
)

// BuildFunc runs one full build.
type BuildFunc func(ctx context.Context) error

// Service watches the source tree and drives rebuilds.
type Service struct {
	cfg     *config.Config
	build   BuildFunc
	metrics *observability.Metrics

	watcher *fsnotify.Watcher
	trigger chan struct{}
}

// NewService creates a watch service. metrics may be nil.
func NewService(cfg *config.Config, build BuildFunc, metrics *observability.Metrics) (*Service, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Service{
		cfg:     cfg,
		build:   build,
		metrics: metrics,
		watcher: watcher,
		trigger: make(chan struct{}, 1),
	}, nil
}

// Run builds once, then blocks rebuilding on changes until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	defer s.watcher.Close()

	pagesRoot := filepath.Join(s.cfg.Source.Path, s.cfg.Source.Pages)
	if err := s.watchTree(pagesRoot); err != nil {
		return err
	}
	slog.Info("Watching source tree", "path", pagesRoot, "debounce", s.cfg.Watch.Debounce)

	scheduler, err := s.startScheduler()
	if err != nil {
		return err
	}
	if scheduler != nil {
		defer func() {
			if err := scheduler.Shutdown(); err != nil {
				slog.Error("Error shutting down scheduler", "error", err)
			}
		}()
	}

	if s.cfg.Watch.MetricsAddr != "" && s.metrics != nil {
		s.startMetricsServer(ctx)
	}

	s.runBuild(ctx)

	go s.eventLoop(ctx)
	s.debounceLoop(ctx)
	return ctx.Err()
}

// watchTree registers dir and all its subdirectories.
func (s *Service) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return s.watcher.Add(path)
	})
}

// eventLoop translates filesystem events into rebuild triggers.
func (s *Service) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op.Has(fsnotify.Create) {
				// New directories must be added to the watch set.
				if err := s.watchTree(event.Name); err != nil {
					slog.Debug("Could not watch created path", "path", event.Name, "error", err)
				}
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) ||
				event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
				slog.Debug("Source change detected", "path", event.Name, "op", event.Op.String())
				s.Trigger()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher error", "error", err)
		}
	}
}

// Trigger requests a rebuild. Coalesces with a pending request.
func (s *Service) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// debounceLoop waits out event bursts, then rebuilds once.
func (s *Service) debounceLoop(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-s.trigger:
			if timer == nil {
				timer = time.NewTimer(s.cfg.Watch.Debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-fire:
					default:
					}
				}
				timer.Reset(s.cfg.Watch.Debounce)
			}
		case <-fire:
			timer = nil
			fire = nil
			s.runBuild(ctx)
		}
	}
}

func (s *Service) runBuild(ctx context.Context) {
	start := time.Now()
	if err := s.build(ctx); err != nil {
		slog.Error("Rebuild failed", "error", err)
		return
	}
	slog.Info("Rebuild complete", "duration", time.Since(start))
}

// startScheduler sets up the optional interval rebuild.
func (s *Service) startScheduler() (gocron.Scheduler, error) {
	if s.cfg.Watch.RebuildInterval <= 0 {
		return nil, nil
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(s.cfg.Watch.RebuildInterval),
		gocron.NewTask(s.Trigger),
		gocron.WithName("interval-rebuild"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create interval rebuild job: %w", err)
	}
	scheduler.Start()
	slog.Info("Interval rebuild scheduled", "interval", s.cfg.Watch.RebuildInterval)
	return scheduler, nil
}

// startMetricsServer serves the run metrics until ctx is cancelled.
func (s *Service) startMetricsServer(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{
		Registry:          s.metrics.Registry(),
		EnableOpenMetrics: true,
	}))
	srv := &http.Server{Addr: s.cfg.Watch.MetricsAddr, Handler: mux}

	go func() {
		slog.Info("Metrics endpoint listening", "addr", s.cfg.Watch.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Error shutting down metrics server", "error", err)
		}
	}()
}
