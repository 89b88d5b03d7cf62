package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/storycam/internal/capture"
	"github.com/orgball2608/storycam/internal/device"
	"github.com/orgball2608/storycam/internal/device/synthetic"
	"github.com/orgball2608/storycam/internal/domain"
	"github.com/orgball2608/storycam/internal/gesture"
	"github.com/orgball2608/storycam/internal/httpapi"
	"github.com/orgball2608/storycam/internal/media"
	"github.com/orgball2608/storycam/internal/publish"
	"github.com/orgball2608/storycam/internal/ratelimit"
	"github.com/orgball2608/storycam/internal/recorder"
	"github.com/orgball2608/storycam/internal/story"
	"github.com/orgball2608/storycam/internal/viewer"
	"github.com/orgball2608/storycam/pkg/config"
	"github.com/orgball2608/storycam/pkg/logger"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(
		config.New,
		logger.FxOption,
		clockwork.NewRealClock,
	),
	fx.Provide(
		newStoryStore,
		newViewerSession,
		newMediaStore,
		fx.Annotate(
			newLimiter,
			fx.As(new(ratelimit.Limiter)),
		),
		fx.Annotate(
			newDriver,
			fx.As(new(device.Driver)),
		),
		newCaptureController,
		publish.New,
		httpapi.New,
	),
	fx.Invoke(run),
)

func newStoryStore(clock clockwork.Clock, log logger.Logger) *story.Store {
	return story.New(story.Opts{Clock: clock, Logger: log})
}

func newViewerSession(stories *story.Store) *viewer.Session {
	s := viewer.New(stories)
	stories.OnEvict(s.Evicted)
	return s
}

func newMediaStore(cfg *config.Config) (media.Store, error) {
	switch cfg.Storage.Driver {
	case "", "memory":
		return media.NewMemoryStore(), nil
	case "s3":
		return media.NewS3Store(context.Background(), media.S3Config{
			Region:    cfg.Storage.Region,
			Bucket:    cfg.Storage.Bucket,
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Prefix:    cfg.Storage.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func newLimiter(cfg *config.Config) *ratelimit.InMemoryLimiter {
	return ratelimit.NewInMemoryLimiter(cfg.Story.PublishPerMin, time.Minute, cfg.Story.PublishBurst)
}

func newDriver(clock clockwork.Clock) *synthetic.Driver {
	zoom := domain.Range{Min: 1, Max: 8, Step: 0.1}
	return synthetic.New(synthetic.Options{
		Clock:  clock,
		Width:  720,
		Height: 1280,
		Torch:  true,
		Zoom:   &zoom,
	})
}

func newCaptureController(cfg *config.Config, driver device.Driver, clock clockwork.Clock, log logger.Logger, publisher *publish.Publisher) *capture.Controller {
	return capture.New(capture.Opts{
		Config: capture.Config{
			Facing: domain.Facing(cfg.Capture.Facing),
			Gesture: gesture.Config{
				MinHold:     cfg.Capture.MinHold,
				MaxDuration: cfg.Capture.MaxDuration,
				Tick:        cfg.Capture.Tick,
			},
			Recorder: recorder.Config{
				Segment:       cfg.Capture.Segment,
				BitsPerSecond: cfg.Capture.Bitrate,
				JPEGQuality:   cfg.Capture.JPEGQuality,
			},
		},
		Driver: driver,
		Clock:  clock,
		Logger: log,
		Admit:  publisher.Admit,
	})
}

type runOpts struct {
	fx.In

	LC        fx.Lifecycle
	Logger    logger.Logger
	Config    *config.Config
	Stories   *story.Store
	Capture   *capture.Controller
	Publisher *publish.Publisher
	API       *httpapi.Handler
}

func run(opts runOpts) {
	ctx, cancel := context.WithCancel(context.Background())
	var sweeper *story.Sweeper

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Config.App.Port),
		Handler:           opts.API.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	opts.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var err error
			sweeper, err = opts.Stories.ScheduleSweep(ctx, story.SweepOpts{
				Interval: opts.Config.Story.SweepInterval,
				Timezone: opts.Config.Story.Timezone,
			})
			if err != nil {
				return err
			}

			opts.Capture.OnCaptureComplete(opts.Publisher.Keep)

			go startHttpServer(opts.Logger, server)
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			opts.Capture.Close()
			if sweeper != nil {
				if err := sweeper.Stop(); err != nil {
					opts.Logger.Error("Failed to stop story sweep", "error", err)
				}
			}
			opts.Publisher.Close()
			return server.Shutdown(stopCtx)
		},
	})
}

func startHttpServer(log logger.Logger, server *http.Server) {
	log.Info("Starting server", "addr", server.Addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Server failed", "error", err)
	}
}
