package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/haivivi/storyspark/cmd/storyspark/internal/build"
	"github.com/haivivi/storyspark/cmd/storyspark/internal/config"
	"github.com/haivivi/storyspark/cmd/storyspark/internal/observe"
	"github.com/haivivi/storyspark/pkg/audio/playback"
	"github.com/haivivi/storyspark/pkg/cache"
	"github.com/haivivi/storyspark/pkg/encoding"
	"github.com/haivivi/storyspark/pkg/genx"
	"github.com/haivivi/storyspark/pkg/storage"
	"github.com/haivivi/storyspark/pkg/story"
)

// testServiceOverride replaces the configured backend in tests.
var testServiceOverride genx.Service

// newService builds the configured backend wrapped with pacing and metrics.
func newService(ctx context.Context, cfg *config.Config, mp metric.MeterProvider) (genx.Service, error) {
	var svc genx.Service
	switch {
	case testServiceOverride != nil:
		svc = testServiceOverride
	case cfg.Provider == config.ProviderGemini:
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.Gemini.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		svc = genx.NewGeminiService(client, cfg.Gemini.Model, cfg.Gemini.SpeechModel, cfg.Voice)
	case cfg.Provider == config.ProviderOpenAI:
		opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAI.APIKey)}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		client := openai.NewClient(opts...)
		svc = genx.NewOpenAIService(&client, cfg.OpenAI.Model, cfg.OpenAI.SpeechModel, cfg.Voice)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	printVerbose("Provider: %s", cfg.Provider)

	if cfg.RateLimit > 0 {
		svc = genx.WithRateLimit(svc, rate.NewLimiter(rate.Limit(cfg.RateLimit), 1))
	}
	return genx.Instrument(svc, mp)
}

// newClipCache returns the narration cache, or nil when disabled. The
// returned close function is never nil.
func newClipCache(cfg *config.Config) (*cache.Clips, func() error, error) {
	var store cache.Store
	switch cfg.Cache.Backend {
	case config.CacheNone:
		return nil, func() error { return nil }, nil
	case config.CacheBadger:
		ttl, err := cfg.CacheTTL()
		if err != nil {
			return nil, nil, err
		}
		b, err := cache.NewBadger(cache.BadgerOptions{
			Dir:      cfg.Cache.Dir,
			InMemory: cfg.Cache.Dir == "",
			TTL:      ttl,
		})
		if err != nil {
			return nil, nil, err
		}
		store = b
	default:
		store = cache.NewMemory(cfg.Cache.MaxEntries)
	}
	return cache.NewClips(store, cfg.Provider+"/"+cfg.SpeechModel()), store.Close, nil
}

// newSink returns the export destination: S3 when a bucket is configured,
// the local export directory otherwise.
func newSink(cfg *config.Config) (storage.Sink, error) {
	if s := cfg.Export.S3; s.Bucket != "" {
		client := storage.NewS3Client(storage.S3Options{
			Region:          s.Region,
			Endpoint:        s.Endpoint,
			PathStyle:       s.PathStyle,
			AccessKeyID:     s.AccessKeyID,
			SecretAccessKey: s.SecretAccessKey,
		})
		return storage.NewS3(client, s.Bucket, s.Prefix), nil
	}
	if cfg.Export.Dir == "" {
		return nil, errors.New("no export directory configured")
	}
	return storage.NewLocal(cfg.Export.Dir)
}

// streamToStdout is the playback command that writes raw PCM to stdout.
const streamToStdout = "-"

// newPlayer returns a controller for the configured playback command, or
// nil when none is set.
func newPlayer(cfg *config.Config, opts ...playback.Option) (*playback.Controller, error) {
	switch cfg.Playback.Command {
	case "":
		return nil, nil
	case streamToStdout:
		return playback.NewController(playback.NewStreamOutput(rootCmd.OutOrStdout(), false), opts...), nil
	}
	out, err := playback.ParseCommand(cfg.Playback.Command)
	if err != nil {
		return nil, fmt.Errorf("playback.command: %w", err)
	}
	return playback.NewController(out, opts...), nil
}

// app bundles an engine with the resources it holds.
type app struct {
	cfg     *config.Config
	engine  *story.Engine
	session *story.Session
	player  *playback.Controller
	metrics *observe.Provider
	close   func() error
}

type appOptions struct {
	player     bool
	playerOpts []playback.Option
	engineOpts []story.Option
	mediaPaths []string
	title      string
	language   string
}

func newApp(ctx context.Context, o appOptions) (*app, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	metrics, err := observe.InitProvider("storyspark", build.Version)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	svc, err := newService(ctx, cfg, metrics.MeterProvider())
	if err != nil {
		metrics.Shutdown(ctx)
		return nil, err
	}

	session := story.NewSession()
	session.SetLanguage(cfg.Language)
	if o.language != "" {
		session.SetLanguage(o.language)
	}
	session.SetTitle(o.title)
	if len(o.mediaPaths) > 0 {
		m, err := loadMedia(o.mediaPaths)
		if err != nil {
			metrics.Shutdown(ctx)
			return nil, err
		}
		session.SetMedia(m)
	}

	clips, closeCache, err := newClipCache(cfg)
	if err != nil {
		metrics.Shutdown(ctx)
		return nil, err
	}
	opts := []story.Option{
		story.WithValidator(story.Validator{Lenient: cfg.Lenient}),
		story.WithVoice(cfg.Voice),
	}
	if clips != nil {
		opts = append(opts, story.WithClipCache(clips))
	}
	if sink, err := newSink(cfg); err == nil {
		opts = append(opts, story.WithSink(sink))
	} else {
		printVerbose("Export disabled: %v", err)
	}

	a := &app{cfg: cfg, session: session, metrics: metrics, close: closeCache}
	if o.player {
		player, err := newPlayer(cfg, o.playerOpts...)
		if err != nil {
			closeCache()
			metrics.Shutdown(ctx)
			return nil, err
		}
		if player != nil {
			a.player = player
			opts = append(opts, story.WithPlayer(player))
		}
	}
	a.engine = story.NewEngine(svc, session, append(opts, o.engineOpts...)...)
	printVerbose("Session: %s", session.ID())
	return a, nil
}

func (a *app) Close() error {
	if a.player != nil {
		a.player.Stop()
	}
	ctx := context.Background()
	stats, err := a.metrics.Summary(ctx)
	switch {
	case err != nil:
		slog.Debug("metrics summary failed", "error", err)
	case a.cfg.Metrics:
		observe.WriteSummary(rootCmd.ErrOrStderr(), stats)
	default:
		slog.Debug("metrics", "stats", stats)
	}
	return errors.Join(a.close(), a.metrics.Shutdown(ctx))
}

// loadMedia reads each path, or decodes it when it is a data: URL, and keeps
// the first image or video.
func loadMedia(paths []string) (story.Media, error) {
	blobs := make([]*genx.Blob, 0, len(paths))
	for _, p := range paths {
		b, err := readMediaArg(p)
		if err != nil {
			return story.Media{}, err
		}
		blobs = append(blobs, b)
	}
	m, err := story.FirstMedia(blobs)
	if err != nil {
		return story.Media{}, fmt.Errorf("%w (from %d file(s))", err, len(paths))
	}
	return m, nil
}

func readMediaArg(arg string) (*genx.Blob, error) {
	if strings.HasPrefix(arg, "data:") {
		mimeType, data, err := encoding.ParseDataURL(arg)
		if err != nil {
			return nil, fmt.Errorf("media argument: %w", err)
		}
		printVerbose("Media data URL: %s", mimeType)
		return &genx.Blob{MIMEType: mimeType, Data: data}, nil
	}
	b, err := story.ReadMediaFile(arg)
	if err != nil {
		return nil, err
	}
	printVerbose("Media %s: %s", filepath.Base(arg), b.MIMEType)
	return b, nil
}

// readTextArg returns args joined by spaces, or stdin when the only arg is
// "-".
func readTextArg(args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(rootCmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return strings.Join(args, " "), nil
}
