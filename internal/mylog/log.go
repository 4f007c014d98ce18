package mylog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"chatsync/internal/config"

	"github.com/phsym/console-slog"
	slogmulti "github.com/samber/slog-multi"
	"github.com/samber/oops"
)

// Preinit logs to stderr until the config is known.
func Preinit() {
	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	})))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Init routes every record at the configured level to the log file and
// Warn+ records to tap. The terminal belongs to the UI, so nothing goes to
// stderr. The returned closer releases the log file.
func Init(cfg *config.Config, tap *Tap) (io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return nil, oops.In("log").With("level", cfg.Log.Level).Errorf("invalid log level: %w", err)
	}

	var (
		out    io.Writer = io.Discard
		closer io.Closer = nopCloser{}
	)
	if cfg.Log.File != "" {
		if dir := filepath.Dir(cfg.Log.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, oops.In("log").With("file", cfg.Log.File).Errorf("failed to create log dir: %w", err)
			}
		}
		file, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, oops.In("log").With("file", cfg.Log.File).Errorf("failed to open log file: %w", err)
		}
		out, closer = file, file
	}

	router := slogmulti.Router()

	router = router.Add(console.NewHandler(out, &console.HandlerOptions{
		AddSource:  level == slog.LevelDebug,
		Level:      level,
		NoColor:    true,
		TimeFormat: "2006-01-02 15:04:05.000",
	}))

	if tap != nil {
		router = router.Add(tap, func(_ context.Context, r slog.Record) bool {
			return r.Level >= slog.LevelWarn
		})
	}

	slog.SetDefault(slog.New(router.Handler()))

	return closer, nil
}

const tapBufferSize = 64

// Tap is a slog handler that turns records into one-line strings for the
// UI status strip. Lines are dropped when nobody drains the channel.
type Tap struct {
	lines chan string
	attrs []slog.Attr
}

func NewTap() *Tap {
	return &Tap{lines: make(chan string, tapBufferSize)}
}

func (t *Tap) Lines() <-chan string {
	return t.lines
}

func (t *Tap) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelWarn
}

func (t *Tap) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Level.String())
	b.WriteByte(' ')
	b.WriteString(r.Message)
	write := func(attr slog.Attr) bool {
		if attr.Key == "" {
			return true
		}
		b.WriteByte(' ')
		b.WriteString(attr.Key)
		b.WriteByte('=')
		b.WriteString(attr.Value.String())
		return true
	}
	for _, attr := range t.attrs {
		write(attr)
	}
	r.Attrs(write)

	select {
	case t.lines <- b.String():
	default:
	}
	return nil
}

func (t *Tap) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(t.attrs)+len(attrs))
	merged = append(merged, t.attrs...)
	merged = append(merged, attrs...)
	return &Tap{lines: t.lines, attrs: merged}
}

// WithGroup flattens groups; the status strip has no room for nesting.
func (t *Tap) WithGroup(string) slog.Handler {
	return t
}
