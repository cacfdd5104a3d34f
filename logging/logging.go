// Package logging hands out named zap loggers that share one process-wide
// level, encoder and sink. Loggers obtained before Init pick up the
// configuration applied later.
package logging

import (
	"io"
	"os"
	"regexp"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the level, encoding and destination of every logger
type Config struct {
	// Level is a zap level name such as debug, info or warn
	Level string
	// Format is console or json
	Format string
	// Writer defaults to stderr
	Writer io.Writer
}

var loggerNameRegexp = regexp.MustCompile(`^[[:alnum:]_-]+(\.[[:alnum:]_-]+)*$`)

type state struct {
	mu      sync.RWMutex
	level   zap.AtomicLevel
	encoder zapcore.Encoder
	writer  zapcore.WriteSyncer
}

var global = &state{
	level:   zap.NewAtomicLevelAt(zapcore.InfoLevel),
	encoder: newEncoder("console"),
	writer:  zapcore.Lock(zapcore.AddSync(os.Stderr)),
}

func newEncoder(format string) zapcore.Encoder {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "name",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	if format == "json" {
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(cfg)
	}
	return zapcore.NewConsoleEncoder(cfg)
}

// Init applies c to every logger, including ones already handed out
func Init(c Config) error {
	lvl := zapcore.InfoLevel
	if c.Level != "" {
		if err := lvl.Set(c.Level); err != nil {
			return errors.Wrapf(err, "invalid log level %q", c.Level)
		}
	}
	switch c.Format {
	case "", "console", "json":
	default:
		return errors.Errorf("unsupported log format %q", c.Format)
	}

	global.mu.Lock()
	defer global.mu.Unlock()
	global.level.SetLevel(lvl)
	global.encoder = newEncoder(c.Format)
	if c.Writer != nil {
		global.writer = zapcore.Lock(zapcore.AddSync(c.Writer))
	}
	return nil
}

// SetLevel changes the shared level
func SetLevel(level string) error {
	var lvl zapcore.Level
	if err := lvl.Set(level); err != nil {
		return errors.Wrapf(err, "invalid log level %q", level)
	}
	global.level.SetLevel(lvl)
	return nil
}

// Level returns the name of the shared level
func Level() string { return global.level.Level().String() }

// MustGetLogger returns a logger with the given name. It panics when the
// name is not a dotted sequence of alphanumeric segments.
func MustGetLogger(name string) *zap.SugaredLogger {
	if !loggerNameRegexp.MatchString(name) {
		panic("invalid logger name: " + name)
	}
	return zap.New(&core{}, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).
		Named(name).
		Sugar()
}

// core routes entries through the current global encoder and writer
type core struct {
	fields []zapcore.Field
}

func (c *core) Enabled(l zapcore.Level) bool { return global.level.Enabled(l) }

func (c *core) With(fields []zapcore.Field) zapcore.Core {
	all := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	all = append(all, c.fields...)
	return &core{fields: append(all, fields...)}
}

func (c *core) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c *core) Write(e zapcore.Entry, fields []zapcore.Field) error {
	global.mu.RLock()
	enc := global.encoder.Clone()
	w := global.writer
	global.mu.RUnlock()

	for _, f := range c.fields {
		f.AddTo(enc)
	}
	buf, err := enc.EncodeEntry(e, fields)
	if err != nil {
		return err
	}
	defer buf.Free()
	if _, err = w.Write(buf.Bytes()); err != nil {
		return err
	}
	if e.Level > zapcore.ErrorLevel {
		return w.Sync()
	}
	return nil
}

func (c *core) Sync() error {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.writer.Sync()
}
