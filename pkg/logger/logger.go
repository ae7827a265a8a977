package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

type LogMode string

const (
	LogModeDebug  LogMode = "debug"
	LogModePretty LogMode = "pretty"
	LogModeInfo   LogMode = "info"
	LogModeProd   LogMode = "prod"
	LogModeTest   LogMode = "test"
)

type Config struct {
	Level         zerolog.Level
	Pretty        bool
	TimeFormat    string
	CallerEnabled bool
}

func DefaultConfig() Config {
	return Config{
		Level:         zerolog.InfoLevel,
		Pretty:        false,
		TimeFormat:    time.RFC3339,
		CallerEnabled: true,
	}
}

func ConfigForMode(mode LogMode) Config {
	cfg := DefaultConfig()
	switch mode {
	case LogModeDebug:
		cfg.Level = zerolog.DebugLevel
		cfg.Pretty = true
	case LogModePretty:
		cfg.Pretty = true
	case LogModeInfo:
	case LogModeProd:
		cfg.TimeFormat = time.RFC3339Nano
		cfg.CallerEnabled = false
	case LogModeTest:
		cfg.Level = zerolog.ErrorLevel
		cfg.CallerEnabled = false
	}
	return cfg
}

func InitWithMode(mode LogMode) {
	Init(ConfigForMode(mode))
}

func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: cfg.TimeFormat,
		}
	}

	zerolog.SetGlobalLevel(cfg.Level)
	zerolog.TimeFieldFormat = cfg.TimeFormat

	logCtx := zerolog.New(output).With().Timestamp()
	if cfg.CallerEnabled {
		logCtx = logCtx.Caller()
	}

	log = logCtx.Logger()
	zerolog.DefaultContextLogger = &log
}

func Get() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func WithComponent(component string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log.With().Str("component", component).Logger()
}
