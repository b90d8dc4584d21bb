package cmd

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig selects the log sink for one invocation.
type LogConfig struct {
	Name   string
	File   string // --logfile
	Debug  bool   // --debug
	Stderr io.Writer
}

// LoggerFactory builds the log sink. Tests replace it with an observer.
type LoggerFactory func(LogConfig) (*zap.Logger, error)

// NewLogger writes JSON to the log file when one is given. Without a log
// file nothing is logged unless debugging, in which case console output
// goes to stderr.
func NewLogger(c LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if c.Debug {
		level = zapcore.DebugLevel
	}

	if c.File != "" {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		cfg.OutputPaths = []string{c.File}
		cfg.ErrorOutputPaths = []string{"stderr"}
		cfg.Sampling = nil
		logger, err := cfg.Build()
		if err != nil {
			return nil, err
		}
		return logger.Named(c.Name), nil
	}

	if !c.Debug || c.Stderr == nil {
		return zap.NewNop(), nil
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(c.Stderr),
		level,
	)
	return zap.New(core).Named(c.Name), nil
}
