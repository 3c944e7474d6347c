// Package logging builds the zap logger used by deckpdf and adapts it to export.Logger.
package logging

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-deck-export/export"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production JSON logger writing to stderr. Verbose forces debug.
func New(level string, verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	parsed := zapcore.WarnLevel
	if strings.TrimSpace(level) != "" {
		if err := parsed.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return nil, export.NewError(export.KindValidation, fmt.Sprintf("invalid log level %q", level), err)
		}
	}
	if verbose {
		parsed = zapcore.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(parsed)

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// Adapter exposes a zap logger through export.Logger.
type Adapter struct {
	sugar *zap.SugaredLogger
}

var _ export.Logger = Adapter{}

// Wrap adapts logger. A nil logger yields a no-op adapter.
func Wrap(logger *zap.Logger) Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Adapter{sugar: logger.Sugar()}
}

func (a Adapter) Debugf(format string, args ...any) { a.sugar.Debugf(format, args...) }
func (a Adapter) Infof(format string, args ...any)  { a.sugar.Infof(format, args...) }
func (a Adapter) Errorf(format string, args ...any) { a.sugar.Errorf(format, args...) }
