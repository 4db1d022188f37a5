package analysis

import (
	"context"

	"github.com/fieldserve/dispatch-ai-platform/pkg/logging"
)

// FallbackAnalyzer wraps a primary TextAnalyzer with a fallback implementation.
// If the primary fails (e.g. a model endpoint is unreachable), the turn is
// re-analyzed with the fallback so the pipeline keeps moving.
type FallbackAnalyzer struct {
	primary  TextAnalyzer
	fallback TextAnalyzer
	logger   *logging.Logger
}

// NewFallbackAnalyzer creates a fallback-enabled analyzer. If fallback is nil,
// the keyword analyzer is used.
func NewFallbackAnalyzer(primary, fallback TextAnalyzer, logger *logging.Logger) *FallbackAnalyzer {
	if fallback == nil {
		fallback = NewKeywordAnalyzer()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackAnalyzer{
		primary:  primary,
		fallback: fallback,
		logger:   logger.Component("analysis"),
	}
}

// Analyze tries the primary analyzer and falls back on error.
func (a *FallbackAnalyzer) Analyze(ctx context.Context, text string) (Analysis, error) {
	if a.primary == nil {
		return a.fallback.Analyze(ctx, text)
	}

	result, err := a.primary.Analyze(ctx, text)
	if err == nil {
		return result, nil
	}

	a.logger.Warn("primary analyzer failed, using fallback", "error", err.Error())
	return a.fallback.Analyze(ctx, text)
}
