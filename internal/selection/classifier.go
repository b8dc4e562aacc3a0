package selection

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/keagan/factreel/internal/vision"
)

// ParseVerdict maps a model answer to a label. ok is false when the answer
// is not one of yes/no/good/bad.
func ParseVerdict(answer string) (label int, ok bool) {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "yes", "good":
		return 1, true
	case "no", "bad":
		return 0, true
	default:
		return 0, false
	}
}

// Classifier asks an oracle whether a frame fits a question
type Classifier struct {
	logger zerolog.Logger
	oracle Oracle
	factor float64
}

// NewClassifier creates a classifier that shrinks frames by factor before
// asking (factor outside (0,1) sends the frame as is).
func NewClassifier(logger zerolog.Logger, oracle Oracle, factor float64) *Classifier {
	return &Classifier{
		logger: logger.With().Str("component", "classifier").Logger(),
		oracle: oracle,
		factor: factor,
	}
}

// Classify returns 1 when the frame is relevant and 0 otherwise. It never
// fails: unreadable frames, oracle errors and unexpected answers are logged
// and count as 0.
func (c *Classifier) Classify(ctx context.Context, framePath, question string) int {
	small, cleanup, err := vision.Downscale(framePath, c.factor)
	if err != nil {
		c.logger.Warn().Err(err).Str("frame", framePath).Msg("failed to prepare frame")
		return 0
	}
	defer cleanup()

	answer, err := c.oracle.Ask(ctx, small, question)
	if err != nil {
		c.logger.Warn().Err(err).Str("frame", framePath).Msg("vision model call failed")
		return 0
	}

	label, ok := ParseVerdict(answer)
	if !ok {
		c.logger.Warn().Str("frame", framePath).Str("answer", answer).Msg("unexpected vision answer")
	}
	return label
}
