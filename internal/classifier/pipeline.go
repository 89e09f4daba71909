package classifier

import (
	"context"

	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
	"github.com/nanmax/wa-finance-bot-sub000/internal/log"
)

// Strategy is one classifier in the ordered pipeline. A nil result means
// "no verdict" and hands the message to the next strategy.
type Strategy interface {
	Name() string
	Classify(ctx context.Context, message string) *core.ClassificationResult
}

type modelStrategy struct{ ai *AIClassifier }

func (s modelStrategy) Name() string { return "model" }

func (s modelStrategy) Classify(ctx context.Context, message string) *core.ClassificationResult {
	return s.ai.ClassifyWithModel(ctx, message)
}

type patternStrategy struct{ p *PatternClassifier }

func (s patternStrategy) Name() string { return "pattern" }

func (s patternStrategy) Classify(_ context.Context, message string) *core.ClassificationResult {
	return s.p.Classify(message)
}

// ModelStrategy adapts an AIClassifier to the pipeline.
func ModelStrategy(ai *AIClassifier) Strategy { return modelStrategy{ai: ai} }

// PatternStrategy adapts a PatternClassifier to the pipeline.
func PatternStrategy(p *PatternClassifier) Strategy { return patternStrategy{p: p} }

// MessageClassifier tries its strategies in order; the first non-nil verdict wins.
type MessageClassifier struct {
	strategies []Strategy
	logger     *log.Logger
}

func NewPipeline(logger *log.Logger, strategies ...Strategy) *MessageClassifier {
	if logger == nil {
		logger = log.Discard()
	}
	return &MessageClassifier{
		strategies: strategies,
		logger:     logger.WithComponent(log.ComponentClassifier),
	}
}

// NewMessageClassifier builds the standard pipeline: the model first (inert
// when disabled or uncredentialed), then the rule list.
func NewMessageClassifier(ai *AIClassifier, pattern *PatternClassifier, logger *log.Logger) *MessageClassifier {
	var strategies []Strategy
	if ai != nil {
		strategies = append(strategies, ModelStrategy(ai))
	}
	if pattern != nil {
		strategies = append(strategies, PatternStrategy(pattern))
	}
	return NewPipeline(logger, strategies...)
}

// Analyze returns the first verdict, or nil when no strategy recognizes the message.
func (c *MessageClassifier) Analyze(ctx context.Context, message string) *core.ClassificationResult {
	result, _ := c.AnalyzeWithSource(ctx, message)
	return result
}

// AnalyzeWithSource is Analyze that also names the strategy that answered.
func (c *MessageClassifier) AnalyzeWithSource(ctx context.Context, message string) (*core.ClassificationResult, string) {
	for _, s := range c.strategies {
		if r := s.Classify(ctx, message); r != nil {
			c.logger.DebugContext(ctx, "Message classified",
				log.FieldStrategy, s.Name(),
				log.FieldTxType, r.Type.String(),
				log.FieldAmount, r.Amount,
				log.FieldCategory, r.Category)
			return r, s.Name()
		}
	}
	return nil, ""
}
