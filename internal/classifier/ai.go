package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
	"github.com/nanmax/wa-finance-bot-sub000/internal/log"
)

// Completer sends a prompt to a hosted completion model and returns its raw text.
type Completer interface {
	Complete(ctx context.Context, apiKey, prompt string) (string, error)
}

// AISettings exposes the runtime switches of the model-backed classifier.
type AISettings interface {
	AIEnabled() bool
	AIAPIKey() string
}

// AIClassifier asks a hosted model for a structured verdict. Every failure,
// from transport errors to malformed JSON, is logged and turned into a nil
// result so the caller can fall back to the rule-based classifier.
type AIClassifier struct {
	completer Completer
	settings  AISettings
	timeout   time.Duration
	logger    *log.Logger
}

func NewAIClassifier(completer Completer, settings AISettings, timeout time.Duration, logger *log.Logger) *AIClassifier {
	if logger == nil {
		logger = log.Discard()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &AIClassifier{
		completer: completer,
		settings:  settings,
		timeout:   timeout,
		logger:    logger.WithComponent(log.ComponentClassifier),
	}
}

// Active reports whether the classifier is enabled and has a credential.
func (a *AIClassifier) Active() bool {
	if a == nil || a.completer == nil || a.settings == nil {
		return false
	}
	return a.settings.AIEnabled() && strings.TrimSpace(a.settings.AIAPIKey()) != ""
}

// ClassifyWithModel returns the model's verdict, or nil when the classifier is
// inert, the call fails or the answer does not validate.
func (a *AIClassifier) ClassifyWithModel(ctx context.Context, message string) *core.ClassificationResult {
	if !a.Active() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.completer.Complete(ctx, a.settings.AIAPIKey(), buildPrompt(message))
	if err != nil {
		a.logger.WarnContext(ctx, "Model call failed, falling back", log.FieldError, err)
		return nil
	}

	result, err := parseVerdict(raw)
	if err != nil {
		a.logger.WarnContext(ctx, "Model answer rejected, falling back", log.FieldError, err)
		return nil
	}
	return result
}

func buildPrompt(message string) string {
	var b strings.Builder
	b.WriteString("You extract financial transactions from Indonesian chat messages.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Decide whether the message records money received (income) or spent (expense).\n")
	b.WriteString("- Output STRICT JSON only: one object, no comments, no Markdown, no code fences.\n\n")
	b.WriteString("The object must have these fields:\n")
	b.WriteString("- \"isFinancial\": boolean\n")
	b.WriteString("- \"type\": \"income\" or \"expense\"\n")
	b.WriteString("- \"amount\": number in whole Rupiah (\"5.000.000\" = 5000000, \"50rb\" = 50000, \"2jt\" = 2000000)\n")
	b.WriteString("- \"description\": short description in Indonesian\n")
	b.WriteString("- \"category\": short category label, e.g. \"Gaji\", \"Food & Beverage\", \"Transportasi\", \"Belanja\", \"Tagihan\"\n\n")
	b.WriteString("If the message is not a transaction, answer {\"isFinancial\": false}.\n\n")
	b.WriteString("Message: ")
	b.WriteString(strconv.Quote(message))
	b.WriteString("\n")
	return b.String()
}

var errNotFinancial = errors.New("message is not financial")

// parseVerdict validates the model answer and normalizes it into the shape
// produced by PatternClassifier.
func parseVerdict(raw string) (*core.ClassificationResult, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &fields); err != nil {
		return nil, fmt.Errorf("unmarshal verdict: %w", err)
	}

	if fin, _ := fields["isFinancial"].(bool); !fin {
		return nil, errNotFinancial
	}
	for _, key := range []string{"type", "amount", "description", "category"} {
		if v, ok := fields[key]; !ok || v == nil {
			return nil, fmt.Errorf("verdict missing %q", key)
		}
	}

	typ, _ := fields["type"].(string)
	txType, err := core.ParseTransactionType(typ)
	if err != nil {
		return nil, fmt.Errorf("verdict type %q: %w", typ, err)
	}

	amount, err := coerceAmount(fields["amount"])
	if err != nil {
		return nil, err
	}

	desc := strings.TrimSpace(fmt.Sprint(fields["description"]))
	category := strings.TrimSpace(fmt.Sprint(fields["category"]))
	if desc == "" || category == "" {
		return nil, errors.New("verdict has empty description or category")
	}

	return &core.ClassificationResult{
		IsFinancial: true,
		Type:        txType,
		Amount:      amount,
		Description: desc,
		Category:    category,
	}, nil
}

// coerceAmount accepts a JSON number or a numeric string and requires a
// positive finite value, rounded to whole currency units.
func coerceAmount(v any) (int64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("verdict amount %q: %w", n, core.ErrInvalidAmount)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("verdict amount of type %T: %w", v, core.ErrInvalidAmount)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 || f > math.MaxInt64/2 {
		return 0, fmt.Errorf("verdict amount %v: %w", f, core.ErrInvalidAmount)
	}
	amount := int64(math.Round(f))
	if amount <= 0 {
		return 0, fmt.Errorf("verdict amount %v: %w", f, core.ErrInvalidAmount)
	}
	return amount, nil
}

// cleanModelJSON strips Markdown fences and any text around the JSON object,
// for models that ignore the output instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}
