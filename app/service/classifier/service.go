package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"moobot/app/client/llm"
	"moobot/app/config"

	_ "embed"

	"github.com/samber/do"
)

//go:embed classification_prompt.txt
var classificationPrompt string

type Intent string

const (
	DataQuery    Intent = "data_query"
	InfoQuery    Intent = "info_query"
	Conversation Intent = "conversation"
)

func ParseIntent(value string) (Intent, error) {
	switch Intent(value) {
	case DataQuery, InfoQuery, Conversation:
		return Intent(value), nil
	default:
		return "", fmt.Errorf("unknown intent %q", value)
	}
}

// Normalize maps a free-form model label onto an intent.
func Normalize(label string) Intent {
	label = strings.ToLower(strings.TrimSpace(label))

	switch {
	case strings.Contains(label, "data"):
		return DataQuery
	case strings.Contains(label, "info"):
		return InfoQuery
	default:
		return Conversation
	}
}

type Service struct {
	client   llm.Completer
	fallback Intent
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	fallback, err := ParseIntent(cfg.Classifier.Fallback)
	if err != nil {
		return nil, err
	}

	return NewService(do.MustInvoke[*llm.Clients](di).Classify, fallback), nil
}

func NewService(client llm.Completer, fallback Intent) *Service {
	return &Service{
		client:   client,
		fallback: fallback,
	}
}

// Classify never fails: a service error yields the configured fallback intent.
func (s *Service) Classify(ctx context.Context, text string) Intent {
	label, err := s.client.Complete(ctx, classificationPrompt, text)
	if err != nil {
		slog.Warn("Classification failed, using fallback intent",
			"fallback", s.fallback,
			"error", err)
		return s.fallback
	}

	intent := Normalize(label)
	slog.Debug("Classified message", "label", label, "intent", intent)

	return intent
}
