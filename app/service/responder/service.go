package responder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"moobot/app/client/llm"
	"moobot/app/service/dataset"

	_ "embed"

	"github.com/samber/do"
)

//go:embed info_prompt.txt
var infoPromptTemplate string

//go:embed conversation_prompt.txt
var conversationPrompt string

const defaultCowCount = 16

type Service struct {
	client     llm.Completer
	infoPrompt string
}

func New(di *do.Injector) (*Service, error) {
	table := do.MustInvoke[*dataset.Service](di).Table()

	return NewService(do.MustInvoke[*llm.Clients](di).Reply, len(table.Cows())), nil
}

func NewService(client llm.Completer, cowCount int) *Service {
	if cowCount == 0 {
		cowCount = defaultCowCount
	}

	return &Service{
		client:     client,
		infoPrompt: strings.ReplaceAll(infoPromptTemplate, "{cow_count}", fmt.Sprint(cowCount)),
	}
}

// Info answers questions about cattle and MooBot itself. The reply is the
// model text verbatim; failures become an apology carrying the error.
func (s *Service) Info(ctx context.Context, text string) string {
	reply, err := s.client.Complete(ctx, s.infoPrompt, text)
	if err != nil {
		slog.Warn("Info reply failed", "error", err)
		return fmt.Sprintf("I'm sorry, I couldn't process your informational query: %v", err)
	}

	return reply
}

func (s *Service) Converse(ctx context.Context, text string) string {
	reply, err := s.client.Complete(ctx, conversationPrompt, text)
	if err != nil {
		slog.Warn("Conversation reply failed", "error", err)
		return fmt.Sprintf("I'm sorry, I couldn't process your conversational query: %v", err)
	}

	return reply
}
