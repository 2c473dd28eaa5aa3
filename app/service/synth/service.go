package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"moobot/app/client/llm"
	"moobot/app/config"
	"moobot/app/service/dataset"
	"moobot/app/service/vocab"
	"moobot/app/util/fence"

	_ "embed"

	"github.com/samber/do"
)

//go:embed filter_prompt.txt
var filterPromptTemplate string

//go:embed script_prompt.txt
var scriptPromptTemplate string

var ErrNoCodeBlock = errors.New("no code found in the response")

const (
	LangJSON   = "json"
	LangPython = "python"
)

// Snippet is the fenced block body returned by the model. It is not stored.
type Snippet struct {
	Lang string
	Body string
}

type Service struct {
	client llm.Completer
	mode   string
	prompt string
	langs  []string
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	table := do.MustInvoke[*dataset.Service](di).Table()

	return NewService(do.MustInvoke[*llm.Clients](di).Query, cfg.Query.Mode, table.Cows())
}

func NewService(client llm.Completer, mode string, cows []string) (*Service, error) {
	s := &Service{
		client: client,
		mode:   mode,
	}

	switch mode {
	case config.QueryModeFilter:
		s.prompt = renderPrompt(filterPromptTemplate, cows)
		s.langs = []string{LangJSON}
	case config.QueryModeScript:
		s.prompt = renderPrompt(scriptPromptTemplate, cows)
		s.langs = []string{LangPython, "starlark"}
	default:
		return nil, fmt.Errorf("unknown query mode %q", mode)
	}

	return s, nil
}

func (s *Service) Mode() string {
	return s.mode
}

func (s *Service) Prompt() string {
	return s.prompt
}

func (s *Service) Synthesize(ctx context.Context, text string) (Snippet, error) {
	reply, err := s.client.Complete(ctx, s.prompt, text)
	if err != nil {
		return Snippet{}, err
	}

	block, ok := fence.Extract(reply, s.langs...)
	if !ok {
		return Snippet{}, ErrNoCodeBlock
	}

	lang := block.Lang
	if lang == "starlark" {
		lang = LangPython
	}

	return Snippet{Lang: lang, Body: block.Body}, nil
}

func renderPrompt(template string, cows []string) string {
	first, last, count := "C01", "C16", 16
	if len(cows) > 0 {
		first, last, count = cows[0], cows[len(cows)-1], len(cows)
	}

	templateValues := map[string]any{
		"behaviors": vocab.BehaviorTable(),
		"regions":   vocab.RegionTable(),
		"first_cow": first,
		"last_cow":  last,
		"cow_count": count,
	}

	prompt := template
	for key, value := range templateValues {
		prompt = strings.ReplaceAll(prompt, "{"+key+"}", fmt.Sprint(value))
	}

	return prompt
}
