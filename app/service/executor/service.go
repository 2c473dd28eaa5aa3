package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"moobot/app/config"
	"moobot/app/service/dataset"
	"moobot/app/service/synth"

	"github.com/go-playground/validator/v10"
	"github.com/samber/do"
	"github.com/samber/lo"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
)

// ResultVar is the global a query script binds its matching cow ids to.
const ResultVar = "cows"

var (
	ErrExecution     = errors.New("query execution failed")
	ErrInvalidFilter = errors.New("invalid filter")
)

func init() {
	// generated snippets loop and branch at top level
	resolve.AllowGlobalReassign = true
	resolve.AllowSet = true
}

// Service runs synthesized queries against the immutable dataset.
//
// JSON snippets are decoded into a Filter and interpreted; nothing is executed.
// Python snippets are untrusted model output run by the Starlark interpreter:
// there is no load(), file, network or clock access, execution is bounded by a
// step budget and the caller's context, and every run gets a fresh thread and
// fresh globals. The shared predeclared values are read-only.
type Service struct {
	table       *dataset.Table
	maxSteps    uint64
	validate    *validator.Validate
	predeclared starlark.StringDict
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	table := do.MustInvoke[*dataset.Service](di).Table()

	return NewService(table, cfg.Query.MaxSteps), nil
}

func NewService(table *dataset.Table, maxSteps uint64) *Service {
	return &Service{
		table:       table,
		maxSteps:    maxSteps,
		validate:    newValidator(),
		predeclared: predeclared(table),
	}
}

// Execute returns the matching cow ids, de-duplicated in first-seen order.
// A script that never binds the result variable yields an empty result.
func (s *Service) Execute(ctx context.Context, snippet synth.Snippet) ([]string, error) {
	var (
		ids []string
		err error
	)

	switch snippet.Lang {
	case synth.LangJSON:
		ids, err = s.runFilter(snippet.Body)
	case synth.LangPython:
		ids, err = s.runScript(ctx, snippet.Body)
	default:
		err = fmt.Errorf("%w: unsupported snippet language %q", ErrExecution, snippet.Lang)
	}
	if err != nil {
		return nil, err
	}

	return lo.Uniq(ids), nil
}

func (s *Service) runFilter(body string) ([]string, error) {
	filter, err := decodeFilter(s.validate, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", ErrExecution, ErrInvalidFilter, err)
	}

	slog.Debug("Running filter", "filter", filter)

	return filter.Match(s.table), nil
}

func (s *Service) runScript(ctx context.Context, src string) ([]string, error) {
	thread := &starlark.Thread{
		Name: "query",
		Print: func(_ *starlark.Thread, msg string) {
			slog.Debug("Query script output", "msg", msg)
		},
	}
	thread.SetMaxExecutionSteps(s.maxSteps)

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	globals, err := starlark.ExecFile(thread, "query.star", src, s.predeclared)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecution, err)
	}

	slog.Debug("Query script finished", "steps", thread.ExecutionSteps())

	value, ok := globals[ResultVar]
	if !ok {
		return nil, nil
	}

	ids, err := toStrings(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecution, err)
	}

	return ids, nil
}

func toStrings(value starlark.Value) ([]string, error) {
	if value == starlark.None {
		return nil, nil
	}

	iter := starlark.Iterate(value)
	if iter == nil {
		return nil, fmt.Errorf("%s must be a list of cow ids, got %s", ResultVar, value.Type())
	}
	defer iter.Done()

	result := make([]string, 0)

	var elem starlark.Value
	for iter.Next(&elem) {
		id, ok := starlark.AsString(elem)
		if !ok {
			return nil, fmt.Errorf("%s must contain strings, got %s", ResultVar, elem.Type())
		}
		result = append(result, id)
	}

	return result, nil
}
