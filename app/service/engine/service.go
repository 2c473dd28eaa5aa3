package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"moobot/app/service/chat"
	"moobot/app/service/classifier"
	"moobot/app/service/executor"
	"moobot/app/service/presenter"
	"moobot/app/service/queue"
	"moobot/app/service/responder"
	"moobot/app/service/synth"

	"github.com/samber/do"
)

const (
	noCodeText = "Error: No query found in the response."
)

type Service struct {
	classifierSvc *classifier.Service
	synthSvc      *synth.Service
	executorSvc   *executor.Service
	responderSvc  *responder.Service
	presenterSvc  *presenter.Service
	queueSvc      *queue.Service
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		classifierSvc: do.MustInvoke[*classifier.Service](di),
		synthSvc:      do.MustInvoke[*synth.Service](di),
		executorSvc:   do.MustInvoke[*executor.Service](di),
		responderSvc:  do.MustInvoke[*responder.Service](di),
		presenterSvc:  do.MustInvoke[*presenter.Service](di),
		queueSvc:      do.MustInvoke[*queue.Service](di),
	}, nil
}

func NewService(
	classifierSvc *classifier.Service,
	synthSvc *synth.Service,
	executorSvc *executor.Service,
	responderSvc *responder.Service,
	presenterSvc *presenter.Service,
	queueSvc *queue.Service,
) *Service {
	return &Service{
		classifierSvc: classifierSvc,
		synthSvc:      synthSvc,
		executorSvc:   executorSvc,
		responderSvc:  responderSvc,
		presenterSvc:  presenterSvc,
		queueSvc:      queueSvc,
	}
}

// Run processes queued turns one at a time until ctx is done or the queue closes.
func (s *Service) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.queueSvc.Channel():
			if !ok {
				return
			}

			s.handle(msg)
		}
	}
}

func (s *Service) handle(msg queue.Message) {
	ctx := msg.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	if err := ctx.Err(); err != nil {
		slog.Warn("Dropping abandoned message",
			"session", msg.Session.ID,
			"error", err)
		return
	}

	start := time.Now()
	turn := s.ProcessTurn(ctx, msg.Session, msg.Text)
	msg.Reply(turn)

	slog.Info("Processed message",
		"session", msg.Session.ID,
		"text", msg.Text,
		"intent", turn.Intent,
		"matches", len(turn.Images)+len(turn.Missing),
		"duration", time.Since(start))
}

// ProcessTurn records the user text and the bot reply in the session.
// Every failure is rendered into the reply text.
func (s *Service) ProcessTurn(ctx context.Context, session *chat.Session, text string) chat.Turn {
	session.Append(chat.Turn{
		Sender: chat.SenderUser,
		Text:   text,
	})

	reply := s.Respond(ctx, text)
	reply.Time = time.Now()

	session.Append(reply)

	return reply
}

func (s *Service) Respond(ctx context.Context, text string) chat.Turn {
	intent := s.classifierSvc.Classify(ctx, text)

	reply := chat.Turn{
		Sender: chat.SenderBot,
		Intent: intent,
	}

	switch intent {
	case classifier.DataQuery:
		result := s.dataQuery(ctx, text)
		reply.Text = result.Text
		reply.Images = result.Images
		reply.Missing = result.Missing
		reply.Rows = result.Rows
	case classifier.InfoQuery:
		reply.Text = s.responderSvc.Info(ctx, text)
	default:
		reply.Text = s.responderSvc.Converse(ctx, text)
	}

	return reply
}

func (s *Service) dataQuery(ctx context.Context, text string) presenter.Result {
	snippet, err := s.synthSvc.Synthesize(ctx, text)
	if err != nil {
		if errors.Is(err, synth.ErrNoCodeBlock) {
			slog.Warn("Query synthesis returned no code block", "text", text)
			return presenter.Result{Text: noCodeText}
		}

		slog.Warn("Query synthesis failed", "text", text, "error", err)
		return presenter.Result{Text: fmt.Sprintf("Error connecting to the language model: %v", err)}
	}

	slog.Debug("Synthesized query", "lang", snippet.Lang, "body", snippet.Body)

	ids, err := s.executorSvc.Execute(ctx, snippet)
	if err != nil {
		slog.Warn("Query execution failed", "text", text, "lang", snippet.Lang, "error", err)
		return presenter.Result{Text: fmt.Sprintf("Error executing generated query: %v", err)}
	}

	return s.presenterSvc.Present(ids)
}
