package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"moobot/app/config"
	"moobot/app/service/chat"
	"moobot/app/service/dataset"
	"moobot/app/service/presenter"
	"moobot/app/service/queue"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/do"
)

const (
	imagesPrefix    = "/images"
	shutdownTimeout = 5 * time.Second
)

// Submitter runs one chat turn and returns the bot reply.
type Submitter interface {
	Submit(ctx context.Context, session *chat.Session, text string) (chat.Turn, error)
}

type Server struct {
	cfg       *config.Config
	store     *chat.Store
	submitter Submitter
	table     *dataset.Table
	validate  *validator.Validate

	app *fiber.App
}

func New(di *do.Injector) (*Server, error) {
	return NewServer(
		do.MustInvoke[*config.Config](di),
		do.MustInvoke[*chat.Store](di),
		do.MustInvoke[*queue.Service](di),
		do.MustInvoke[*dataset.Service](di).Table(),
		do.MustInvoke[*presenter.Service](di).Dir(),
	), nil
}

func NewServer(cfg *config.Config, store *chat.Store, submitter Submitter, table *dataset.Table, imagesDir string) *Server {
	s := &Server{
		cfg:       cfg,
		store:     store,
		submitter: submitter,
		table:     table,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "moobot",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	s.app.Get("/healthz", s.handleHealth)
	s.app.Post("/query", s.handleEcho)

	sessions := s.app.Group("/api/sessions")
	sessions.Post("/", s.handleCreateSession)
	sessions.Get("/:id", s.handleGetSession)
	sessions.Delete("/:id", s.handleDeleteSession)
	sessions.Post("/:id/messages", s.handlePostMessage)

	s.app.Static(imagesPrefix, imagesDir)

	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()

		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			slog.Error("HTTP shutdown failed", "error", err)
		}
	}()

	slog.Info("HTTP server listening", "addr", s.cfg.HTTP.Addr)

	return s.app.Listen(s.cfg.HTTP.Addr)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	if code >= fiber.StatusInternalServerError {
		slog.Error("Request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err)
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
