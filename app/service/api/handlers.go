package api

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"moobot/app/service/chat"
	"moobot/app/service/queue"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

type messageRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

type echoRequest struct {
	Query string `json:"query"`
}

type sessionResponse struct {
	ID      uuid.UUID      `json:"id"`
	Created time.Time      `json:"created"`
	Turns   []turnResponse `json:"turns"`
}

type turnResponse struct {
	Sender  chat.Sender       `json:"sender"`
	Text    string            `json:"text"`
	Intent  string            `json:"intent,omitempty"`
	Images  map[string]string `json:"images"`
	Missing []string          `json:"missing,omitempty"`
	Rows    [][]string        `json:"rows,omitempty"`
	Time    time.Time         `json:"time"`
}

func toTurnResponse(turn chat.Turn) turnResponse {
	images := make(map[string]string, len(turn.Images))
	for id, file := range turn.Images {
		images[id] = imagesPrefix + "/" + filepath.Base(file)
	}

	return turnResponse{
		Sender:  turn.Sender,
		Text:    turn.Text,
		Intent:  string(turn.Intent),
		Images:  images,
		Missing: turn.Missing,
		Rows:    turn.Rows,
		Time:    turn.Time,
	}
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"rows":   s.table.Len(),
		"cows":   len(s.table.Cows()),
	})
}

// handleEcho is the standalone echo endpoint; it does not touch the pipeline.
func (s *Server) handleEcho(c *fiber.Ctx) error {
	var req echoRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	return c.JSON(fiber.Map{
		"response": fmt.Sprintf("MooBot thinks your query was: '%s'", req.Query),
	})
}

func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	session := s.store.Create()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id": session.ID,
	})
}

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	session, err := s.session(c)
	if err != nil {
		return err
	}

	turns := session.Turns()
	resp := sessionResponse{
		ID:      session.ID,
		Created: session.Created,
		Turns:   make([]turnResponse, 0, len(turns)),
	}
	for _, turn := range turns {
		resp.Turns = append(resp.Turns, toTurnResponse(turn))
	}

	return c.JSON(resp)
}

func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	if err = s.store.Delete(id); err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handlePostMessage(c *fiber.Ctx) error {
	session, err := s.session(c)
	if err != nil {
		return err
	}

	var req messageRequest
	if err = c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err = s.validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	turn, err := s.submitter.Submit(c.UserContext(), session, req.Text)
	if err != nil {
		if errors.Is(err, queue.ErrQueueFull) || errors.Is(err, queue.ErrQueueClosed) {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}

		return oops.
			In("api").
			With("session", session.ID).
			Wrapf(err, "failed to process message")
	}

	return c.JSON(toTurnResponse(turn))
}

func (s *Server) session(c *fiber.Ctx) (*chat.Session, error) {
	id, err := parseID(c)
	if err != nil {
		return nil, err
	}

	session, err := s.store.Get(id)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	return session, nil
}

func parseID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}

	return id, nil
}
