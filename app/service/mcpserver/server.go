package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"moobot/app/service/chat"
	"moobot/app/service/queue"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/do"
)

const (
	ToolName = "ask_moobot"
	version  = "1.0.0"
)

// Submitter runs one chat turn and returns the bot reply.
type Submitter interface {
	Submit(ctx context.Context, session *chat.Session, text string) (chat.Turn, error)
}

// Server exposes the chat pipeline as a single MCP tool over stdio.
// All tool calls share one chat session.
type Server struct {
	submitter Submitter
	session   *chat.Session
	mcp       *server.MCPServer
}

func New(di *do.Injector) (*Server, error) {
	return NewServer(
		do.MustInvoke[*chat.Store](di),
		do.MustInvoke[*queue.Service](di),
	), nil
}

func NewServer(store *chat.Store, submitter Submitter) *Server {
	s := &Server{
		submitter: submitter,
		session:   store.Create(),
	}

	s.mcp = server.NewMCPServer("moobot", version, server.WithToolCapabilities(false))
	s.mcp.AddTool(mcp.NewTool(ToolName,
		mcp.WithDescription("Ask MooBot about the dairy herd. Questions about cow behavior and location are answered from sensor data with the matching cow ids."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language question, e.g. 'Which cows were standing near the feeding area at 3pm?'"),
		),
	), s.handleAsk)

	return s
}

func (s *Server) Session() *chat.Session {
	return s.session
}

// Run serves stdin/stdout until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("MCP server listening on stdio", "session", s.session.ID)

	err := server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
	if ctx.Err() != nil {
		return nil
	}

	return err
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return mcp.NewToolResultError("query must not be empty"), nil
	}

	turn, err := s.submitter.Submit(ctx, s.session, query)
	if err != nil {
		slog.Warn("MCP tool call failed", "query", query, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to process query: %v", err)), nil
	}

	return mcp.NewToolResultText(formatTurn(turn)), nil
}

func formatTurn(turn chat.Turn) string {
	if len(turn.Images) == 0 {
		return turn.Text
	}

	var sb strings.Builder
	sb.WriteString(turn.Text)
	sb.WriteString("\n\nImages:")

	for _, row := range turn.Rows {
		for _, id := range row {
			sb.WriteString(fmt.Sprintf("\n- %s: %s", id, turn.Images[id]))
		}
	}

	return sb.String()
}
