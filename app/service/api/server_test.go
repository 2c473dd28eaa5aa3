package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"moobot/app/config"
	"moobot/app/service/chat"
	"moobot/app/service/classifier"
	"moobot/app/service/dataset"
	"moobot/app/service/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubmitter struct {
	err  error
	text string
}

func (f *fakeSubmitter) Submit(_ context.Context, session *chat.Session, text string) (chat.Turn, error) {
	f.text = text
	if f.err != nil {
		return chat.Turn{}, f.err
	}

	turn := chat.Turn{
		Sender:  chat.SenderBot,
		Text:    "Cows based on your query: C01, C02",
		Intent:  classifier.DataQuery,
		Images:  map[string]string{"C01": filepath.Join("some", "dir", "C01.jpg")},
		Missing: []string{"C02"},
		Rows:    [][]string{{"C01"}},
	}
	session.Append(chat.Turn{Sender: chat.SenderUser, Text: text})
	session.Append(turn)

	return turn, nil
}

type testServer struct {
	*Server
	submitter *fakeSubmitter
	store     *chat.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	images := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(images, "C01.jpg"), []byte("jpeg-bytes"), 0o644))

	table, err := dataset.Parse(strings.NewReader("timestamp,C01_behavior\n2024-05-01 15:00:00,2\n"))
	require.NoError(t, err)

	store, _ := chat.NewStore(nil)
	submitter := &fakeSubmitter{}

	cfg := &config.Config{HTTP: config.HTTP{Addr: ":0"}}

	return &testServer{
		Server:    NewServer(cfg, store, submitter, table, images),
		submitter: submitter,
		store:     store,
	}
}

func (s *testServer) do(t *testing.T, method, target, body string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, data
}

func (s *testServer) createSession(t *testing.T) string {
	t.Helper()

	resp, body := s.do(t, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotEmpty(t, created.ID)

	return created.ID
}

func TestSessionConversation(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t)

	resp, body := s.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"text": "Which cows were standing?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var turn turnResponse
	require.NoError(t, json.Unmarshal(body, &turn))
	assert.Equal(t, chat.SenderBot, turn.Sender)
	assert.Equal(t, "data_query", turn.Intent)
	assert.Equal(t, map[string]string{"C01": "/images/C01.jpg"}, turn.Images)
	assert.Equal(t, []string{"C02"}, turn.Missing)
	assert.Equal(t, "Which cows were standing?", s.submitter.text)

	resp, body = s.do(t, http.MethodGet, "/api/sessions/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var session sessionResponse
	require.NoError(t, json.Unmarshal(body, &session))
	assert.Equal(t, id, session.ID.String())
	require.Len(t, session.Turns, 2)
	assert.Equal(t, chat.SenderUser, session.Turns[0].Sender)
	assert.Empty(t, session.Turns[0].Images)

	resp, _ = s.do(t, http.MethodDelete, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(t, http.MethodDelete, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPostMessageValidation(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t)

	resp, body := s.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"text": ""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "error")

	resp, _ = s.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/sessions/not-a-uuid/messages", `{"text": "hi"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/sessions/00000000-0000-0000-0000-000000000001/messages", `{"text": "hi"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPostMessageQueueErrors(t *testing.T) {
	s := newTestServer(t)
	id := s.createSession(t)

	s.submitter.err = queue.ErrQueueFull
	resp, _ := s.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"text": "hi"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	s.submitter.err = errors.New("worker crashed")
	resp, body := s.do(t, http.MethodPost, "/api/sessions/"+id+"/messages", `{"text": "hi"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(body), "worker crashed")
}

func TestEchoEndpoint(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/query", `{"query": "how many cows?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"response": "MooBot thinks your query was: 'how many cows?'"}`, string(body))
}

func TestHealthAndImages(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status": "ok", "rows": 1, "cows": 1}`, string(body))

	resp, body = s.do(t, http.MethodGet, "/images/C01.jpg", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "jpeg-bytes", string(body))

	resp, _ = s.do(t, http.MethodGet, "/images/C09.jpg", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
