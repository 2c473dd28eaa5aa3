package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"moobot/app/config"
	"moobot/app/service/chat"
	"moobot/app/service/classifier"
	"moobot/app/service/dataset"
	"moobot/app/service/executor"
	"moobot/app/service/presenter"
	"moobot/app/service/queue"
	"moobot/app/service/responder"
	"moobot/app/service/synth"
	"moobot/app/service/vocab"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const herd = `timestamp,C01_behavior,C01_x,C01_y,C01_z,C02_behavior,C02_x,C02_y,C02_z,C03_behavior,C03_x,C03_y,C03_z
2024-05-01 15:00:00,2,100,-600,0,2,0,0,0,2,-200,-520,0
2024-05-01 16:00:00,2,100,-600,0,2,0,-600,0,7,0,0,0
`

type fakeCompleter struct {
	reply   string
	err     error
	calls   int
	systems []string
}

func (f *fakeCompleter) Complete(_ context.Context, system, _ string) (string, error) {
	f.calls++
	f.systems = append(f.systems, system)
	return f.reply, f.err
}

type harness struct {
	classify *fakeCompleter
	query    *fakeCompleter
	reply    *fakeCompleter
	svc      *Service
	queue    *queue.Service
	images   string
}

func newHarness(t *testing.T, mode string) *harness {
	t.Helper()

	table, err := dataset.Parse(strings.NewReader(herd))
	require.NoError(t, err)

	images := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(images, "C01.jpg"), []byte("jpeg"), 0o644))

	h := &harness{
		classify: &fakeCompleter{},
		query:    &fakeCompleter{},
		reply:    &fakeCompleter{},
		queue:    queue.NewService(4),
		images:   images,
	}

	synthSvc, err := synth.NewService(h.query, mode, table.Cows())
	require.NoError(t, err)

	h.svc = NewService(
		classifier.NewService(h.classify, classifier.Conversation),
		synthSvc,
		executor.NewService(table, 1_000_000),
		responder.NewService(h.reply, len(table.Cows())),
		presenter.NewService(images),
		h.queue,
	)

	return h
}

func newSession() *chat.Session {
	store, _ := chat.NewStore(nil)
	return store.Create()
}

func TestStandingNearFeedingAreaAt3pm(t *testing.T) {
	h := newHarness(t, config.QueryModeFilter)
	h.classify.reply = "data_query"
	h.query.reply = "```json\n{\"behaviors\": [2], \"regions\": [\"feeding\"], \"hours\": {\"from\": 15, \"to\": 15}}\n```"

	session := newSession()
	turn := h.svc.ProcessTurn(context.Background(), session, "Which cows were standing near the feeding area at 3pm?")

	assert.Equal(t, classifier.DataQuery, turn.Intent)
	assert.Equal(t, chat.SenderBot, turn.Sender)
	assert.Equal(t, "Cows based on your query: C01, C03\nImage not found: C03", turn.Text)
	assert.Equal(t, map[string]string{"C01": filepath.Join(h.images, "C01.jpg")}, turn.Images)
	assert.Equal(t, []string{"C03"}, turn.Missing)
	assert.Equal(t, [][]string{{"C01"}}, turn.Rows)

	require.Len(t, h.query.systems, 1)
	assert.Contains(t, h.query.systems[0], vocab.BehaviorTable())
	assert.Contains(t, h.query.systems[0], vocab.RegionTable())
	assert.Zero(t, h.reply.calls)

	turns := session.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, chat.SenderUser, turns[0].Sender)
	assert.Equal(t, "Which cows were standing near the feeding area at 3pm?", turns[0].Text)
	assert.Equal(t, turn.Text, turns[1].Text)
}

func TestScriptModeEndToEnd(t *testing.T) {
	h := newHarness(t, config.QueryModeScript)
	h.classify.reply = "data_query"
	h.query.reply = "```python\ncows = []\nfor cow in df.cows:\n    for row in df.rows:\n        obs = row.cows[cow]\n        if row.hour == 15 and obs.behavior == 2 and in_region(obs.x, obs.y, \"feeding\"):\n            cows.append(cow)\n```"

	turn := h.svc.ProcessTurn(context.Background(), newSession(), "Which cows were standing near the feeding area at 3pm?")

	assert.Equal(t, "Cows based on your query: C01, C03\nImage not found: C03", turn.Text)
	assert.Len(t, turn.Images, 1)
}

func TestNonDataIntentsHaveNoImages(t *testing.T) {
	cases := map[string]classifier.Intent{
		"info_query":   classifier.InfoQuery,
		"conversation": classifier.Conversation,
	}

	for label, intent := range cases {
		h := newHarness(t, config.QueryModeFilter)
		h.classify.reply = label
		h.reply.reply = "Moo."

		turn := h.svc.ProcessTurn(context.Background(), newSession(), "Hello")

		assert.Equal(t, intent, turn.Intent)
		assert.Equal(t, "Moo.", turn.Text)
		assert.Empty(t, turn.Images)
		assert.Empty(t, turn.Rows)
		assert.Zero(t, h.query.calls)
	}
}

func TestEmptyResult(t *testing.T) {
	h := newHarness(t, config.QueryModeScript)
	h.classify.reply = "data_query"
	h.query.reply = "```python\ncows = []\n```"

	turn := h.svc.ProcessTurn(context.Background(), newSession(), "Which cows were licking?")

	assert.Equal(t, presenter.NoMatchText, turn.Text)
	assert.Empty(t, turn.Images)
}

func TestFailuresBecomeText(t *testing.T) {
	cases := []struct {
		name     string
		reply    string
		err      error
		contains string
	}{
		{"no code block", "I don't know.", nil, "No query found"},
		{"service down", "", errors.New("dial tcp: connection refused"), "connection refused"},
		{"raising snippet", "```python\nfail('division by zero')\n```", nil, "Error executing generated query"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h := newHarness(t, config.QueryModeScript)
			h.classify.reply = "data_query"
			h.query.reply = c.reply
			h.query.err = c.err

			var turn chat.Turn
			require.NotPanics(t, func() {
				turn = h.svc.ProcessTurn(context.Background(), newSession(), "Which cows?")
			})

			assert.Contains(t, turn.Text, c.contains)
			assert.Empty(t, turn.Images)
		})
	}

	h := newHarness(t, config.QueryModeScript)
	h.classify.reply = "data_query"
	h.query.reply = "```python\nfail('division by zero')\n```"
	turn := h.svc.ProcessTurn(context.Background(), newSession(), "Which cows?")
	assert.Contains(t, turn.Text, "division by zero")
}

func TestClassificationFailureFallsBackToConversation(t *testing.T) {
	h := newHarness(t, config.QueryModeFilter)
	h.classify.err = errors.New("timeout")
	h.reply.reply = "Hi there!"

	turn := h.svc.ProcessTurn(context.Background(), newSession(), "Which cows were lying?")

	assert.Equal(t, classifier.Conversation, turn.Intent)
	assert.Equal(t, "Hi there!", turn.Text)
	assert.Zero(t, h.query.calls)
}

func TestRunProcessesQueuedTurns(t *testing.T) {
	h := newHarness(t, config.QueryModeFilter)
	h.classify.reply = "conversation"
	h.reply.reply = "Moo!"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		h.svc.Run(ctx)
		close(done)
	}()

	session := newSession()

	submitCtx, submitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer submitCancel()

	turn, err := h.queue.Submit(submitCtx, session, "Hello")
	require.NoError(t, err)
	assert.Equal(t, "Moo!", turn.Text)
	assert.Equal(t, 2, session.Len())

	require.NoError(t, h.queue.Shutdown())

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after queue shutdown")
	}
}
