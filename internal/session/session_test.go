package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"carlos-assist/internal/kb"
	"carlos-assist/internal/match"
	"carlos-assist/internal/resolution"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newResponder(t *testing.T) *Responder {
	t.Helper()
	catalog, err := kb.LoadDefault()
	require.NoError(t, err)
	return NewResponder(match.NewMatcher(catalog), resolution.Options{}, catalog.Suggestions())
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, Wait(ctx, done))
}

type recordingNotifier struct {
	mu    sync.Mutex
	views []resolution.View
}

func (n *recordingNotifier) ResolutionMatched(_ string, view resolution.View) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.views = append(n.views, view)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.views)
}

type recordingObserver struct {
	mu      sync.Mutex
	queries []string
	passes  []string
}

func (o *recordingObserver) ReplyReady(_ string, query string, result match.Result, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queries = append(o.queries, query)
	o.passes = append(o.passes, result.Pass)
}

func TestSubmitMatchedQueryAppendsResolution(t *testing.T) {
	notifier := &recordingNotifier{}
	observer := &recordingObserver{}
	s := New("s1", newResponder(t), Options{Notifier: notifier, Observer: observer})
	defer s.Close()

	done, err := s.Submit("  Send to Lab button is disabled  ")
	require.NoError(t, err)
	waitDone(t, done)

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "Send to Lab button is disabled", msgs[0].Text)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	require.NotNil(t, msgs[1].Resolution)
	assert.Equal(t, "send-to-lab", msgs[1].Resolution.ID)
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 1, notifier.count())
	assert.Equal(t, []string{"Send to Lab button is disabled"}, observer.queries)
	assert.Equal(t, []string{match.PassRule}, observer.passes)
}

func TestSubmitUnmatchedQueryAsksForClarification(t *testing.T) {
	notifier := &recordingNotifier{}
	s := New("s1", newResponder(t), Options{Notifier: notifier})
	defer s.Close()

	done, err := s.Submit("asdkjfhaskldjfh nonsense")
	require.NoError(t, err)
	waitDone(t, done)

	last, ok := s.LastAssistant()
	require.True(t, ok)
	assert.Nil(t, last.Resolution)
	assert.Contains(t, last.Text, "couldn't find a guide")
	assert.Contains(t, last.Text, "Send to Lab button is disabled")
	assert.Zero(t, notifier.count())
}

func TestSubmitRejectsEmptyMessage(t *testing.T) {
	s := New("s1", newResponder(t), Options{})
	defer s.Close()

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := s.Submit(text)
		assert.True(t, errors.Is(err, ErrEmptyMessage), "text %q: %v", text, err)
	}
	assert.Empty(t, s.Messages())
	assert.Equal(t, StateIdle, s.State())
}

func TestSubmitWhileAwaitingIsRejected(t *testing.T) {
	s := New("s1", newResponder(t), Options{Delay: time.Hour})
	defer s.Close()

	_, err := s.Submit("I can't create an audit")
	require.NoError(t, err)
	assert.Equal(t, StateAwaiting, s.State())

	_, err = s.Submit("another question")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Len(t, s.Messages(), 1)
}

func TestRepliesKeepSubmissionOrder(t *testing.T) {
	s := New("s1", newResponder(t), Options{Delay: 5 * time.Millisecond})
	defer s.Close()

	queries := []string{"I can't create an audit", "csv export is empty", "how do I request a retest"}
	want := []string{"create-audit", "csv-export", "retest-request"}
	for _, q := range queries {
		done, err := s.Submit(q)
		require.NoError(t, err)
		waitDone(t, done)
	}

	msgs := s.Messages()
	require.Len(t, msgs, 2*len(queries))
	for i := range queries {
		assert.Equal(t, RoleUser, msgs[2*i].Role)
		assert.Equal(t, queries[i], msgs[2*i].Text)
		require.NotNil(t, msgs[2*i+1].Resolution)
		assert.Equal(t, want[i], msgs[2*i+1].Resolution.ID)
	}
}

func TestCloseDiscardsPendingReply(t *testing.T) {
	notifier := &recordingNotifier{}
	s := New("s1", newResponder(t), Options{Delay: time.Hour, Notifier: notifier})

	done, err := s.Submit("Send to Lab button is disabled")
	require.NoError(t, err)

	s.Close()
	select {
	case <-done:
	default:
		t.Fatal("done channel should be closed once Close returns")
	}
	assert.Equal(t, StateClosed, s.State())
	assert.Len(t, s.Messages(), 1)
	assert.Zero(t, notifier.count())

	_, err = s.Submit("again")
	assert.ErrorIs(t, err, ErrClosed)
	s.Close()
}

func TestWaitHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Wait(ctx, make(chan struct{})), context.Canceled)
}

func TestSnapshotIsCopy(t *testing.T) {
	s := New("", newResponder(t), Options{})
	defer s.Close()
	require.NotEmpty(t, s.ID())

	done, err := s.Submit("csv export")
	require.NoError(t, err)
	waitDone(t, done)

	snap := s.Snapshot()
	snap.Messages[0].Text = "mutated"
	assert.NotEqual(t, "mutated", s.Messages()[0].Text)
}
