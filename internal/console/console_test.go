package console

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"blv-assistant/handler"
	"blv-assistant/internal/conversation"
	"blv-assistant/internal/domain"
	"blv-assistant/internal/usecase"
)

func init() { color.NoColor = true }

func newStore(t *testing.T, turns ...string) *conversation.Store {
	t.Helper()
	s, err := conversation.New("SYS")
	require.NoError(t, err)
	for i, content := range turns {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		require.NoError(t, s.Append(role, content))
	}
	return s
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestShowTurn_PrintsCommittedExchange(t *testing.T) {
	s := newStore(t, "Hello", "Hi there", "What time is it?", "I cannot check the time.")
	var buf bytes.Buffer
	c, err := New(&buf)
	require.NoError(t, err)

	c.ShowTurn(usecase.TurnOutput{Marker: 2, Committed: s.TailSince(2)})
	require.Equal(t, "You: What time is it?\nAssistant: I cannot check the time.\n", buf.String())
}

func TestShowTurn_IgnoresMessagesAppendedAfterTheTurn(t *testing.T) {
	s := newStore(t, "Hello", "Hi there")
	out := usecase.TurnOutput{Marker: 0, Committed: s.TailSince(0)}
	require.NoError(t, s.Append(domain.RoleUser, "Next question"))

	var buf bytes.Buffer
	c, err := New(&buf)
	require.NoError(t, err)

	c.ShowTurn(out)
	require.Equal(t, "You: Hello\nAssistant: Hi there\n", buf.String())
}

func TestShowTurn_RecoveredAndPartial(t *testing.T) {
	s := newStore(t, usecase.FallbackUtterance)
	var buf bytes.Buffer
	c, err := New(&buf)
	require.NoError(t, err)

	c.ShowTurn(usecase.TurnOutput{Marker: 0, Recovered: true, Committed: s.TailSince(0)})
	require.Equal(t, "You (not understood): "+usecase.FallbackUtterance+"\n", buf.String())
}

func TestShowTurn_SkipsSystemPrompt(t *testing.T) {
	s := newStore(t, "Hello", "Hi")
	var buf bytes.Buffer
	c, err := New(&buf)
	require.NoError(t, err)

	c.ShowTurn(usecase.TurnOutput{Marker: -1, Committed: s.TailSince(-1)})
	require.NotContains(t, buf.String(), "SYS")
	require.Contains(t, buf.String(), "You: Hello")
}

func TestShowNoticeAndBanner(t *testing.T) {
	var buf bytes.Buffer
	c, err := New(&buf)
	require.NoError(t, err)

	c.Banner("Press space to talk.", "Press Esc to quit.")
	c.ShowNotice(handler.Notice{Code: usecase.ErrorCompletionFailure, Text: "Try again."})
	require.Equal(t, "Press space to talk.\nPress Esc to quit.\nTry again.\n", buf.String())
}
