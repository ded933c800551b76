package conversation

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealer/kiosk/internal/phrase"
)

func testOptions() Options {
	return Options{ResetDelay: 2 * time.Second, RestartDelay: 200 * time.Millisecond, RearmDelay: 100 * time.Millisecond}
}

// send delivers an event tagged with the machine's current epoch.
func send(m *Machine, kind EventKind, text string) []Command {
	return m.Handle(Event{Kind: kind, Text: text, Epoch: m.Epoch()})
}

func kinds(cmds []Command) []CommandKind {
	out := make([]CommandKind, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, c.Kind)
	}
	return out
}

// speakTurn plays one visitor/assistant exchange up to the end of playback.
func speakTurn(t *testing.T, m *Machine, transcript, reply string) []Command {
	t.Helper()
	require.Equal(t, StateListening, m.State())
	cmds := send(m, EventTranscript, transcript)
	require.Equal(t, []CommandKind{CmdRequestReply}, kinds(cmds))
	require.Equal(t, transcript, cmds[0].Text)

	cmds = send(m, EventReply, reply)
	require.Equal(t, []CommandKind{CmdSpeak}, kinds(cmds))
	require.Equal(t, StateSpeaking, m.State())

	send(m, EventPlaybackStarted, "")
	require.True(t, m.Snapshot().Speaking)
	return send(m, EventPlaybackEnded, "")
}

func TestStartFromIdle(t *testing.T) {
	m := NewMachine(testOptions())
	cmds := m.Handle(Event{Kind: EventStart})

	assert.Equal(t, []CommandKind{CmdStartCapture}, kinds(cmds))
	assert.Equal(t, StateListening, m.State())
	snap := m.Snapshot()
	assert.True(t, snap.Listening)
	assert.True(t, snap.Context.ConversationActive)
	assert.True(t, snap.Context.AutoRespond)
}

func TestStartIgnoredWhenNotIdle(t *testing.T) {
	m := NewMachine(testOptions())
	m.Handle(Event{Kind: EventStart})
	cmds := m.Handle(Event{Kind: EventStart})
	assert.Empty(t, cmds)
	assert.Equal(t, StateListening, m.State())
}

func TestVisitorNameCapturedAfterNameQuestion(t *testing.T) {
	m := NewMachine(testOptions())
	m.Handle(Event{Kind: EventStart})

	cmds := speakTurn(t, m, "Bom dia", "Olá, eu sou a IA da Dealer. Qual é o seu nome?")
	require.Equal(t, []CommandKind{CmdAbortCapture, CmdScheduleRestart}, kinds(cmds))
	assert.Equal(t, 300*time.Millisecond, cmds[1].Delay)
	assert.Equal(t, StateSpeaking, m.State())

	cmds = send(m, EventRestartDue, "")
	require.Equal(t, []CommandKind{CmdStartCapture}, kinds(cmds))
	require.Equal(t, StateListening, m.State())

	send(m, EventTranscript, "Giba")
	assert.Equal(t, "Giba", m.Context().VisitorName)
	assert.Empty(t, m.Context().ProductInterest)
}

func TestNameMarkerIsCaseInsensitive(t *testing.T) {
	m := NewMachine(testOptions())
	m.Handle(Event{Kind: EventStart})
	speakTurn(t, m, "oi", "POR FAVOR, DIGA SEU NOME.")
	send(m, EventRestartDue, "")
	send(m, EventTranscript, "Alan")
	assert.Equal(t, "Alan", m.Context().VisitorName)
}

func TestProductInterestCapturedAfterProductQuestion(t *testing.T) {
	m := NewMachine(testOptions())
	m.Handle(Event{Kind: EventStart})
	speakTurn(t, m, "Giba", "Prazer, Giba! Qual tipo de produto você tem interesse em ver?")
	send(m, EventRestartDue, "")
	send(m, EventTranscript, "Vigilância para Agro")

	assert.Equal(t, "Vigilância para Agro", m.Context().ProductInterest)
	assert.Empty(t, m.Context().VisitorName)
}

func TestTerminationLogsOnceThenResets(t *testing.T) {
	m := NewMachine(testOptions())
	m.Handle(Event{Kind: EventStart})
	speakTurn(t, m, "oi", "Qual é o seu nome?")
	send(m, EventRestartDue, "")
	speakTurn(t, m, "Giba", "Qual tipo de produto você quer ver?")
	send(m, EventRestartDue, "")

	cmds := speakTurn(t, m, "Agro", "Vou chamar os consultores. A entrada para o showroom já está liberada")
	require.Equal(t, []CommandKind{CmdLogInteraction, CmdScheduleReset}, kinds(cmds))
	assert.Equal(t, "Giba", cmds[0].Name)
	assert.Equal(t, "Agro", cmds[0].Product)
	assert.Equal(t, 2*time.Second, cmds[1].Delay)
	assert.Equal(t, StateTerminating, m.State())

	ctx := m.Context()
	assert.False(t, ctx.AutoRespond)
	assert.False(t, ctx.ConversationActive)

	// a duplicate end-of-playback must not log again
	assert.Empty(t, send(m, EventPlaybackEnded, ""))

	cmds = send(m, EventResetDue, "")
	assert.Equal(t, []CommandKind{CmdResetChat}, kinds(cmds))
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, SessionContext{}, m.Context())
	assert.Empty(t, m.Turns())
	snap := m.Snapshot()
	assert.False(t, snap.Listening)
	assert.False(t, snap.Processing)
	assert.False(t, snap.Speaking)
}

func TestEveryTerminationGroupFires(t *testing.T) {
	for _, g := range phrase.TerminationGroups {
		m := NewMachine(testOptions())
		m.Handle(Event{Kind: EventStart})
		reply := "Pronto: " + strings.ToUpper(strings.Join(g, "... ")) + "!"
		cmds := speakTurn(t, m, "oi", reply)

		logs := 0
		for _, c := range cmds {
			if c.Kind == CmdLogInteraction {
				logs++
			}
		}
		assert.Equal(t, 1, logs, "group %v", g)
	}
}

func TestReplyFailureStallsInIdle(t *testing.T) {
	m := NewMachine(testOptions())
	m.Handle(Event{Kind: EventStart})
	send(m, EventTranscript, "oi")
	require.True(t, m.Snapshot().Processing)

	cmds := m.Handle(Event{Kind: EventReplyFailed, Err: errors.New("boom"), Epoch: m.Epoch()})
	assert.Empty(t, cmds)
	assert.Equal(t, StateIdle, m.State())
	snap := m.Snapshot()
	assert.False(t, snap.Processing)
	assert.False(t, snap.Speaking)
	assert.False(t, snap.Listening)
	assert.False(t, snap.Context.AutoRespond)
}

func TestPlaybackFailureClearsSpeaking(t *testing.T) {
	m := NewMachine(testOptions())
	m.Handle(Event{Kind: EventStart})
	send(m, EventTranscript, "oi")
	send(m, EventReply, "Olá!")
	send(m, EventPlaybackStarted, "")

	send(m, EventPlaybackFailed, "")
	assert.Equal(t, StateIdle, m.State())
	assert.False(t, m.Snapshot().Speaking)

	// the floor is free again
	cmds := m.Handle(Event{Kind: EventStart})
	assert.Equal(t, []CommandKind{CmdStartCapture}, kinds(cmds))
}

func TestCaptureWithoutTranscriptWaitsForStart(t *testing.T) {
	m := NewMachine(testOptions())
	m.Handle(Event{Kind: EventStart})

	assert.Empty(t, send(m, EventCaptureEnded, ""))
	assert.Equal(t, StateIdle, m.State())
	assert.False(t, m.Snapshot().Listening)

	cmds := m.Handle(Event{Kind: EventStart})
	assert.Equal(t, []CommandKind{CmdStartCapture}, kinds(cmds))
}

func TestResetMidConversation(t *testing.T) {
	m := NewMachine(testOptions())
	m.Handle(Event{Kind: EventStart})
	speakTurn(t, m, "oi", "Qual é o seu nome?")
	send(m, EventRestartDue, "")
	send(m, EventTranscript, "Giba")
	require.Equal(t, StateProcessing, m.State())
	staleEpoch := m.Epoch()

	cmds := m.Handle(Event{Kind: EventReset})
	assert.Equal(t, []CommandKind{CmdResetChat}, kinds(cmds))
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, SessionContext{}, m.Context())
	assert.Empty(t, m.Turns())

	// the reply that was in flight arrives late and is dropped
	assert.Empty(t, m.Handle(Event{Kind: EventReply, Text: "Prazer!", Epoch: staleEpoch}))
	assert.Equal(t, StateIdle, m.State())
	assert.Empty(t, m.Turns())
}

func TestResetWhileListeningAbortsCapture(t *testing.T) {
	m := NewMachine(testOptions())
	m.Handle(Event{Kind: EventStart})
	cmds := m.Handle(Event{Kind: EventReset})
	assert.Equal(t, []CommandKind{CmdAbortCapture, CmdResetChat}, kinds(cmds))
	assert.False(t, m.Snapshot().Listening)
}

func TestStaleRestartAfterResetIgnored(t *testing.T) {
	m := NewMachine(testOptions())
	m.Handle(Event{Kind: EventStart})
	speakTurn(t, m, "oi", "Olá!")
	epoch := m.Epoch()
	m.Handle(Event{Kind: EventReset})

	assert.Empty(t, m.Handle(Event{Kind: EventRestartDue, Epoch: epoch}))
	assert.Equal(t, StateIdle, m.State())
}

func TestManualRestartUsesRearmDelayOnly(t *testing.T) {
	m := NewMachine(testOptions())
	m.Handle(Event{Kind: EventStart})
	send(m, EventTranscript, "oi")
	send(m, EventReply, "Olá!")
	m.ctx.AutoRespond = false

	cmds := send(m, EventPlaybackEnded, "")
	require.Equal(t, []CommandKind{CmdAbortCapture, CmdScheduleRestart}, kinds(cmds))
	assert.Equal(t, 100*time.Millisecond, cmds[1].Delay)
}

func TestTurnsAreOrdered(t *testing.T) {
	m := NewMachine(testOptions())
	m.Handle(Event{Kind: EventStart})
	speakTurn(t, m, "oi", "Qual é o seu nome?")
	send(m, EventRestartDue, "")
	speakTurn(t, m, "Giba", "Prazer!")

	assert.Equal(t, []Turn{
		{Role: RoleVisitor, Text: "oi"},
		{Role: RoleAssistant, Text: "Qual é o seu nome?"},
		{Role: RoleVisitor, Text: "Giba"},
		{Role: RoleAssistant, Text: "Prazer!"},
	}, m.Turns())
	assert.Equal(t, "Prazer!", m.Context().LastAssistantText)
}
