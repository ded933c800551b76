package conversation

import (
	"time"

	"dealer/kiosk/internal/floor"
	"dealer/kiosk/internal/phrase"
)

// Options holds the fixed delays of the loop.
type Options struct {
	// ResetDelay is the pause between a detected termination and the reset.
	ResetDelay time.Duration
	// RestartDelay is added before re-listening while auto-respond is on.
	RestartDelay time.Duration
	// RearmDelay separates aborting a capture from starting the next one.
	RearmDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		ResetDelay:   2 * time.Second,
		RestartDelay: 200 * time.Millisecond,
		RearmDelay:   100 * time.Millisecond,
	}
}

// Machine is the turn-taking state machine. It performs no I/O: Handle
// returns the commands a driver must execute. Not safe for concurrent use.
type Machine struct {
	opts  Options
	state State
	epoch uint64

	ctx   SessionContext
	turns []Turn
	floor *floor.Manager

	processing       bool
	speaking         bool
	awaitingPlayback bool
	restartPending   bool
}

func NewMachine(opts Options) *Machine {
	return &Machine{opts: opts, state: StateIdle, floor: floor.New()}
}

func (m *Machine) State() State { return m.state }

func (m *Machine) Epoch() uint64 { return m.epoch }

func (m *Machine) Turns() []Turn { return append([]Turn(nil), m.turns...) }

func (m *Machine) Context() SessionContext { return m.ctx }

// Snapshot returns the observable state.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		State:      m.state,
		Listening:  m.floor.Capturing(),
		Processing: m.processing,
		Speaking:   m.speaking,
		Context:    m.ctx,
		Turns:      m.Turns(),
		Epoch:      m.epoch,
	}
}

// Handle applies ev and returns the commands to execute, in order.
func (m *Machine) Handle(ev Event) []Command {
	switch ev.Kind {
	case EventStart:
		return m.start()
	case EventReset:
		return m.reset()
	}
	if ev.Epoch != m.epoch {
		metricStaleEvents.Inc()
		return nil
	}
	switch ev.Kind {
	case EventTranscript:
		return m.onTranscript(ev.Text)
	case EventCaptureEnded:
		return m.onCaptureEnded()
	case EventReply:
		return m.onReply(ev.Text)
	case EventReplyFailed:
		if m.state != StateProcessing {
			return nil
		}
		return m.onFailure("network")
	case EventPlaybackStarted:
		m.onPlaybackStarted()
		return nil
	case EventPlaybackEnded:
		return m.onPlaybackEnded()
	case EventPlaybackFailed:
		if m.state != StateSpeaking || !m.awaitingPlayback {
			return nil
		}
		return m.onFailure("synthesis")
	case EventRestartDue:
		if m.state != StateSpeaking || !m.restartPending {
			return nil
		}
		m.restartPending = false
		return m.listen()
	case EventResetDue:
		if m.state != StateTerminating {
			return nil
		}
		m.clear()
		return []Command{m.cmd(CmdResetChat)}
	}
	return nil
}

func (m *Machine) start() []Command {
	if m.state != StateIdle {
		return nil
	}
	m.ctx.ConversationActive = true
	m.ctx.AutoRespond = true
	return m.listen()
}

func (m *Machine) listen() []Command {
	if d := m.floor.BeginCapture(); !d.Allowed {
		return nil
	}
	m.setState(StateListening)
	return []Command{m.cmd(CmdStartCapture)}
}

func (m *Machine) onTranscript(text string) []Command {
	if m.state != StateListening {
		return nil
	}
	m.floor.EndCapture()
	m.turns = append(m.turns, Turn{Role: RoleVisitor, Text: text})
	m.ctx.absorb(text)
	m.ctx.AutoRespond = true
	m.processing = true
	m.setState(StateProcessing)
	c := m.cmd(CmdRequestReply)
	c.Text = text
	return []Command{c}
}

// onCaptureEnded handles a capture that closed without a transcript. The
// machine waits for an explicit start or reset.
func (m *Machine) onCaptureEnded() []Command {
	if m.state != StateListening {
		return nil
	}
	m.floor.EndCapture()
	metricFailures.WithLabelValues("capture").Inc()
	m.ctx.AutoRespond = false
	m.ctx.ConversationActive = false
	m.setState(StateIdle)
	return nil
}

func (m *Machine) onReply(text string) []Command {
	if m.state != StateProcessing {
		return nil
	}
	m.turns = append(m.turns, Turn{Role: RoleAssistant, Text: text})
	m.ctx.LastAssistantText = text
	m.setState(StateSpeaking)
	m.awaitingPlayback = true

	var out []Command
	if d := m.floor.BeginPlayback(); d.AbortCapture {
		out = append(out, m.cmd(CmdAbortCapture))
	}
	c := m.cmd(CmdSpeak)
	c.Text = text
	return append(out, c)
}

// onFailure stalls the conversation in Idle. There is no retry.
func (m *Machine) onFailure(kind string) []Command {
	metricFailures.WithLabelValues(kind).Inc()
	m.processing = false
	m.speaking = false
	m.awaitingPlayback = false
	m.restartPending = false
	m.floor.EndPlayback()
	m.ctx.AutoRespond = false
	m.ctx.ConversationActive = false
	m.setState(StateIdle)
	return nil
}

func (m *Machine) onPlaybackStarted() {
	if m.state != StateSpeaking || !m.awaitingPlayback {
		return
	}
	m.speaking = true
	m.processing = false
}

func (m *Machine) onPlaybackEnded() []Command {
	if m.state != StateSpeaking || !m.awaitingPlayback {
		return nil
	}
	m.awaitingPlayback = false
	m.speaking = false
	m.processing = false
	m.floor.EndPlayback()

	if phrase.IsTermination(m.ctx.LastAssistantText) {
		metricTerminations.Inc()
		m.ctx.AutoRespond = false
		m.ctx.ConversationActive = false
		m.setState(StateTerminating)
		logc := m.cmd(CmdLogInteraction)
		logc.Name = m.ctx.VisitorName
		logc.Product = m.ctx.ProductInterest
		reset := m.cmd(CmdScheduleReset)
		reset.Delay = m.opts.ResetDelay
		return []Command{logc, reset}
	}

	// Auto-respond and manual branches both re-listen; only the wait differs.
	delay := m.opts.RearmDelay
	if m.ctx.AutoRespond {
		delay += m.opts.RestartDelay
	}
	m.restartPending = true
	restart := m.cmd(CmdScheduleRestart)
	restart.Delay = delay
	return []Command{m.cmd(CmdAbortCapture), restart}
}

// reset clears everything regardless of the current state. Results still in
// flight are dropped by the epoch bump.
func (m *Machine) reset() []Command {
	var out []Command
	if m.floor.Capturing() {
		out = append(out, m.cmd(CmdAbortCapture))
	}
	m.clear()
	return append(out, m.cmd(CmdResetChat))
}

func (m *Machine) clear() {
	m.epoch++
	m.turns = nil
	m.ctx = SessionContext{}
	m.processing = false
	m.speaking = false
	m.awaitingPlayback = false
	m.restartPending = false
	m.floor.Reset()
	m.setState(StateIdle)
}

func (m *Machine) cmd(kind CommandKind) Command {
	return Command{Kind: kind, Epoch: m.epoch}
}

// setState transitions and records the metric.
func (m *Machine) setState(to State) {
	from := m.state
	if from == to {
		return
	}
	metricStateTransitions.WithLabelValues(string(from), string(to)).Inc()
	m.state = to
}
