package conversation

import "time"

// EventKind names an input to the state machine.
type EventKind string

const (
	EventStart           EventKind = "start"
	EventReset           EventKind = "reset"
	EventTranscript      EventKind = "transcript"
	EventCaptureEnded    EventKind = "capture_ended"
	EventReply           EventKind = "reply"
	EventReplyFailed     EventKind = "reply_failed"
	EventPlaybackStarted EventKind = "playback_started"
	EventPlaybackEnded   EventKind = "playback_ended"
	EventPlaybackFailed  EventKind = "playback_failed"
	EventRestartDue      EventKind = "restart_due"
	EventResetDue        EventKind = "reset_due"
)

// Event is delivered to Machine.Handle. Epoch must match the machine's
// current epoch for every kind except start and reset; results produced
// before a reset are dropped that way.
type Event struct {
	Kind  EventKind
	Text  string
	Err   error
	Epoch uint64
}

// CommandKind names an effect the machine asks its driver to perform.
type CommandKind string

const (
	CmdStartCapture    CommandKind = "start_capture"
	CmdAbortCapture    CommandKind = "abort_capture"
	CmdRequestReply    CommandKind = "request_reply"
	CmdSpeak           CommandKind = "speak"
	CmdLogInteraction  CommandKind = "log_interaction"
	CmdScheduleRestart CommandKind = "schedule_restart"
	CmdScheduleReset   CommandKind = "schedule_reset"
	CmdResetChat       CommandKind = "reset_chat"
)

// Command is an effect returned by Machine.Handle. Results of the effect
// must be fed back tagged with the command's Epoch.
type Command struct {
	Kind    CommandKind
	Text    string
	Name    string
	Product string
	Delay   time.Duration
	Epoch   uint64
}
