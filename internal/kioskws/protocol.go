package kioskws

// Commands sent by the server to the kiosk.
const (
    CmdStartListening = "start_listening"
    CmdAbortListening = "abort_listening"
    CmdSpeak          = "speak"
)

// Events sent by the kiosk in answer to a command, tagged with its
// command id.
const (
    EvtTranscript      = "transcript"
    EvtCaptureEnded    = "capture_ended"
    EvtPlaybackStarted = "playback_started"
    EvtPlaybackEnded   = "playback_ended"
    EvtPlaybackFailed  = "playback_failed"
)

// Kiosk-initiated messages.
const (
    MsgHello = "kiosk_hello"
    MsgStart = "start"
    MsgReset = "reset"
    // MsgEvent carries a server bus event to the kiosk.
    MsgEvent = "event"
)
