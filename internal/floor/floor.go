package floor

// Decision represents the action the floor manager wants the caller to take.
type Decision struct {
    Allowed      bool
    AbortCapture bool
    Reason       string // e.g., "capture_active", "playback_active"
}

// Manager keeps at most one microphone capture and one playback active.
type Manager struct {
    capturing bool
    speaking  bool
}

func New() *Manager { return &Manager{} }

// BeginCapture claims the microphone. Capture never overlaps playback.
func (m *Manager) BeginCapture() Decision {
    if m.capturing {
        return Decision{Reason: "capture_active"}
    }
    if m.speaking {
        return Decision{Reason: "playback_active"}
    }
    m.capturing = true
    return Decision{Allowed: true}
}

func (m *Manager) EndCapture() {
    m.capturing = false
}

// BeginPlayback claims the speaker. A capture still open is released and the
// caller is asked to abort it.
func (m *Manager) BeginPlayback() Decision {
    if m.speaking {
        return Decision{Reason: "playback_active"}
    }
    d := Decision{Allowed: true}
    if m.capturing {
        m.capturing = false
        d.AbortCapture = true
        d.Reason = "capture_preempted"
    }
    m.speaking = true
    return d
}

func (m *Manager) EndPlayback() {
    m.speaking = false
}

func (m *Manager) Capturing() bool { return m.capturing }
func (m *Manager) Speaking() bool  { return m.speaking }

// Reset releases both the microphone and the speaker.
func (m *Manager) Reset() {
    m.capturing = false
    m.speaking = false
}
