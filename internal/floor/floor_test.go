package floor

import "testing"

func TestSecondCaptureRefused(t *testing.T) {
    f := New()
    if d := f.BeginCapture(); !d.Allowed {
        t.Fatalf("first capture should be allowed, got %+v", d)
    }
    d := f.BeginCapture()
    if d.Allowed || d.Reason != "capture_active" {
        t.Fatalf("expected refusal, got %+v", d)
    }
}

func TestCaptureRefusedDuringPlayback(t *testing.T) {
    f := New()
    f.BeginPlayback()
    d := f.BeginCapture()
    if d.Allowed || d.Reason != "playback_active" {
        t.Fatalf("expected refusal while speaking, got %+v", d)
    }
    f.EndPlayback()
    if d := f.BeginCapture(); !d.Allowed {
        t.Fatalf("capture should be allowed after playback, got %+v", d)
    }
}

func TestPlaybackPreemptsCapture(t *testing.T) {
    f := New()
    f.BeginCapture()
    d := f.BeginPlayback()
    if !d.Allowed || !d.AbortCapture {
        t.Fatalf("expected playback with capture abort, got %+v", d)
    }
    if f.Capturing() {
        t.Fatalf("capture should be released")
    }
}

func TestResetReleasesEverything(t *testing.T) {
    f := New()
    f.BeginCapture()
    f.EndCapture()
    f.BeginPlayback()
    f.Reset()
    if f.Capturing() || f.Speaking() {
        t.Fatalf("reset should release capture and playback")
    }
}
