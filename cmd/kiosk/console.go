package main

import (
    "bufio"
    "context"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "strings"
    "sync/atomic"

    "github.com/fatih/color"

    "dealer/kiosk/internal/conversation"
    "dealer/kiosk/internal/kioskclient"
)

// console is both the microphone and the speaker of the console kiosk.
type console struct {
    in       io.Reader
    client   *kioskclient.Client
    audioDir string
    noAudio  bool

    lines    chan string
    commands chan string
    n        atomic.Int64
}

func newConsole(in io.Reader, client *kioskclient.Client, audioDir string, noAudio bool) *console {
    return &console{
        in:       in,
        client:   client,
        audioDir: audioDir,
        noAudio:  noAudio,
        lines:    make(chan string),
        commands: make(chan string, 4),
    }
}

// read splits stdin into commands (lines starting with "/") and utterances.
// Utterances typed while nobody listens are discarded.
func (c *console) read(ctx context.Context) {
    sc := bufio.NewScanner(c.in)
    for sc.Scan() {
        line := strings.TrimSpace(sc.Text())
        if strings.HasPrefix(line, "/") {
            c.commands <- line
            continue
        }
        select {
        case c.lines <- line:
        case <-ctx.Done():
            return
        default:
            color.HiBlack("(não estou ouvindo; digite /start)")
        }
    }
    c.commands <- "/quit"
}

func (c *console) Listen(ctx context.Context) (string, error) {
    color.Blue("🎤 ouvindo...")
    select {
    case <-ctx.Done():
        return "", ctx.Err()
    case line := <-c.lines:
        if line == "" {
            return "", conversation.ErrNoTranscript
        }
        return line, nil
    }
}

func (c *console) Speak(ctx context.Context, text string, onStart func()) error {
    return c.Play(ctx, text, onStart)
}

func (c *console) Play(ctx context.Context, text string, onStart func()) error {
    if !c.noAudio {
        audio, err := c.client.Synthesize(ctx, text)
        if err != nil {
            return err
        }
        if c.audioDir != "" {
            name := filepath.Join(c.audioDir, fmt.Sprintf("reply-%03d.mp3", c.n.Add(1)))
            if err := os.WriteFile(name, audio.Data, 0o644); err != nil {
                return err
            }
        }
    }
    onStart()
    color.Green("🤖 %s", text)
    return nil
}
