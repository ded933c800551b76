// Command kiosk is a console kiosk: typed lines stand in for the
// microphone and replies are printed and optionally saved as audio.
package main

import (
    "context"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/fatih/color"
    "github.com/joho/godotenv"
    "github.com/spf13/pflag"

    "dealer/kiosk/internal/config"
    "dealer/kiosk/internal/conversation"
    "dealer/kiosk/internal/kioskclient"
    "dealer/kiosk/internal/kioskws"
    "dealer/kiosk/internal/logging"
)

func main() {
    server := pflag.StringP("server", "s", "http://localhost:8080", "kiosk server base URL")
    session := pflag.String("session", "kiosk", "chat session id (local mode)")
    remote := pflag.Bool("remote", false, "let the server drive the conversation over the websocket")
    audioDir := pflag.String("audio-dir", "", "save synthesized replies to this directory")
    noAudio := pflag.Bool("no-audio", false, "skip speech synthesis")
    logLevel := pflag.String("log-level", "warn", "log level")
    pflag.Parse()

    _ = godotenv.Load()
    cfg := config.Load()
    logger := logging.New(*logLevel, "")

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    client := kioskclient.New(*server, &http.Client{Timeout: 30 * time.Second})
    con := newConsole(os.Stdin, client, *audioDir, *noAudio)
    go con.read(ctx)

    color.Cyan("Recepção virtual. Comandos: /start, /reset, /quit")

    if *remote {
        if err := runRemote(ctx, client, *server, con); err != nil {
            color.Red("erro: %v", err)
            os.Exit(1)
        }
        return
    }

    ctrl := conversation.NewController(conversation.Config{
        SessionID: *session,
        Options: conversation.Options{
            ResetDelay:   cfg.Conversation.ResetDelay,
            RestartDelay: cfg.Conversation.RestartDelay,
            RearmDelay:   cfg.Conversation.RearmDelay,
        },
        Input:  con,
        Chat:   kioskclient.Chat{Client: client},
        Output: con,
        Log:    kioskclient.Interactions{Client: client},
        Logger: logger,
    })
    last := ctrl.Snapshot().State
    ctrl.Observe(func(s conversation.Snapshot) {
        if s.State != last {
            color.Yellow("[%s]", s.State)
            last = s.State
        }
    })
    go func() {
        for {
            select {
            case <-ctx.Done():
                return
            case cmd := <-con.commands:
                switch cmd {
                case "/start":
                    ctrl.Start()
                case "/reset":
                    ctrl.Reset()
                case "/quit":
                    stop()
                }
            }
        }
    }()
    _ = ctrl.Run(ctx)
}

func runRemote(ctx context.Context, client *kioskclient.Client, server string, con *console) error {
    sid, err := client.CreateSession(ctx, "console")
    if err != nil {
        return err
    }
    tok, err := client.KioskToken(ctx, sid)
    if err != nil {
        return err
    }
    conn, err := kioskclient.Dial(ctx, server, sid, tok)
    if err != nil {
        return err
    }
    defer conn.Close()
    color.Cyan("sessão %s conectada", sid)

    go func() {
        for {
            select {
            case <-ctx.Done():
                return
            case cmd := <-con.commands:
                switch cmd {
                case "/start":
                    _ = conn.Send(ctx, kioskws.Message{Type: kioskws.MsgStart})
                case "/reset":
                    _ = conn.Send(ctx, kioskws.Message{Type: kioskws.MsgReset})
                case "/quit":
                    _ = conn.Close()
                    return
                }
            }
        }
    }()
    return conn.Serve(ctx, con, func(m kioskws.Message) {
        if m.Payload["type"] == "snapshot" {
            return
        }
        color.Yellow("[evento] %v", m.Payload["type"])
    })
}
