package main

import (
    "context"
    "errors"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    "github.com/sirupsen/logrus"
    "github.com/spf13/pflag"

    "dealer/kiosk/internal/api"
    "dealer/kiosk/internal/chat"
    "dealer/kiosk/internal/config"
    "dealer/kiosk/internal/conversation"
    "dealer/kiosk/internal/door"
    "dealer/kiosk/internal/events"
    "dealer/kiosk/internal/health"
    "dealer/kiosk/internal/history"
    "dealer/kiosk/internal/interaction"
    "dealer/kiosk/internal/kioskws"
    "dealer/kiosk/internal/logging"
    "dealer/kiosk/internal/loop"
    "dealer/kiosk/internal/proxy"
    "dealer/kiosk/internal/store"
    "dealer/kiosk/internal/tts"
)

func main() {
    envFile := pflag.String("env-file", ".env", "dotenv file loaded before reading the environment")
    port := pflag.StringP("port", "p", "", "listen port (overrides PORT)")
    pflag.Parse()

    // Load .env file if present (ignored if missing)
    _ = godotenv.Load(*envFile)

    cfg := config.Load()
    if *port != "" {
        cfg.Server.Port = *port
    }
    logger := logging.New(cfg.Server.LogLevel, cfg.Server.LogFile)

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    if err := run(ctx, cfg, logger); err != nil {
        logger.WithError(err).Fatal("server failed")
    }
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
    httpc, err := proxy.NewClient(cfg.HTTP.SocksProxy, time.Duration(cfg.HTTP.TimeoutSec)*time.Second)
    if err != nil {
        return err
    }

    hist, closeHistory, err := history.Open(ctx, cfg)
    if err != nil {
        return err
    }
    defer closeHistory()

    provider, err := chat.NewProvider(cfg, httpc)
    if err != nil {
        return err
    }
    chatSvc := chat.NewService(provider, hist, logger)

    synth, err := tts.New(cfg, httpc)
    if err != nil {
        return err
    }

    recs, err := interaction.OpenStore(ctx, cfg)
    if err != nil {
        return err
    }
    defer func() {
        cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        defer cancel()
        _ = recs.Close(cctx)
    }()
    var pub interaction.Publisher
    if cfg.NATS.URL != "" {
        np, err := interaction.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject)
        if err != nil {
            return err
        }
        defer np.Close()
        pub = np
    }
    interactions := interaction.NewService(recs, pub, logger)

    st := store.New()
    bus := events.NewBus(64)
    reg := kioskws.NewRegistry()
    disp := loop.New(ctx, loop.Deps{
        Sender: reg,
        Chat:   loop.LocalChat{Service: chatSvc},
        Log:    interactions,
        Store:  st,
        Bus:    bus,
        Options: conversation.Options{
            ResetDelay:   cfg.Conversation.ResetDelay,
            RestartDelay: cfg.Conversation.RestartDelay,
            RearmDelay:   cfg.Conversation.RearmDelay,
        },
        IdleTTL: cfg.Conversation.IdleTTL,
        Logger:  logger,
    })
    defer disp.Close()
    wss := kioskws.NewServer(cfg, st, reg, bus, disp, logger)

    checker := &health.Checker{Cfg: cfg, Interactions: interactions, HTTP: httpc}
    h := api.NewHandlers(api.Deps{
        Cfg:          cfg,
        Store:        st,
        Chat:         chatSvc,
        TTS:          synth,
        Interactions: interactions,
        Door:         door.New(cfg.Door.URL, cfg.Door.Username, cfg.Door.Password, httpc),
        Driver:       disp,
        KioskWS:      wss.HandleKioskWS,
        Ready:        checker.CheckAll,
        Logger:       logger,
    })

    addr := ":" + cfg.Server.Port
    srv := &http.Server{
        Addr:              addr,
        Handler:           api.NewRouter(h),
        ReadHeaderTimeout: 5 * time.Second,
        IdleTimeout:       60 * time.Second,
    }

    go func() {
        <-ctx.Done()
        logger.Info("shutdown signal received; stopping server...")
        sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        defer cancel()
        _ = srv.Shutdown(sctx)
    }()

    logger.WithFields(logrus.Fields{
        "addr":        addr,
        "chat":        provider.Name(),
        "tts":         synth.Name(),
        "history":     cfg.History.Backend,
        "interaction": cfg.Interaction.Backend,
    }).Info("server starting")
    if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
        return err
    }
    return nil
}
