package loop

import (
    "context"

    "dealer/kiosk/internal/chat"
    "dealer/kiosk/internal/conversation"
    "dealer/kiosk/internal/interaction"
)

// LocalChat serves the controller from the in-process chat service.
type LocalChat struct {
    Service *chat.Service
}

func (c LocalChat) Reply(ctx context.Context, sessionID, text string) (string, error) {
    res, err := c.Service.Reply(ctx, sessionID, text)
    if err != nil {
        return "", err
    }
    return res.Reply, nil
}

func (c LocalChat) Reset(ctx context.Context, sessionID string) error {
    return c.Service.Reset(ctx, sessionID)
}

// LocalLog records interactions through the in-process interaction service.
type LocalLog struct {
    Service *interaction.Service
    // OnRecorded runs after a successful save.
    OnRecorded func(rec interaction.Record)
}

func (l LocalLog) Record(ctx context.Context, in conversation.Interaction) error {
    rec, err := l.Service.Record(ctx, interaction.Record{
        SessionID: in.SessionID,
        Name:      in.Name,
        Product:   in.Product,
        Timestamp: in.Timestamp,
    })
    if err != nil {
        return err
    }
    if l.OnRecorded != nil {
        l.OnRecorded(rec)
    }
    return nil
}
