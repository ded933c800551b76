package api

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/gorilla/mux"
    "github.com/sirupsen/logrus"

    "dealer/kiosk/internal/auth"
    "dealer/kiosk/internal/chat"
    "dealer/kiosk/internal/config"
    "dealer/kiosk/internal/conversation"
    "dealer/kiosk/internal/health"
    "dealer/kiosk/internal/interaction"
    "dealer/kiosk/internal/store"
    "dealer/kiosk/internal/tts"
    "dealer/kiosk/internal/types"
)

// DefaultSessionID is used by /chat when the caller sends none.
const DefaultSessionID = "kiosk"

type ChatService interface {
    Reply(ctx context.Context, sessionID, text string) (chat.Result, error)
    Reset(ctx context.Context, sessionID string) error
}

type Interactions interface {
    Record(ctx context.Context, rec interaction.Record) (interaction.Record, error)
    List(ctx context.Context, limit int) ([]interaction.Record, error)
}

type DoorOpener interface {
    Open(ctx context.Context) (string, error)
}

// Driver runs server-side conversations for kiosk sessions.
type Driver interface {
    Start(sessionID string) error
    Reset(sessionID string) error
    Snapshot(sessionID string) (conversation.Snapshot, bool)
}

type Deps struct {
    Cfg          config.Config
    Store        *store.Store
    Chat         ChatService
    TTS          tts.Synthesizer
    Interactions Interactions
    Door         DoorOpener
    Driver       Driver
    KioskWS      http.HandlerFunc
    Ready        func(ctx context.Context) health.HealthStatus
    Logger       *logrus.Logger
}

type Handlers struct {
    Deps
    now func() time.Time
}

func NewHandlers(d Deps) *Handlers {
    if d.Logger == nil {
        d.Logger = logrus.StandardLogger()
    }
    return &Handlers{Deps: d, now: time.Now}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}

type chatRequest struct {
    Message   string `json:"message"`
    Reset     bool   `json:"reset"`
    SessionID string `json:"session_id"`
}

func (h *Handlers) HandleChat(w http.ResponseWriter, r *http.Request) {
    var req chatRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid request body"})
        return
    }
    sid := req.SessionID
    if sid == "" {
        sid = DefaultSessionID
    }
    log := h.Logger.WithField("session_id", sid)

    if req.Reset {
        if err := h.Chat.Reset(r.Context(), sid); err != nil {
            log.WithError(err).Error("chat reset failed")
            writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "Failed to reset history"})
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"message": "Histórico resetado com sucesso!"})
        return
    }
    if strings.TrimSpace(req.Message) == "" {
        writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Message is required"})
        return
    }
    res, err := h.Chat.Reply(r.Context(), sid, req.Message)
    if err != nil {
        if errors.Is(err, chat.ErrEmptyMessage) {
            writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Message is required"})
            return
        }
        log.WithError(err).Error("chat reply failed")
        writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "Failed to get AI response"})
        return
    }
    writeJSON(w, http.StatusOK, map[string]any{"reply": res.Reply, "asked_for": res.AskedFor})
}

func (h *Handlers) HandleTTS(w http.ResponseWriter, r *http.Request) {
    var req struct {
        Text string `json:"text"`
    }
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
        writeJSON(w, http.StatusBadRequest, map[string]any{"error": "text is required"})
        return
    }
    audio, err := h.TTS.Synthesize(r.Context(), req.Text)
    if err != nil {
        h.Logger.WithError(err).WithField("provider", h.TTS.Name()).Error("speech synthesis failed")
        writeJSON(w, http.StatusBadGateway, map[string]any{"error": "speech synthesis failed"})
        return
    }
    w.Header().Set("Content-Type", audio.ContentType)
    w.Header().Set("Content-Length", strconv.Itoa(len(audio.Data)))
    w.WriteHeader(http.StatusOK)
    _, _ = w.Write(audio.Data)
}

// interactionRequest accepts both the English and the Portuguese field names.
type interactionRequest struct {
    SessionID string `json:"session_id"`
    Name      string `json:"name"`
    Product   string `json:"product"`
    Timestamp string `json:"timestamp"`
    Nome      string `json:"nome"`
    Produto   string `json:"produto"`
    DataHora  string `json:"dataHora"`
}

func (q interactionRequest) record() (interaction.Record, error) {
    rec := interaction.Record{SessionID: q.SessionID, Name: q.Name, Product: q.Product}
    if rec.Name == "" {
        rec.Name = q.Nome
    }
    if rec.Product == "" {
        rec.Product = q.Produto
    }
    ts := q.Timestamp
    if ts == "" {
        ts = q.DataHora
    }
    if ts != "" {
        t, err := time.Parse(time.RFC3339, ts)
        if err != nil {
            return rec, err
        }
        rec.Timestamp = t
    }
    return rec, nil
}

func (h *Handlers) HandleInteraction(w http.ResponseWriter, r *http.Request) {
    var req interactionRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid request body"})
        return
    }
    rec, err := req.record()
    if err != nil {
        writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid timestamp"})
        return
    }
    saved, err := h.Interactions.Record(r.Context(), rec)
    if err != nil {
        h.Logger.WithError(err).Error("failed to save interaction")
        writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
        return
    }
    writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": saved.ID})
}

func (h *Handlers) HandleListInteractions(w http.ResponseWriter, r *http.Request) {
    if !h.authorizedAdmin(r) {
        writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
        return
    }
    limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
    recs, err := h.Interactions.List(r.Context(), limit)
    if err != nil {
        h.Logger.WithError(err).Error("failed to list interactions")
        writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
        return
    }
    writeJSON(w, http.StatusOK, map[string]any{"interactions": recs, "count": len(recs)})
}

func (h *Handlers) authorizedAdmin(r *http.Request) bool {
    return auth.AdminAuthorized(h.Cfg.Kiosk.AdminSecret, r.Header.Get("Authorization"))
}

func (h *Handlers) HandleDoor(w http.ResponseWriter, r *http.Request) {
    data, err := h.Door.Open(r.Context())
    if err != nil {
        h.Logger.WithError(err).Error("door open failed")
        writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
        return
    }
    writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
    var req struct {
        Label string `json:"label"`
    }
    _ = json.NewDecoder(r.Body).Decode(&req)

    sess := &types.Session{
        ID:        uuid.New().String(),
        Label:     req.Label,
        CreatedAt: h.now().UTC(),
        Status:    types.StatusCreated,
    }
    if err := h.Store.CreateSession(sess); err != nil {
        writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
        return
    }
    h.Store.AppendEvent(sess.ID, "session_created", map[string]any{"label": req.Label})
    writeJSON(w, http.StatusOK, map[string]any{"session_id": sess.ID, "created_at": sess.CreatedAt})
}

func (h *Handlers) HandleListSessions(w http.ResponseWriter, r *http.Request) {
    ids := h.Store.ListSessionIDs()
    out := make([]*types.Session, 0, len(ids))
    for _, id := range ids {
        if s := h.Store.GetSession(id); s != nil {
            out = append(out, s)
        }
    }
    writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// session resolves {id} or writes a 404.
func (h *Handlers) session(w http.ResponseWriter, r *http.Request) *types.Session {
    sess := h.Store.GetSession(mux.Vars(r)["id"])
    if sess == nil {
        writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown session"})
    }
    return sess
}

func (h *Handlers) HandleListEvents(w http.ResponseWriter, r *http.Request) {
    sess := h.session(w, r)
    if sess == nil {
        return
    }
    writeJSON(w, http.StatusOK, map[string]any{
        "session_id": sess.ID,
        "events":     h.Store.ListEvents(sess.ID),
    })
}

func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
    sess := h.session(w, r)
    if sess == nil {
        return
    }
    resp := map[string]any{"session_id": sess.ID, "session": sess, "running": false}
    if h.Driver != nil {
        if snap, ok := h.Driver.Snapshot(sess.ID); ok {
            resp["running"] = true
            resp["snapshot"] = snap
        }
    }
    writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) HandleStart(w http.ResponseWriter, r *http.Request) {
    sess := h.session(w, r)
    if sess == nil {
        return
    }
    h.Store.AppendEvent(sess.ID, "start_requested", nil)
    if h.Driver == nil {
        writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": errNoDriver.Error()})
        return
    }
    if err := h.drive(sess.ID, h.Driver.Start); err != nil {
        writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
        return
    }
    h.Store.SetStatus(sess.ID, types.StatusActive)
    writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handlers) HandleReset(w http.ResponseWriter, r *http.Request) {
    sess := h.session(w, r)
    if sess == nil {
        return
    }
    h.Store.AppendEvent(sess.ID, "reset_requested", nil)
    if h.Driver == nil {
        writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": errNoDriver.Error()})
        return
    }
    if err := h.drive(sess.ID, h.Driver.Reset); err != nil {
        writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
        return
    }
    writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

var errNoDriver = errors.New("conversation driver not configured")

func (h *Handlers) drive(sessionID string, fn func(string) error) error {
    if err := fn(sessionID); err != nil {
        h.Logger.WithError(err).WithField("session_id", sessionID).Error("conversation command failed")
        return err
    }
    return nil
}

func (h *Handlers) HandleMintKioskToken(w http.ResponseWriter, r *http.Request) {
    sess := h.session(w, r)
    if sess == nil {
        return
    }
    if h.Cfg.Kiosk.TokenSecret == "" {
        writeJSON(w, http.StatusBadRequest, map[string]any{"error": "kiosk auth not configured"})
        return
    }
    ttl := time.Duration(h.Cfg.Kiosk.TokenTTLMin) * time.Minute
    if ttl <= 0 {
        ttl = 12 * time.Hour
    }
    exp := h.now().Add(ttl).Unix()
    tok, err := auth.GenerateKioskToken(h.Cfg.Kiosk.TokenSecret, sess.ID, exp)
    if err != nil {
        writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
        return
    }
    h.Store.AppendEvent(sess.ID, "kiosk_token_minted", map[string]any{"exp": exp})
    writeJSON(w, http.StatusOK, map[string]any{"token": tok, "expires_at": exp})
}

func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
    if h.Ready == nil {
        writeJSON(w, http.StatusOK, map[string]any{"ok": true})
        return
    }
    st := h.Ready(r.Context())
    status := http.StatusOK
    if !st.OK {
        status = http.StatusServiceUnavailable
    }
    writeJSON(w, status, st)
}
