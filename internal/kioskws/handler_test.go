package kioskws

import (
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "dealer/kiosk/internal/auth"
    "dealer/kiosk/internal/config"
    "dealer/kiosk/internal/logging"
    "dealer/kiosk/internal/store"
    "dealer/kiosk/internal/types"
)

func newServer(t *testing.T, secret string) *Server {
    t.Helper()
    var cfg config.Config
    cfg.Kiosk.TokenSecret = secret
    cfg.Kiosk.TokenSkewSecs = 60
    st := store.New()
    require.NoError(t, st.CreateSession(&types.Session{ID: "k"}))
    return NewServer(cfg, st, NewRegistry(), nil, nil, logging.Discard())
}

func TestHandshakeRejections(t *testing.T) {
    s := newServer(t, "s")
    tok, err := auth.GenerateKioskToken("s", "other", time.Now().Add(time.Hour).Unix())
    require.NoError(t, err)

    cases := []struct {
        name   string
        target string
        header string
        want   int
    }{
        {"missing session", "/ws/kiosk", "", http.StatusBadRequest},
        {"unknown session", "/ws/kiosk?session_id=nope", "", http.StatusNotFound},
        {"missing token", "/ws/kiosk?session_id=k", "", http.StatusUnauthorized},
        {"token for other session", "/ws/kiosk?session_id=k", "Bearer " + tok, http.StatusUnauthorized},
        {"query token for other session", "/ws/kiosk?session_id=k&token=" + tok, "", http.StatusUnauthorized},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            req := httptest.NewRequest(http.MethodGet, tc.target, nil)
            if tc.header != "" {
                req.Header.Set("Authorization", tc.header)
            }
            rec := httptest.NewRecorder()
            s.HandleKioskWS(rec, req)
            assert.Equal(t, tc.want, rec.Code)
        })
    }
}

func TestNoSecretRejects(t *testing.T) {
    s := newServer(t, "")
    req := httptest.NewRequest(http.MethodGet, "/ws/kiosk?session_id=k&token=abc", nil)
    rec := httptest.NewRecorder()
    s.HandleKioskWS(rec, req)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
    assert.Contains(t, rec.Body.String(), "not configured")
}

func TestRegistryWithoutConnection(t *testing.T) {
    r := NewRegistry()
    assert.False(t, r.Connected("k"))
    assert.ErrorIs(t, r.SendJSON(t.Context(), "k", map[string]string{"type": "speak"}), ErrNotConnected)
    r.Remove("k", nil)
}
