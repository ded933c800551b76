package auth

import (
    "crypto/hmac"
    "crypto/sha256"
    "crypto/subtle"
    "encoding/base64"
    "encoding/hex"
    "errors"
    "strconv"
    "strings"
    "time"
)

var (
    ErrTokenFormat = errors.New("invalid token format")
    ErrTokenSig    = errors.New("invalid token signature")
    ErrTokenExp    = errors.New("token expired")
    ErrTokenSID    = errors.New("session id mismatch")
    ErrNoSecret    = errors.New("kiosk token secret not configured")
)

func sign(secret, msg string) []byte {
    mac := hmac.New(sha256.New, []byte(secret))
    mac.Write([]byte(msg))
    return mac.Sum(nil)
}

// GenerateKioskToken builds a token for a kiosk session.
// Format: base64url(session_id + "." + exp_unix + "." + hex(hmac_sha256(secret, session_id+"."+exp)))
func GenerateKioskToken(secret, sessionID string, expUnix int64) (string, error) {
    if secret == "" {
        return "", ErrNoSecret
    }
    if strings.Contains(sessionID, ".") {
        return "", ErrTokenFormat
    }
    msg := sessionID + "." + strconv.FormatInt(expUnix, 10)
    raw := msg + "." + hex.EncodeToString(sign(secret, msg))
    return base64.RawURLEncoding.EncodeToString([]byte(raw)), nil
}

// ValidateKioskToken parses and validates the token and returns the embedded
// session id and expiry. An empty expectSessionID accepts any session.
func ValidateKioskToken(secret, token, expectSessionID string, now time.Time, skewSeconds int) (string, int64, error) {
    if secret == "" {
        return "", 0, ErrNoSecret
    }
    b, err := base64.RawURLEncoding.DecodeString(token)
    if err != nil {
        return "", 0, ErrTokenFormat
    }
    parts := strings.Split(string(b), ".")
    if len(parts) != 3 {
        return "", 0, ErrTokenFormat
    }
    sid, expStr, sigHex := parts[0], parts[1], parts[2]
    exp, err := strconv.ParseInt(expStr, 10, 64)
    if err != nil {
        return "", 0, ErrTokenFormat
    }
    if expectSessionID != "" && sid != expectSessionID {
        return "", 0, ErrTokenSID
    }
    got, err := hex.DecodeString(sigHex)
    if err != nil {
        return "", 0, ErrTokenFormat
    }
    if !hmac.Equal(sign(secret, sid+"."+expStr), got) {
        return "", 0, ErrTokenSig
    }
    if now.Unix() > exp+int64(skewSeconds) {
        return "", 0, ErrTokenExp
    }
    return sid, exp, nil
}

// BearerToken extracts the token from an "Authorization: Bearer" value.
func BearerToken(header string) (string, bool) {
    const prefix = "Bearer "
    if !strings.HasPrefix(header, prefix) {
        return "", false
    }
    tok := strings.TrimSpace(strings.TrimPrefix(header, prefix))
    return tok, tok != ""
}

// AdminAuthorized reports whether header carries the admin bearer secret.
// Kiosk session tokens never pass, and an empty secret disables admin access.
func AdminAuthorized(secret, header string) bool {
    if secret == "" {
        return false
    }
    tok, ok := BearerToken(header)
    if !ok {
        return false
    }
    return subtle.ConstantTimeCompare([]byte(tok), []byte(secret)) == 1
}
