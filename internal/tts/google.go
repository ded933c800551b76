package tts

import (
    "bytes"
    "context"
    "fmt"
    "net/http"
    "net/url"
    "strconv"
    "strings"
    "time"
    "unicode/utf8"
)

const (
    googleBaseURL = "https://translate.google.com"
    // the translate endpoint rejects longer inputs
    googleMaxChunk = 200
)

// Google uses the public translate TTS endpoint. Long text is split into
// chunks whose MP3 frames are concatenated.
type Google struct {
    lang    string
    baseURL string
    httpc   *http.Client
}

func NewGoogle(lang string, httpc *http.Client) *Google {
    if lang == "" {
        lang = "pt"
    }
    if httpc == nil {
        httpc = http.DefaultClient
    }
    return &Google{lang: lang, baseURL: googleBaseURL, httpc: httpc}
}

func (g *Google) WithBaseURL(u string) *Google {
    g.baseURL = strings.TrimRight(u, "/")
    return g
}

func (g *Google) Name() string { return "google" }

func (g *Google) Synthesize(ctx context.Context, text string) (a Audio, err error) {
    start := time.Now()
    defer func() { observe("google", start, err) }()

    chunks := splitText(text, googleMaxChunk)
    if len(chunks) == 0 {
        return Audio{}, ErrEmptyText
    }
    var buf bytes.Buffer
    for i, c := range chunks {
        req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.chunkURL(c, i, len(chunks)), nil)
        if err != nil {
            return Audio{}, err
        }
        req.Header.Set("User-Agent", "Mozilla/5.0")
        b, err := fetch(g.httpc, req, "google")
        if err != nil {
            return Audio{}, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
        }
        buf.Write(b)
    }
    return Audio{ContentType: "audio/mpeg", Data: buf.Bytes()}, nil
}

func (g *Google) chunkURL(text string, idx, total int) string {
    q := url.Values{}
    q.Set("ie", "UTF-8")
    q.Set("q", text)
    q.Set("tl", g.lang)
    q.Set("total", strconv.Itoa(total))
    q.Set("idx", strconv.Itoa(idx))
    q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(text)))
    q.Set("client", "tw-ob")
    q.Set("prev", "input")
    q.Set("ttsspeed", "1")
    return g.baseURL + "/translate_tts?" + q.Encode()
}

// splitText breaks text into chunks of at most limit runes, preferring word
// boundaries. A single word longer than limit is cut.
func splitText(text string, limit int) []string {
    words := strings.Fields(text)
    var out []string
    var cur strings.Builder
    curLen := 0
    flush := func() {
        if curLen > 0 {
            out = append(out, cur.String())
            cur.Reset()
            curLen = 0
        }
    }
    for _, w := range words {
        for utf8.RuneCountInString(w) > limit {
            flush()
            r := []rune(w)
            out = append(out, string(r[:limit]))
            w = string(r[limit:])
        }
        wl := utf8.RuneCountInString(w)
        if wl == 0 {
            continue
        }
        if curLen > 0 && curLen+1+wl > limit {
            flush()
        }
        if curLen > 0 {
            cur.WriteByte(' ')
            curLen++
        }
        cur.WriteString(w)
        curLen += wl
    }
    flush()
    return out
}
