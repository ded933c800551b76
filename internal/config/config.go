package config

import (
    "fmt"
    "strings"
    "time"

    "github.com/spf13/viper"
)

type Config struct {
    Server struct {
        Port     string
        LogLevel string
        LogFile  string
    }
    Chat struct {
        Provider string
        Model    string
    }
    Gemini struct {
        APIKey string
    }
    OpenAI struct {
        APIKey string
    }
    TTS struct {
        Provider string
        Lang     string
        CacheTTL time.Duration
    }
    Eleven struct {
        APIKey  string
        VoiceID string
    }
    History struct {
        Backend string
    }
    Redis struct {
        URL string
    }
    Interaction struct {
        Backend string
    }
    Mongo struct {
        URI      string
        Database string
    }
    Postgres struct {
        DSN string
    }
    NATS struct {
        URL     string
        Subject string
    }
    Door struct {
        URL      string
        Username string
        Password string
    }
    HTTP struct {
        SocksProxy string
        TimeoutSec int
    }
    Kiosk struct {
        TokenSecret   string
        TokenSkewSecs int
        TokenTTLMin   int
        AdminSecret   string
    }
    Conversation struct {
        ResetDelay   time.Duration
        RestartDelay time.Duration
        RearmDelay   time.Duration
        IdleTTL      time.Duration
    }
    Control struct {
        Addr      string
        ProbeAddr string
    }
}

func Load() Config {
    v := viper.New()
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
    v.AutomaticEnv()

    // Defaults
    v.SetDefault("server.port", 8080)
    v.SetDefault("server.log_level", "info")

    v.SetDefault("chat.provider", "gemini")
    v.SetDefault("chat.model", "gemini-2.5-flash")

    v.SetDefault("tts.provider", "google")
    v.SetDefault("tts.lang", "pt")
    v.SetDefault("tts.cache_ttl_min", 30)

    v.SetDefault("history.backend", "memory")
    v.SetDefault("redis.url", "redis://localhost:6379/0")

    v.SetDefault("interaction.backend", "memory")
    v.SetDefault("mongodb.database", "kiosk")
    v.SetDefault("nats.subject", "kiosk.interactions")

    v.SetDefault("http.timeout_secs", 30)

    v.SetDefault("kiosk.token_skew_secs", 60)
    v.SetDefault("kiosk.token_ttl_min", 720)

    v.SetDefault("conversation.reset_delay_ms", 2000)
    v.SetDefault("conversation.restart_delay_ms", 200)
    v.SetDefault("conversation.rearm_delay_ms", 100)
    v.SetDefault("conversation.idle_ttl_min", 30)

    v.SetDefault("control.addr", ":9090")
    v.SetDefault("control.probe_addr", ":8082")

    // Map envs
    v.BindEnv("server.port", "PORT")
    v.BindEnv("server.log_level", "LOG_LEVEL")
    v.BindEnv("server.log_file", "LOG_FILE")

    v.BindEnv("chat.provider", "CHAT_PROVIDER")
    v.BindEnv("chat.model", "CHAT_MODEL")
    v.BindEnv("gemini.api_key", "GEMINI_API_KEY")
    v.BindEnv("openai.api_key", "OPENAI_API_KEY")

    v.BindEnv("tts.provider", "TTS_PROVIDER")
    v.BindEnv("tts.lang", "TTS_LANG")
    v.BindEnv("tts.cache_ttl_min", "TTS_CACHE_TTL_MIN")
    v.BindEnv("elevenlabs.api_key", "ELEVENLABS_API_KEY")
    v.BindEnv("elevenlabs.voice_id", "ELEVENLABS_VOICE_ID")

    v.BindEnv("history.backend", "HISTORY_BACKEND")
    v.BindEnv("redis.url", "REDIS_URL")

    v.BindEnv("interaction.backend", "INTERACTION_BACKEND")
    v.BindEnv("mongodb.uri", "MONGODB_URI")
    v.BindEnv("mongodb.database", "MONGODB_DATABASE")
    v.BindEnv("postgres.dsn", "POSTGRES_DSN")
    v.BindEnv("nats.url", "NATS_URL")
    v.BindEnv("nats.subject", "NATS_SUBJECT")

    // door controller env names kept from the kiosk deployment
    v.BindEnv("door.url", "OPEN_URL")
    v.BindEnv("door.username", "USER_NAME")
    v.BindEnv("door.password", "PASSWORD")

    v.BindEnv("http.socks_proxy", "SOCKS_PROXY")
    v.BindEnv("http.timeout_secs", "HTTP_TIMEOUT_SECS")

    v.BindEnv("kiosk.token_secret", "KIOSK_TOKEN_SECRET")
    v.BindEnv("kiosk.token_skew_secs", "KIOSK_TOKEN_SKEW_SECS")
    v.BindEnv("kiosk.token_ttl_min", "KIOSK_TOKEN_TTL_MIN")
    v.BindEnv("kiosk.admin_secret", "KIOSK_ADMIN_SECRET")

    v.BindEnv("conversation.reset_delay_ms", "CONVERSATION_RESET_DELAY_MS")
    v.BindEnv("conversation.restart_delay_ms", "CONVERSATION_RESTART_DELAY_MS")
    v.BindEnv("conversation.rearm_delay_ms", "CONVERSATION_REARM_DELAY_MS")
    v.BindEnv("conversation.idle_ttl_min", "CONVERSATION_IDLE_TTL_MIN")

    v.BindEnv("control.addr", "CONTROL_ADDR")
    v.BindEnv("control.probe_addr", "CONTROL_PROBE_ADDR")

    var c Config
    c.Server.Port = toString(v.Get("server.port"))
    c.Server.LogLevel = v.GetString("server.log_level")
    c.Server.LogFile = v.GetString("server.log_file")

    c.Chat.Provider = strings.ToLower(v.GetString("chat.provider"))
    c.Chat.Model = v.GetString("chat.model")
    c.Gemini.APIKey = v.GetString("gemini.api_key")
    c.OpenAI.APIKey = v.GetString("openai.api_key")

    c.TTS.Provider = strings.ToLower(v.GetString("tts.provider"))
    c.TTS.Lang = v.GetString("tts.lang")
    c.TTS.CacheTTL = time.Duration(v.GetInt("tts.cache_ttl_min")) * time.Minute
    c.Eleven.APIKey = v.GetString("elevenlabs.api_key")
    c.Eleven.VoiceID = v.GetString("elevenlabs.voice_id")

    c.History.Backend = strings.ToLower(v.GetString("history.backend"))
    c.Redis.URL = v.GetString("redis.url")

    c.Interaction.Backend = strings.ToLower(v.GetString("interaction.backend"))
    c.Mongo.URI = v.GetString("mongodb.uri")
    c.Mongo.Database = v.GetString("mongodb.database")
    c.Postgres.DSN = v.GetString("postgres.dsn")
    c.NATS.URL = v.GetString("nats.url")
    c.NATS.Subject = v.GetString("nats.subject")

    c.Door.URL = v.GetString("door.url")
    c.Door.Username = v.GetString("door.username")
    c.Door.Password = v.GetString("door.password")

    c.HTTP.SocksProxy = v.GetString("http.socks_proxy")
    c.HTTP.TimeoutSec = v.GetInt("http.timeout_secs")

    c.Kiosk.TokenSecret = v.GetString("kiosk.token_secret")
    c.Kiosk.TokenSkewSecs = v.GetInt("kiosk.token_skew_secs")
    c.Kiosk.TokenTTLMin = v.GetInt("kiosk.token_ttl_min")
    c.Kiosk.AdminSecret = v.GetString("kiosk.admin_secret")

    c.Conversation.ResetDelay = millis(v.GetInt("conversation.reset_delay_ms"))
    c.Conversation.RestartDelay = millis(v.GetInt("conversation.restart_delay_ms"))
    c.Conversation.RearmDelay = millis(v.GetInt("conversation.rearm_delay_ms"))
    c.Conversation.IdleTTL = time.Duration(v.GetInt("conversation.idle_ttl_min")) * time.Minute

    c.Control.Addr = v.GetString("control.addr")
    c.Control.ProbeAddr = v.GetString("control.probe_addr")

    return c
}

func toString(v any) string { return fmt.Sprint(v) }

func millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }
