package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "PICTUREBUZZ"

type Config struct {
	Bind        string
	Port        int
	DatabaseURL string
	PublicURL   string

	PenaltyDuration time.Duration
	RoomMaxAge      time.Duration
	CleanupInterval time.Duration

	MessageRate    float64 // inbound messages per second per connection
	MessageBurst   int
	SendBuffer     int
	AllowedOrigins []string

	LogLevel  string
	LogPretty bool
}

// legacy unprefixed variables still honoured
var legacyEnv = map[string]string{
	"port":         "PORT",
	"database-url": "DATABASE_URL",
}

func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Register defines every setting as a flag on fs backed by cfg, then
// fills unset flags from the environment through v.
func Register(flags *pflag.FlagSet, cfg *Config, v *viper.Viper) {
	flags.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	flags.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: PICTUREBUZZ_BIND)")
	flags.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: PICTUREBUZZ_PORT, PORT)")
	flags.StringVar(&cfg.DatabaseURL, "database-url", "", "postgres DSN for the results archive; empty disables it (env: PICTUREBUZZ_DATABASE_URL, DATABASE_URL)")
	flags.StringVar(&cfg.PublicURL, "public-url", "", "externally reachable base URL used in join QR codes (env: PICTUREBUZZ_PUBLIC_URL)")
	flags.DurationVar(&cfg.PenaltyDuration, "penalty-duration", 3*time.Second, "buzz cooldown carried into the next image after a wrong answer (env: PICTUREBUZZ_PENALTY_DURATION)")
	flags.DurationVar(&cfg.RoomMaxAge, "room-max-age", time.Hour, "rooms older than this are swept (env: PICTUREBUZZ_ROOM_MAX_AGE)")
	flags.DurationVar(&cfg.CleanupInterval, "cleanup-interval", 30*time.Minute, "how often stale rooms are swept (env: PICTUREBUZZ_CLEANUP_INTERVAL)")
	flags.Float64Var(&cfg.MessageRate, "message-rate", 10, "inbound messages per second allowed per connection, 0 for unlimited (env: PICTUREBUZZ_MESSAGE_RATE)")
	flags.IntVar(&cfg.MessageBurst, "message-burst", 20, "burst size for the per-connection message limit (env: PICTUREBUZZ_MESSAGE_BURST)")
	flags.IntVar(&cfg.SendBuffer, "send-buffer", 64, "outbound messages buffered per connection (env: PICTUREBUZZ_SEND_BUFFER)")
	flags.StringSliceVar(&cfg.AllowedOrigins, "allowed-origins", []string{"*"}, "origins allowed for websocket and CORS requests (env: PICTUREBUZZ_ALLOWED_ORIGINS)")
	flags.StringVar(&cfg.LogLevel, "log-level", "info", "trace, debug, info, warn or error (env: PICTUREBUZZ_LOG_LEVEL)")
	flags.BoolVar(&cfg.LogPretty, "log-pretty", false, "human readable console logs instead of JSON (env: PICTUREBUZZ_LOG_PRETTY)")

	flags.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		envs := []string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))}
		if legacy, ok := legacyEnv[f.Name]; ok {
			envs = append(envs, legacy)
		}
		_ = v.BindEnv(append([]string{f.Name}, envs...)...)
		if !f.Changed && v.IsSet(f.Name) {
			_ = flags.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

// Load resolves the configuration from args and the environment.
func Load(args []string) (Config, error) {
	var cfg Config
	flags := pflag.NewFlagSet("picturebuzz", pflag.ContinueOnError)
	Register(flags, &cfg, NewViper())
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv reads variables from the given files into the environment
// without overriding ones already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.PenaltyDuration <= 0 {
		return errors.New("penalty-duration must be positive")
	}
	if c.RoomMaxAge <= 0 || c.CleanupInterval <= 0 {
		return errors.New("room-max-age and cleanup-interval must be positive")
	}
	if c.MessageRate < 0 {
		return errors.New("message-rate must not be negative")
	}
	if c.MessageBurst < 1 {
		return errors.New("message-burst must be at least 1")
	}
	if c.SendBuffer < 1 {
		return errors.New("send-buffer must be at least 1")
	}
	return nil
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// JoinURL is the link a student opens to join room code.
func (c *Config) JoinURL(code string) string {
	base := c.PublicURL
	if base == "" {
		host := c.Bind
		if host == "0.0.0.0" || host == "" {
			host = "localhost"
		}
		base = "http://" + net.JoinHostPort(host, strconv.Itoa(c.Port))
	}
	return strings.TrimRight(base, "/") + "/join?room=" + code
}
