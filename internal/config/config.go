package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. GTTS_TTS_LANG.
const EnvPrefix = "GTTS"

type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Server   ServerConfig   `mapstructure:"server"`
	TTS      TTSConfig      `mapstructure:"tts"`
	Endpoint EndpointConfig `mapstructure:"endpoint"`
	Text     TextConfig     `mapstructure:"text"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	Workers         int    `mapstructure:"workers"`
	MaxTextBytes    int    `mapstructure:"max_text_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

type TTSConfig struct {
	Lang        string `mapstructure:"lang"`
	Slow        bool   `mapstructure:"slow"`
	MaxChars    int    `mapstructure:"max_chars"`
	Concurrency int    `mapstructure:"concurrency"`
	LangCheck   bool   `mapstructure:"lang_check"`
}

type EndpointConfig struct {
	TLD       string  `mapstructure:"tld"`
	BaseURL   string  `mapstructure:"base_url"`
	UserAgent string  `mapstructure:"user_agent"`
	Timeout   int     `mapstructure:"timeout"`
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`
	Seed      string  `mapstructure:"seed"`
}

type TextConfig struct {
	TablesPath    string   `mapstructure:"tables_path"`
	Levels        []string `mapstructure:"levels"`
	PackSentences bool     `mapstructure:"pack_sentences"`
	Substitutions []string `mapstructure:"substitutions"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	EnvFile    string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Workers:         2,
			MaxTextBytes:    4096,
			RequestTimeout:  60,
			ShutdownTimeout: 30,
		},
		TTS: TTSConfig{
			Lang:        "en",
			Slow:        false,
			MaxChars:    100,
			Concurrency: 1,
			LangCheck:   true,
		},
		Endpoint: EndpointConfig{
			TLD:       "com",
			BaseURL:   "",
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:65.0) Gecko/20100101 Firefox/65.0",
			Timeout:   30,
			RateLimit: 0,
			Burst:     1,
			Seed:      "",
		},
		Text: TextConfig{
			TablesPath:    "",
			Levels:        []string{"sentence", "clause", "word"},
			PackSentences: false,
			Substitutions: nil,
		},
	}
}

// flagKeys maps config keys to the flag names RegisterFlags defines.
var flagKeys = []struct{ key, flag string }{
	{"log_level", "log-level"},
	{"server.listen_addr", "server-listen-addr"},
	{"server.workers", "workers"},
	{"server.max_text_bytes", "server-max-text-bytes"},
	{"server.request_timeout", "server-request-timeout"},
	{"server.shutdown_timeout", "server-shutdown-timeout"},
	{"tts.lang", "lang"},
	{"tts.slow", "slow"},
	{"tts.max_chars", "max-chars"},
	{"tts.concurrency", "concurrency"},
	{"tts.lang_check", "lang-check"},
	{"endpoint.tld", "tld"},
	{"endpoint.base_url", "endpoint-base-url"},
	{"endpoint.user_agent", "user-agent"},
	{"endpoint.timeout", "endpoint-timeout"},
	{"endpoint.rate_limit", "rate-limit"},
	{"endpoint.burst", "burst"},
	{"endpoint.seed", "seed"},
	{"text.tables_path", "text-tables"},
	{"text.levels", "text-levels"},
	{"text.pack_sentences", "text-pack-sentences"},
	{"text.substitutions", "sub"},
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("workers", defaults.Server.Workers, "Max concurrent syntheses served over HTTP")
	fs.Int("server-max-text-bytes", defaults.Server.MaxTextBytes, "Max text size accepted by POST /tts")
	fs.Int("server-request-timeout", defaults.Server.RequestTimeout, "Per-request synthesis deadline in seconds")
	fs.Int("server-shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown drain period in seconds")
	fs.String("lang", defaults.TTS.Lang, "Language code to speak in (see 'gtts langs')")
	fs.Bool("slow", defaults.TTS.Slow, "Read text more slowly")
	fs.Int("max-chars", defaults.TTS.MaxChars, "Max characters per translate_tts request")
	fs.Int("concurrency", defaults.TTS.Concurrency, "Segments fetched at once")
	fs.Bool("lang-check", defaults.TTS.LangCheck, "Reject languages missing from the built-in table")
	fs.String("tld", defaults.Endpoint.TLD, "Top-level domain of translate.google.<tld>")
	fs.String("endpoint-base-url", defaults.Endpoint.BaseURL, "Override the endpoint URL (takes precedence over --tld)")
	fs.String("user-agent", defaults.Endpoint.UserAgent, "User-Agent header sent to the endpoint")
	fs.Int("endpoint-timeout", defaults.Endpoint.Timeout, "HTTP timeout per endpoint call in seconds")
	fs.Float64("rate-limit", defaults.Endpoint.RateLimit, "Max endpoint calls per second (0 disables)")
	fs.Int("burst", defaults.Endpoint.Burst, "Burst size for --rate-limit")
	fs.String("seed", defaults.Endpoint.Seed, "Fixed token seed A.B instead of scraping one")
	fs.String("text-tables", defaults.Text.TablesPath, "Segmentation tables file (yaml|toml|json)")
	fs.StringSlice("text-levels", defaults.Text.Levels, "Boundary levels tried in order (sentence,clause,word)")
	fs.Bool("text-pack-sentences", defaults.Text.PackSentences, "Pack several short sentences into one request")
	fs.StringSlice("sub", defaults.Text.Substitutions, "Extra find=replace substitution, repeatable")
}

func Load(opts LoadOptions) (Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	}

	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("gtts")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("tts.lang", c.TTS.Lang)
	v.SetDefault("tts.slow", c.TTS.Slow)
	v.SetDefault("tts.max_chars", c.TTS.MaxChars)
	v.SetDefault("tts.concurrency", c.TTS.Concurrency)
	v.SetDefault("tts.lang_check", c.TTS.LangCheck)
	v.SetDefault("endpoint.tld", c.Endpoint.TLD)
	v.SetDefault("endpoint.base_url", c.Endpoint.BaseURL)
	v.SetDefault("endpoint.user_agent", c.Endpoint.UserAgent)
	v.SetDefault("endpoint.timeout", c.Endpoint.Timeout)
	v.SetDefault("endpoint.rate_limit", c.Endpoint.RateLimit)
	v.SetDefault("endpoint.burst", c.Endpoint.Burst)
	v.SetDefault("endpoint.seed", c.Endpoint.Seed)
	v.SetDefault("text.tables_path", c.Text.TablesPath)
	v.SetDefault("text.levels", c.Text.Levels)
	v.SetDefault("text.pack_sentences", c.Text.PackSentences)
	v.SetDefault("text.substitutions", c.Text.Substitutions)
}

// bindFlags ties each config key to its flag. A flag only wins over the
// config file and environment when it was set on the command line.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		f := fs.Lookup(fk.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(fk.key, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", fk.flag, err)
		}
	}
	return nil
}
