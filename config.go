package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind        string
	port        int
	dbPath      string
	wordsFile   string
	yoWordsFile string
	jwtSecret   string
	accessTTL   time.Duration
	refreshTTL  time.Duration
	tickPeriod  time.Duration
	readTimeout time.Duration
	pingRate    time.Duration
	verbose     bool
	version     bool
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.wordsFile == "" || c.yoWordsFile == "" {
		return fmt.Errorf("both --words-file and --yo-words-file must be provided")
	}
	if c.jwtSecret == "" {
		return fmt.Errorf("--jwt-secret must be provided")
	}
	return nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TYPEWARS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "typewars-server",
		Short:         "Real-time multiplayer typing competition server.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return Serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: TYPEWARS_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8000, "port to listen on (env: TYPEWARS_PORT)")
	fs.StringVar(&cfg.dbPath, "db", "typewars.db", "path to the sqlite database, empty for in-memory (env: TYPEWARS_DB)")
	fs.StringVar(&cfg.wordsFile, "words-file", "words.json", "path to the regular word list (env: TYPEWARS_WORDS_FILE)")
	fs.StringVar(&cfg.yoWordsFile, "yo-words-file", "yo_words.json", "path to the yo word list (env: TYPEWARS_YO_WORDS_FILE)")
	fs.StringVar(&cfg.jwtSecret, "jwt-secret", "", "signing secret for auth tokens (env: TYPEWARS_JWT_SECRET)")
	fs.DurationVar(&cfg.accessTTL, "access-ttl", 15*time.Minute, "access token lifetime (env: TYPEWARS_ACCESS_TTL)")
	fs.DurationVar(&cfg.refreshTTL, "refresh-ttl", 7*24*time.Hour, "refresh token lifetime (env: TYPEWARS_REFRESH_TTL)")
	fs.DurationVar(&cfg.tickPeriod, "tick-period", time.Second, "game clock tick interval (env: TYPEWARS_TICK_PERIOD)")
	fs.DurationVar(&cfg.readTimeout, "read-timeout", 60*time.Second, "websocket read deadline (env: TYPEWARS_READ_TIMEOUT)")
	fs.DurationVar(&cfg.pingRate, "ping-rate", 30*time.Second, "websocket ping interval (env: TYPEWARS_PING_RATE)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: TYPEWARS_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: TYPEWARS_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("typewars-server v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
