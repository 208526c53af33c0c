/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/clueparty/room"
	"github.com/Seednode/clueparty/words"
)

const (
	minBoardSize = 3
	maxBoardSize = 60
)

type Config struct {
	acceptTimeout  time.Duration
	bind           string
	boardSize      int
	offerTimeout   time.Duration
	port           int
	prefix         string
	profile        bool
	rateBurst      int
	rateLimit      float64
	revealDelay    time.Duration
	roundSeconds   int
	sessionTimeout time.Duration
	sweepInterval  time.Duration
	targetScore    int
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
	words          string
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.boardSize < minBoardSize || c.boardSize > maxBoardSize {
		return fmt.Errorf("invalid board size (must be between %d-%d inclusive): %d", minBoardSize, maxBoardSize, c.boardSize)
	}
	if err := c.settings().Validate(); err != nil {
		return fmt.Errorf("invalid default settings: %w", err)
	}

	for name, d := range map[string]time.Duration{
		"accept-timeout":  c.acceptTimeout,
		"offer-timeout":   c.offerTimeout,
		"reveal-delay":    c.revealDelay,
		"session-timeout": c.sessionTimeout,
		"sweep-interval":  c.sweepInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("invalid --%s (must be positive): %s", name, d)
		}
	}

	if c.rateLimit <= 0 {
		return fmt.Errorf("invalid rate limit (must be positive): %v", c.rateLimit)
	}
	if c.rateBurst < 1 {
		return fmt.Errorf("invalid rate burst (must be at least 1): %d", c.rateBurst)
	}

	return nil
}

// settings are the defaults for rooms created without their own.
func (c *Config) settings() room.Settings {
	return room.Settings{RoundSeconds: c.roundSeconds, TargetScore: c.targetScore}
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("CLUEPARTY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "clueparty",
		Short:         "A team word-guessing party game served over websockets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.DurationVar(&cfg.acceptTimeout, "accept-timeout", room.DefaultAcceptTimeout, "time an accepted cluegiver has to start the round (env: CLUEPARTY_ACCEPT_TIMEOUT)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: CLUEPARTY_BIND)")
	fs.IntVar(&cfg.boardSize, "board-size", words.DefaultBoardSize, "tiles dealt per round (env: CLUEPARTY_BOARD_SIZE)")
	fs.DurationVar(&cfg.offerTimeout, "offer-timeout", room.DefaultOfferTimeout, "time an offered cluegiver has to respond (env: CLUEPARTY_OFFER_TIMEOUT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: CLUEPARTY_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: CLUEPARTY_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: CLUEPARTY_PROFILE)")
	fs.IntVar(&cfg.rateBurst, "rate-burst", 20, "messages a connection may send in a burst (env: CLUEPARTY_RATE_BURST)")
	fs.Float64Var(&cfg.rateLimit, "rate-limit", 10, "sustained messages per second per connection (env: CLUEPARTY_RATE_LIMIT)")
	fs.DurationVar(&cfg.revealDelay, "reveal-delay", room.DefaultRevealDelay, "time the full board is shown after a round (env: CLUEPARTY_REVEAL_DELAY)")
	fs.IntVar(&cfg.roundSeconds, "round-seconds", room.DefaultRoundSeconds, "default round length in seconds (env: CLUEPARTY_ROUND_SECONDS)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 10*time.Minute, "time before empty, idle rooms are removed (env: CLUEPARTY_SESSION_TIMEOUT)")
	fs.DurationVar(&cfg.sweepInterval, "sweep-interval", 30*time.Second, "how often to look for idle rooms (env: CLUEPARTY_SWEEP_INTERVAL)")
	fs.IntVar(&cfg.targetScore, "target-score", room.DefaultTargetScore, "default score needed to win (env: CLUEPARTY_TARGET_SCORE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: CLUEPARTY_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: CLUEPARTY_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: CLUEPARTY_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: CLUEPARTY_VERSION)")
	fs.StringVar(&cfg.words, "words", "", "path to a word list, one per line; uses the built-in list if empty (env: CLUEPARTY_WORDS)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("clueparty v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
