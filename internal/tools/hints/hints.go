// Package hints implements the wallet-hint maintenance tool: it inspects
// and repairs the local hint databases the widget leaves behind.
package hints

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopembed/referral-widget/internal/hint"
	hintbbolt "github.com/shopembed/referral-widget/internal/hint/bbolt"
	hintsqlite "github.com/shopembed/referral-widget/internal/hint/sqlite"
	platformcmd "github.com/shopembed/referral-widget/internal/platform/cmd"
)

// Config holds hints command configuration.
type Config struct {
	DBPath       string        `env:"REFERRAL_WIDGET_DB_PATH" envDefault:"widget-hints.sqlite"`
	FallbackPath string        `env:"REFERRAL_WIDGET_FALLBACK_PATH" envDefault:"widget-hints.bbolt"`
	Timeout      time.Duration `env:"REFERRAL_WIDGET_HINTS_TIMEOUT" envDefault:"10s"`

	// Command is the subcommand: list, remove, or clear.
	Command string
	// AuthID is the target authenticator id for remove.
	AuthID string
}

// ParseConfig loads environment defaults and parses flags into a Config. The
// first positional argument selects the subcommand.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{}
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "Path of the primary hint database")
	fs.StringVar(&cfg.FallbackPath, "fallback-path", cfg.FallbackPath, "Path of the fallback hint database")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Timeout for the whole operation")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		cfg.Command = "list"
		return cfg, nil
	}
	cfg.Command = strings.TrimSpace(rest[0])
	if len(rest) > 1 {
		cfg.AuthID = strings.TrimSpace(rest[1])
	}
	return cfg, nil
}

// Run executes the configured subcommand against both hint backends.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	primary, err := hintsqlite.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer primary.Close()

	fallback, err := hintbbolt.Open(cfg.FallbackPath)
	if err != nil {
		return err
	}
	defer fallback.Close()

	cache := hint.NewCache(primary, fallback)

	switch cfg.Command {
	case "list":
		return list(ctx, cache, out)
	case "remove":
		if cfg.AuthID == "" {
			return fmt.Errorf("remove requires an authenticator id")
		}
		return cache.Remove(ctx, cfg.AuthID)
	case "clear":
		return cache.Clear(ctx)
	default:
		return fmt.Errorf("unknown command %q (expected list, remove, or clear)", cfg.Command)
	}
}

func list(ctx context.Context, cache *hint.Cache, out io.Writer) error {
	records, err := cache.List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tWALLET\tUPDATED\tUSES")
	for _, record := range records {
		key, err := hint.ComputeKid(record.AuthenticatorID)
		if err != nil {
			key = record.AuthenticatorID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
			key,
			record.WalletAddress,
			record.UpdatedAt.Format(time.RFC3339),
			record.Uses,
		)
	}
	return w.Flush()
}
