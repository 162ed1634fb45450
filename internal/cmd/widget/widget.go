// Package widget wires the embeddable widget for the dev command: hint
// stores on local files, the platform bridge on stdio, and one ceremony per
// invocation.
package widget

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"

	"github.com/shopembed/referral-widget/internal/hint"
	hintbbolt "github.com/shopembed/referral-widget/internal/hint/bbolt"
	hintsqlite "github.com/shopembed/referral-widget/internal/hint/sqlite"
	platformcmd "github.com/shopembed/referral-widget/internal/platform/cmd"
	"github.com/shopembed/referral-widget/internal/widget"
	"github.com/shopembed/referral-widget/internal/widget/authenticator"
	"github.com/shopembed/referral-widget/internal/widget/flow"
	"github.com/shopembed/referral-widget/internal/widget/session"
)

// Config holds widget command configuration.
type Config struct {
	APIURL       string `env:"REFERRAL_WIDGET_API_URL"`
	SiteURL      string `env:"REFERRAL_WIDGET_SITE_URL" envDefault:"http://localhost:3000"`
	RefCode      string `env:"REFERRAL_WIDGET_REF_CODE"`
	Brand        string `env:"REFERRAL_WIDGET_BRAND"`
	Username     string `env:"REFERRAL_WIDGET_USERNAME"`
	DBPath       string `env:"REFERRAL_WIDGET_DB_PATH" envDefault:"widget-hints.sqlite"`
	FallbackPath string `env:"REFERRAL_WIDGET_FALLBACK_PATH" envDefault:"widget-hints.bbolt"`
}

// ParseConfig loads environment defaults and parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{}
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "The referral backend base URL")
	fs.StringVar(&cfg.SiteURL, "site-url", cfg.SiteURL, "The storefront URL embedded in share links")
	fs.StringVar(&cfg.RefCode, "ref-code", cfg.RefCode, "The inbound referral code, if any")
	fs.StringVar(&cfg.Brand, "brand", cfg.Brand, "The storefront brand identifier")
	fs.StringVar(&cfg.Username, "username", cfg.Username, "Run the identified flow under this username")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "Path of the primary hint database")
	fs.StringVar(&cfg.FallbackPath, "fallback-path", cfg.FallbackPath, "Path of the fallback hint database")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run opens the widget over stdio and runs one passkey ceremony.
func Run(ctx context.Context, cfg Config) error {
	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceWidget, func(ctx context.Context) error {
		return run(ctx, cfg, os.Stdin, os.Stdout)
	})
}

func run(ctx context.Context, cfg Config, in io.Reader, out io.Writer) error {
	if cfg.APIURL == "" {
		return errors.New("api url is required")
	}

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

	bridge := authenticator.NewBridge(in, out, true)
	cache := hint.NewCache(primary, fallback)
	w := widget.New(widget.Options{
		SiteURL: cfg.SiteURL,
		APIURL:  cfg.APIURL,
		RefCode: cfg.RefCode,
		Brand:   cfg.Brand,
		Product: &session.ProductInfo{},
	}, cache, bridge)

	w.Open(ctx)
	defer w.Close()

	var outcome flow.Outcome
	if cfg.Username != "" {
		outcome = w.StartEarning(ctx, cfg.Username)
	} else {
		outcome = w.Authenticate(ctx)
	}
	if outcome.Err != nil {
		return outcome.Err
	}

	log.Printf("signed in as %q (wallet %s)", outcome.User.Username, outcome.User.WalletAddress)
	// Log the hashed hint key rather than the raw credential id.
	if record, ok := cache.MostRecent(ctx); ok {
		if key, err := hint.ComputeKid(record.AuthenticatorID); err == nil {
			log.Printf("hint %s has %d uses", key, record.Uses)
		}
	}
	log.Printf("routed to %s page", w.Page())
	return nil
}
