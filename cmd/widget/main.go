// Package main runs the referral widget against a live backend, speaking
// the authenticator bridge protocol over stdio.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	widgetcmd "github.com/shopembed/referral-widget/internal/cmd/widget"
)

func main() {
	cfg, err := widgetcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[WIDGET] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := widgetcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("widget failed: %v", err)
	}
}
