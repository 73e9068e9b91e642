// Package main runs the flowstore CLI.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/goliatone/go-flowstore/internal/cmd/flowstore"
)

func main() {
	log.SetPrefix("[FLOWSTORE] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := flowstore.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flowstore.ErrKeyNotFound) {
			stop()
			os.Exit(2)
		}
		log.Fatalf("%v", err)
	}
}
