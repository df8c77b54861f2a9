// Package main runs the caption service simulator for local development.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mearth/photosync/internal/simulator"
)

const shutdownTimeout = 5 * time.Second

func main() {
	port := flag.Int("port", 9090, "port to listen on")
	caption := flag.String("caption", "a photo of a landscape", "canned caption to return")
	confidence := flag.Float64("confidence", 0.87, "canned confidence to return")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: simulator.Inference(*caption, *confidence),
	}

	errCh := make(chan error)
	go func() {
		defer close(errCh)
		log.Info().Int("port", *port).Msg("starting inference simulator")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sig, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("failed to run simulator")
		}
	case <-sig.Done():
	}
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to gracefully shutdown simulator")
	}
}
