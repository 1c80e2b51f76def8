/*
sentinelnav scans a file, annotates it with per-chunk entropy and anomaly
records, and serves the results over a loopback HTTP interface.

Usage:

sentinelnav [flags] input_filename

The flags configure the chunker, the sliding anomaly window, and the port the
query service listens on. See -help for the full list. A TOML file may also
be given with -config, read before the flags are applied.

Examples:

  sentinelnav -mode=FIXED -blocksize=4096 -port=8000 firmware.bin
  sentinelnav -mode=SENTINEL -blocksize=65536 -delimiter=0a dump.log
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustedkoi/sentinelnav/internal/analyzer"
	"github.com/rustedkoi/sentinelnav/internal/config"
	"github.com/rustedkoi/sentinelnav/internal/httpapi"
	"github.com/rustedkoi/sentinelnav/internal/session"
)

func main() {
	if err := main1(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func main1() error {
	flag.Parse()
	if flag.NArg() != 1 {
		return errors.New("usage: sentinelnav [flags] input_filename")
	}
	path := flag.Arg(0)

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(false, log)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("sentinelnav: %w", err)
	}
	log.WithFields(logrus.Fields{
		"path":      path,
		"size":      info.Size(),
		"mode":      cfg.Mode,
		"blocksize": cfg.BlockSize,
		"workers":   analyzer.WorkerCount(),
	}).Info("starting scan")

	start := time.Now()
	sess, err := session.New(ctx, path, cfg, log)
	if err != nil {
		return fmt.Errorf("sentinelnav: initial scan: %w", err)
	}
	defer sess.Close()
	log.WithField("elapsed", time.Since(start)).Info("initial scan complete")

	_, router := httpapi.New(sess, log)
	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", cfg.Port),
		Handler: router,
	}

	serveErrc := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("serving")
		serveErrc <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErrc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("sentinelnav: serve: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("sentinelnav: shutdown: %w", err)
		}
	}
	return nil
}

