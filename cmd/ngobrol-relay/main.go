// ngobrol-relay — the self-hosted signaling relay and blob host.
//
// It exposes the document-store protocol on /ws, accepts media uploads on
// /blobs, and keeps everything in memory: the relay only ferries signaling
// payloads and room chatter, it is not a system of record.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aldisr/ngobrol/internal/blob"
	"github.com/aldisr/ngobrol/internal/relay/memory"
	"github.com/aldisr/ngobrol/internal/relay/wsrelay"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	blobDir := flag.String("blobs", "./blobs", "directory for uploaded media")
	baseURL := flag.String("baseUrl", "", "public base URL for blob links (default http://<addr>)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	w := zerolog.ConsoleWriter{Out: os.Stdout}
	logger := zerolog.New(w).With().Timestamp().Logger()
	if !*debug {
		logger = logger.Level(zerolog.InfoLevel)
	}
	log.Logger = logger

	if *baseURL == "" {
		*baseURL = "http://localhost" + *addr
	}
	blobs := &blob.Dir{Root: *blobDir, BaseURL: *baseURL + "/blobs"}
	server := wsrelay.NewServer(memory.NewStore())

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	r.Get("/ws", server.HandleWS)
	r.Put("/blobs/*", handleUpload(blobs))
	r.Get("/blobs/*", handleDownload(blobs))

	srv := &http.Server{
		Addr:    *addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", *addr).Msg("relay listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("relay server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("relay exited")
}

// maxBlobSize bounds a single upload; voice notes and photos stay well
// under this.
const maxBlobSize = 32 << 20

func handleUpload(blobs *blob.Dir) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		data, err := io.ReadAll(io.LimitReader(r.Body, maxBlobSize+1))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		if len(data) > maxBlobSize {
			http.Error(w, "blob too large", http.StatusRequestEntityTooLarge)
			return
		}

		url, err := blobs.Put(r.Context(), key, data, r.Header.Get("Content-Type"))
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("blob upload failed")
			if errors.Is(err, blob.ErrInvalidKey) {
				http.Error(w, "bad blob key", http.StatusBadRequest)
			} else {
				http.Error(w, "store blob", http.StatusInternalServerError)
			}
			return
		}
		log.Debug().Str("key", key).Int("size", len(data)).Msg("blob stored")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintln(w, url)
	}
}

func handleDownload(blobs *blob.Dir) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		rc, err := blobs.Open(key)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer rc.Close()
		if _, err := io.Copy(w, rc); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("blob download interrupted")
		}
	}
}
