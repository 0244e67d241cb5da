// Package main runs in-memory stub versions of the catalog, rating and rental
// services for local development. Each service listens on its own port so the
// gateway config can point at them exactly as it would at the real backends.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dskow/library-gateway/internal/stubs"
)

func main() {
	catalogPort := flag.Int("catalog-port", 8060, "catalog service port")
	ratingPort := flag.Int("rating-port", 8050, "rating service port")
	rentalPort := flag.Int("rental-port", 8070, "rental service port")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	backends := stubs.New()

	servers := []struct {
		name    string
		port    int
		handler http.Handler
	}{
		{"catalog", *catalogPort, backends.CatalogHandler()},
		{"rating", *ratingPort, backends.RatingHandler()},
		{"rental", *rentalPort, backends.RentalHandler()},
	}

	for _, s := range servers {
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", s.port),
			Handler: s.handler,
		}
		go func(name string, srv *http.Server) {
			logger.Info("starting stub backend", "service", name, "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("stub backend error", "service", name, "error", err)
				os.Exit(1)
			}
		}(s.name, srv)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("stub backends stopped")
}
