package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/circulationkit/library-circulation-go/circulation/postgresengine"
)

// Server routes HTTP requests to the circulation store.
type Server struct {
	store  *postgresengine.CirculationStore
	logger *slog.Logger
}

// NewServer creates a Server. A nil logger falls back to slog.Default.
func NewServer(store *postgresengine.CirculationStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{store: store, logger: logger}
}

// Router builds the HTTP route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/books", func(r chi.Router) {
		r.Post("/", s.createBook)
		r.Get("/", s.listBooks)
		r.Get("/{isbn}", s.getBook)
		r.Put("/{isbn}", s.updateBook)
		r.Delete("/{isbn}", s.deleteBook)
	})

	r.Route("/items", func(r chi.Router) {
		r.Post("/", s.createItem)
		r.Get("/", s.listItems)
		r.Get("/available", s.listAvailableItems)
		r.Get("/{id}", s.getItem)
		r.Put("/{id}", s.updateItem)
		r.Delete("/{id}", s.deleteItem)
	})

	r.Route("/patrons", func(r chi.Router) {
		r.Post("/", s.createPatron)
		r.Get("/", s.listPatrons)
		r.Get("/{id}", s.getPatron)
		r.Put("/{id}", s.updatePatron)
		r.Delete("/{id}", s.deletePatron)
	})

	r.Route("/loans", func(r chi.Router) {
		r.Post("/", s.issueLoan)
		r.Get("/", s.listLoans)
		r.Get("/{id}", s.getLoan)
		r.Post("/{id}/return", s.returnLoan)
		r.Delete("/{id}", s.forceDeleteLoan)
	})

	r.Route("/fines", func(r chi.Router) {
		r.Post("/", s.assessFine)
		r.Get("/", s.listFines)
		r.Get("/{id}", s.getFine)
		r.Post("/{id}/settle", s.settleFine)
	})

	r.Route("/reports", func(r chi.Router) {
		r.Get("/active-loans", s.reportActiveLoans)
		r.Get("/pending-fines", s.reportPendingFines)
		r.Get("/popularity", s.reportPopularity)
		r.Get("/availability", s.reportAvailability)
		r.Get("/patron-activity", s.reportPatronActivity)
		r.Get("/stats", s.reportStats)
	})

	return r
}

// ListenAndServe runs the HTTP server on the given address until it fails.
// ListenAndServe serves the API on addr until ctx is canceled, then drains
// in-flight requests before returning.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("circulation API listening", "addr", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}
