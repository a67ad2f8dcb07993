package server

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/bz888/roichat/internal/api/server/handlers"
	"github.com/bz888/roichat/internal/logger"
)

const requestIDHeader = "X-Request-ID"

func registerRoutes(handler *handlers.Handler) http.Handler {
	r := chi.NewRouter()

	// request lines go through our logger; stdout belongs to the terminal UI
	r.Use(chimiddleware.RequestLogger(&chimiddleware.DefaultLogFormatter{
		Logger:  log.New(logger.NewLogger("http"), "", 0),
		NoColor: true,
	}))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestID)

	r.Get("/health", handler.HealthHandler)
	r.Post("/chat", handler.ChatHandler)
	r.Get("/models", handler.ModelHandler)
	r.Post("/roi", handler.ROIHandler)
	r.Post("/roi/report", handler.ReportHandler)

	return r
}

// RequestID keeps an incoming X-Request-ID or assigns a new one, and echoes
// it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}
