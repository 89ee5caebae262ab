// Package api exposes the explorer over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/bizmap/internal/explorer"
	"github.com/sells-group/bizmap/internal/geo"
	"github.com/sells-group/bizmap/internal/summary"
)

// maxUploadBytes caps an import request body.
const maxUploadBytes = 64 << 20

// maxEditBytes caps a record edit body.
const maxEditBytes = 1 << 20

// Options wires the router's collaborators.
type Options struct {
	Explorer    *explorer.Explorer
	Summarizer  summary.Summarizer
	Boundaries  *geo.Boundaries
	CORSOrigins []string
}

type server struct {
	ex         *explorer.Explorer
	summarizer summary.Summarizer
	boundaries *geo.Boundaries
}

// NewRouter builds the HTTP handler.
func NewRouter(opts Options) http.Handler {
	s := &server{
		ex:         opts.Explorer,
		summarizer: opts.Summarizer,
		boundaries: opts.Boundaries,
	}
	if s.summarizer == nil {
		s.summarizer = summary.Unavailable{Reason: "no provider configured"}
	}
	if s.boundaries == nil {
		s.boundaries = &geo.Boundaries{}
	}

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/businesses", s.listBusinesses)
		r.Delete("/businesses", s.clear)
		r.Get("/businesses/{id}", s.getBusiness)
		r.Put("/businesses/{id}", s.updateBusiness)
		r.Post("/businesses/{id}/tags", s.addTag)
		r.Delete("/businesses/{id}/tags", s.removeTag)
		r.Post("/businesses/{id}/summary", s.summarize)

		r.Post("/import", s.importFile)

		r.Get("/selection", s.getSelection)
		r.Delete("/selection", s.closeSelection)
		r.Post("/selection/business/{id}", s.selectBusiness)
		r.Post("/selection/county/{name}", s.selectCounty)
		r.Post("/selection/zip/{zip}", s.selectZip)

		r.Get("/totals", s.totals)
		r.Get("/boundaries/{layer}", s.boundaryLayer)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
