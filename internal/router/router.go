package router

import (
	"net/http"
	"time"

	_ "cattle-case-report/docs"
	"cattle-case-report/internal/domain/casereport"
	"cattle-case-report/internal/middleware"
	"cattle-case-report/internal/platform/logger"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	Cases *casereport.Service

	Logger logger.Logger // puede ser nil

	// Opcionales: cero = default del módulo.
	MaxUploadBytes int64
	DiseasesWait   time.Duration
	SessionCookie  string
}

func NewRouter(opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLog(log))
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// Rutas del form: requieren sesión (cookie)
	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionContext(opts.SessionCookie))
		casereport.RegisterRoutes(r, opts.Cases, casereport.HandlerOptions{
			MaxUploadBytes: opts.MaxUploadBytes,
			DiseasesWait:   opts.DiseasesWait,
			Logger:         log,
		})
	})

	return r
}
