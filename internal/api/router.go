package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yegors/co-wx/internal/config"
	"github.com/yegors/co-wx/pkg/logger"
)

// Router builds the HTTP routes
type Router struct {
	handler  *Handler
	config   *config.Config
	gatherer prometheus.Gatherer
	logger   *logger.Logger
}

// NewRouter creates a new API router. A nil gatherer serves the default registry.
func NewRouter(handler *Handler, cfg *config.Config, gatherer prometheus.Gatherer, log *logger.Logger) *Router {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Router{
		handler:  handler,
		config:   cfg,
		gatherer: gatherer,
		logger:   log.Named("api-router"),
	}
}

// Routes returns the configured handler
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(rt.cors)

	r.Get("/health", rt.handler.GetHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/getAirportWeather", rt.handler.GetAirportWeather)
		r.Get("/getWindsAloft", rt.handler.GetWindsAloft)
		r.Get("/getWindsAloftByCoords", rt.handler.GetWindsAloftByCoords)
		r.Get("/getDewPointSpread", rt.handler.GetDewPointSpread)
		r.Get("/getAirSigmet", rt.handler.GetAirSigmet)
		r.Get("/getGAirmet", rt.handler.GetGAirmet)
		r.Get("/getTAF", rt.handler.GetTAF)
		r.Get("/getPireps", rt.handler.GetPireps)
		r.Get("/getWindTemp", rt.handler.GetWindTemp)
		r.Get("/getAirportFrequencies", rt.handler.GetAirportFrequencies)

		r.Post("/windsAloft/invalidate", rt.handler.InvalidateWindsAloft)
	})

	return r
}

func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		rt.logger.Debug("HTTP request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Int("bytes", ww.BytesWritten()),
			logger.Duration("duration", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (rt *Router) cors(next http.Handler) http.Handler {
	var origins []string
	if rt.config != nil {
		origins = rt.config.Server.CORSAllowedOrigins
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed := allowedOrigin(origins, origin); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func allowedOrigin(origins []string, origin string) string {
	if origin == "" {
		return ""
	}
	for _, o := range origins {
		if o == "*" {
			return "*"
		}
		if strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}
