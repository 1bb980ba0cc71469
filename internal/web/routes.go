package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
	"github.com/kozaktomas/face-attendance/internal/web/static"
)

func (s *Server) setupRoutes() {
	recognizeHandler := handlers.NewRecognizeHandler(s.service, s.logger)
	attendanceHandler := handlers.NewAttendanceHandler(s.service.Ledger(), nil, s.logger)

	var refresher handlers.GalleryRefresher
	if s.refresher != nil {
		refresher = s.refresher
	}
	galleryHandler := handlers.NewGalleryHandler(s.service, refresher, s.logger)

	rateLimit := middleware.RateLimit(s.config.Web.RateLimit, s.config.Web.RateBurst)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// Kiosk-compatible upload endpoint
	s.router.With(rateLimit).Post("/recognize-face", recognizeHandler.RecognizeImage)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rateLimit)
			r.Post("/recognize", recognizeHandler.Recognize)
			r.Post("/recognize/image", recognizeHandler.RecognizeImage)
		})

		r.Get("/gallery", galleryHandler.Get)
		r.Post("/gallery/refresh", galleryHandler.Refresh)

		r.Get("/attendance", attendanceHandler.List)
	})

	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics)
	}

	s.router.Handle("/*", http.FileServer(static.FileSystem()))
}
