package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	attendanceHandler := handlers.NewAttendanceHandler(s.config, s.deps.Gallery, s.deps.Provider, s.deps.Recorder)
	galleryHandler := handlers.NewGalleryHandler(s.config, s.deps.Gallery, s.deps.Store, s.deps.Provider, s.deps.Load)
	liveHandler := handlers.NewLiveHandler(s.config, s.deps.Gallery, s.deps.Provider, s.deps.Recorder, s.liveManager, s.deps.OpenCamera)
	configHandler := handlers.NewConfigHandler(s.config)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireToken(s.config.Web.APIToken))

		// Request/response endpoints get a deadline; streams below do not.
		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(10 * time.Minute))

			r.Get("/config", configHandler.Get)

			// Attendance
			r.Post("/attendance/photo", attendanceHandler.Photo)
			r.Post("/attendance/video", attendanceHandler.Video)
			r.Get("/attendance", attendanceHandler.List)
			r.Get("/attendance/days", attendanceHandler.Days)

			// Gallery
			r.Get("/gallery", galleryHandler.List)
			r.Post("/gallery/reload", galleryHandler.Reload)
			r.Post("/gallery/{name}", galleryHandler.Enroll)

			// Live camera sessions
			r.Post("/live", liveHandler.Start)
			r.Get("/live/{sessionId}", liveHandler.Status)
			r.Delete("/live/{sessionId}", liveHandler.Stop)
		})

		r.Get("/live/{sessionId}/events", liveHandler.Events)
		r.Get("/live/{sessionId}/frames", liveHandler.Frames)
	})
}
