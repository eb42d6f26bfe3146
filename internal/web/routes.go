package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/static"
)

func (s *Server) setupRoutes() {
	subjectsHandler := handlers.NewSubjectsHandler(s.coord.Registry(), s.coord)
	attendanceHandler := handlers.NewAttendanceHandler(s.coord, s.camera)
	reportsHandler := handlers.NewReportsHandler(s.coord)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		// Long-lived event stream, no request timeout
		r.Get("/attendance/events", attendanceHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(time.Minute))

			// Subjects
			r.Get("/subjects", subjectsHandler.List)
			r.Post("/subjects", subjectsHandler.Create)
			r.Get("/subjects/{id}", subjectsHandler.Get)
			r.Put("/subjects/{id}", subjectsHandler.Update)
			r.Delete("/subjects/{id}", subjectsHandler.Delete)
			r.Post("/gallery/reload", subjectsHandler.Reload)

			// Attendance
			r.Post("/attendance/face", attendanceHandler.Face)
			r.Post("/attendance/capture", attendanceHandler.Capture)
			r.Post("/attendance/manual", attendanceHandler.Manual)
			r.Get("/attendance/log", attendanceHandler.Log)

			// Reports
			r.Get("/reports", reportsHandler.Get)
		})
	})

	// Kiosk page
	s.router.Handle("/*", static.Handler())
}
