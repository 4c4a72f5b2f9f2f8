package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/classtrack/attendance/internal/attendance"
	"github.com/classtrack/attendance/internal/store"
	"github.com/classtrack/attendance/internal/web/handlers"
)

func (s *Server) setupRoutes(st *store.Store, service *attendance.Service, reporter *attendance.Reporter) {
	// Create handlers
	attendanceHandler := handlers.NewAttendanceHandler(service, reporter)
	studentsHandler := handlers.NewStudentsHandler(st, service)
	sessionsHandler := handlers.NewSessionsHandler(st)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Attendance capture
		r.Post("/attendance/photo", attendanceHandler.SubmitPhoto)
		r.Post("/attendance/qr", attendanceHandler.SubmitQR)
		r.Post("/attendance/manual", attendanceHandler.SubmitManual)

		// Reports
		r.Get("/attendance/rollup", attendanceHandler.Rollup)
		r.Get("/attendance/summary", attendanceHandler.Summary)

		// Roster
		r.Post("/students", studentsHandler.Create)
		r.Get("/students", studentsHandler.List)
		r.Get("/students/search", studentsHandler.Search)
		r.Get("/students/{id}", studentsHandler.Get)
		r.Delete("/students/{id}", studentsHandler.Deactivate)
		r.Post("/students/{id}/face", studentsHandler.EnrollFace)
		r.Delete("/students/{id}/face", studentsHandler.RemoveFace)

		// Session audit trail
		r.Get("/sessions", sessionsHandler.List)
		r.Get("/sessions/{id}", sessionsHandler.Get)
	})
}
