package routes

import (
	"net/http"
	"time"

	"taskboard/app/controllers"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// RegisterRoutes sets up all routes for the application.
func RegisterRoutes(router *mux.Router, taskController *controllers.TaskController, log zerolog.Logger) {
	router.Use(middleware.RequestID, middleware.RealIP, accessLog(log), middleware.Recoverer, middleware.Timeout(2*time.Minute))

	router.HandleFunc("/healthz", taskController.Healthz).Methods(http.MethodGet)
	router.HandleFunc("/sizes", taskController.GetSizes).Methods(http.MethodGet)

	router.HandleFunc("/tasks", taskController.GetTasks).Methods(http.MethodGet)
	router.HandleFunc("/tasks", taskController.CreateTask).Methods(http.MethodPost)
	router.HandleFunc("/tasks/{taskID}", taskController.GetTaskByID).Methods(http.MethodGet)
	router.HandleFunc("/tasks/{taskID}", taskController.UpdateTask).Methods(http.MethodPut)
	router.HandleFunc("/tasks/{taskID}", taskController.DeleteTask).Methods(http.MethodDelete)
	router.HandleFunc("/tasks/{taskID}/subtasks", taskController.GetSubtasks).Methods(http.MethodGet)
	router.HandleFunc("/tasks/{taskID}/sizing", taskController.GetSizing).Methods(http.MethodGet)
	router.HandleFunc("/tasks/{taskID}/breakdown", taskController.SuggestBreakdown).Methods(http.MethodPost)
	router.HandleFunc("/tasks/{taskID}/breakdown/accept", taskController.AcceptBreakdown).Methods(http.MethodPost)
}

func accessLog(log zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info().
				Str("m", r.Method).
				Str("p", r.URL.Path).
				Int("s", ww.Status()).
				Dur("took", time.Since(start)).
				Str("req_id", middleware.GetReqID(r.Context())).
				Msg("http")
		})
	}
}
