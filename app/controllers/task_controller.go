package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"taskboard/app/ai"
	"taskboard/app/services"
	"taskboard/app/sizing"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// TaskController handles HTTP requests for tasks.
type TaskController struct {
	Service  *services.TaskService
	log      zerolog.Logger
	validate *validator.Validate
}

// NewTaskController creates a new TaskController.
func NewTaskController(service *services.TaskService, log zerolog.Logger) *TaskController {
	return &TaskController{Service: service, log: log, validate: validator.New()}
}

type createTaskRequest struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description string  `json:"description" validate:"max=10000"`
	ParentID    *string `json:"parent_id"`
	Size        *string `json:"size"`
	StoryPoints *int    `json:"current_story_points"`
}

// updateTaskRequest leaves absent fields alone. clear_size and
// clear_story_points remove a value.
type updateTaskRequest struct {
	Title            *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description      *string `json:"description" validate:"omitempty,max=10000"`
	Completed        *bool   `json:"completed"`
	Size             *string `json:"size"`
	ClearSize        bool    `json:"clear_size"`
	StoryPoints      *int    `json:"current_story_points"`
	ClearStoryPoints bool    `json:"clear_story_points"`
}

type acceptBreakdownRequest struct {
	Subtasks []ai.Subtask `json:"subtasks" validate:"required,min=1,dive"`
}

// GetTasks handles GET /tasks.
func (c *TaskController) GetTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := c.Service.GetTasks(r.Context())
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// CreateTask handles POST /tasks.
func (c *TaskController) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if !c.decode(w, r, &req) {
		return
	}
	task, err := c.Service.CreateTask(r.Context(), services.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		ParentID:    req.ParentID,
		Size:        req.Size,
		StoryPoints: req.StoryPoints,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// GetTaskByID handles GET /tasks/{taskID}.
func (c *TaskController) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	task, err := c.Service.GetTaskByID(r.Context(), mux.Vars(r)["taskID"])
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// UpdateTask handles PUT /tasks/{taskID}.
func (c *TaskController) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var req updateTaskRequest
	if !c.decode(w, r, &req) {
		return
	}
	task, err := c.Service.UpdateTask(r.Context(), mux.Vars(r)["taskID"], services.UpdateTaskInput{
		Title:            req.Title,
		Description:      req.Description,
		Completed:        req.Completed,
		Size:             req.Size,
		ClearSize:        req.ClearSize,
		StoryPoints:      req.StoryPoints,
		ClearStoryPoints: req.ClearStoryPoints,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// DeleteTask handles DELETE /tasks/{taskID}.
func (c *TaskController) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := c.Service.DeleteTask(r.Context(), mux.Vars(r)["taskID"]); err != nil {
		c.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSubtasks handles GET /tasks/{taskID}/subtasks.
func (c *TaskController) GetSubtasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := c.Service.GetSubtasks(r.Context(), mux.Vars(r)["taskID"])
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// GetSizing handles GET /tasks/{taskID}/sizing.
func (c *TaskController) GetSizing(w http.ResponseWriter, r *http.Request) {
	summary, err := c.Service.SizingSummary(r.Context(), mux.Vars(r)["taskID"])
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// SuggestBreakdown handles POST /tasks/{taskID}/breakdown. A rejected
// breakdown is still returned, with its violations, as 422.
func (c *TaskController) SuggestBreakdown(w http.ResponseWriter, r *http.Request) {
	res, err := c.Service.SuggestBreakdown(r.Context(), mux.Vars(r)["taskID"])
	if errors.Is(err, services.ErrBreakdownRejected) && res != nil {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AcceptBreakdown handles POST /tasks/{taskID}/breakdown/accept.
func (c *TaskController) AcceptBreakdown(w http.ResponseWriter, r *http.Request) {
	var req acceptBreakdownRequest
	if !c.decode(w, r, &req) {
		return
	}
	created, err := c.Service.AcceptBreakdown(r.Context(), mux.Vars(r)["taskID"], req.Subtasks)
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type sizeInfo struct {
	Size               sizing.Size `json:"size"`
	MaxStoryPoints     int         `json:"max_story_points"`
	AllowedStoryPoints []int       `json:"allowed_story_points"`
}

// GetSizes handles GET /sizes.
func (c *TaskController) GetSizes(w http.ResponseWriter, r *http.Request) {
	out := make([]sizeInfo, 0, len(sizing.Sizes))
	for _, sz := range sizing.Sizes {
		limit, _ := sizing.MaxStoryPointsForSize(string(sz))
		out = append(out, sizeInfo{Size: sz, MaxStoryPoints: limit, AllowedStoryPoints: sizing.AllowedPointsForSize(string(sz))})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sizes":            out,
		"fibonacci_points": sizing.FibonacciPoints,
	})
}

// Healthz handles GET /healthz.
func (c *TaskController) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (c *TaskController) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "InvalidPayload", "message": "Invalid request payload"})
		return false
	}
	if err := c.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "InvalidPayload", "message": err.Error()})
		return false
	}
	return true
}
