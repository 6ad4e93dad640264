// Package server exposes the scheduling core over HTTP: the three
// operations (rollover, duplicate, export) plus scoped CRUD for the
// clients. Every route except health requires a bearer credential.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/apperr"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/auth"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/model"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/repository"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/service"
	"github.com/zhangyaxin742/chronos-timeblocking-app/internal/timegrid"
)

// Server wires the repositories and operations to HTTP routes.
type Server struct {
	verifier  auth.Verifier
	repos     *repository.Registry
	rollover  *service.RolloverService
	duplicate *service.DuplicateService
	export    *service.ExportService
}

func New(verifier auth.Verifier, repos *repository.Registry, rollover *service.RolloverService, duplicate *service.DuplicateService, export *service.ExportService) *Server {
	return &Server{
		verifier:  verifier,
		repos:     repos,
		rollover:  rollover,
		duplicate: duplicate,
		export:    export,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.Handle("POST /api/functions/rollover-tasks", s.withAuth(s.handleRollover))
	mux.Handle("POST /api/functions/duplicate-timeblock", s.withAuth(s.handleDuplicate))
	mux.Handle("GET /api/functions/export-data", s.withAuth(s.handleExport))

	mux.Handle("GET /api/profile", s.withAuth(s.handleGetProfile))
	mux.Handle("PATCH /api/profile", s.withAuth(s.handleUpdateProfile))

	mux.Handle("GET /api/categories", s.withAuth(s.handleListCategories))
	mux.Handle("POST /api/categories", s.withAuth(s.handleCreateCategory))
	mux.Handle("PATCH /api/categories/{id}", s.withAuth(s.handleUpdateCategory))
	mux.Handle("DELETE /api/categories/{id}", s.withAuth(s.handleArchiveCategory))

	mux.Handle("GET /api/timeblocks", s.withAuth(s.handleListTimeblocks))
	mux.Handle("POST /api/timeblocks", s.withAuth(s.handleCreateTimeblock))
	mux.Handle("PATCH /api/timeblocks/{id}", s.withAuth(s.handleUpdateTimeblock))
	mux.Handle("DELETE /api/timeblocks/{id}", s.withAuth(s.handleDeleteTimeblock))

	mux.Handle("GET /api/tasks/backlog", s.withAuth(s.handleBacklog))
	mux.Handle("POST /api/tasks", s.withAuth(s.handleCreateTask))
	mux.Handle("PATCH /api/tasks/{id}", s.withAuth(s.handleUpdateTask))
	mux.Handle("DELETE /api/tasks/{id}", s.withAuth(s.handleDeleteTask))
	mux.Handle("POST /api/tasks/{id}/toggle", s.withAuth(s.handleToggleTask))

	return mux
}

// withAuth verifies the bearer credential and resolves the caller's
// profile, creating it with defaults on first touch.
func (s *Server) withAuth(next func(http.ResponseWriter, *http.Request, auth.Identity)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.ExtractBearer(r.Header.Get("Authorization"))
		identity, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			writeError(w, apperr.Unauthorized("Unauthorized"))
			return
		}
		if _, err := s.repos.Profiles.Ensure(r.Context(), identity.UserID, identity.Email); err != nil {
			writeError(w, err)
			return
		}
		next(w, r, *identity)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleRollover(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	moved, err := s.rollover.Rollover(r.Context(), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	logEvent("rollover", id.UserID, "moved", moved)
	writeJSON(w, http.StatusOK, map[string]any{"rolled_over": moved})
}

func (s *Server) handleDuplicate(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var input service.DuplicateInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, err)
		return
	}
	result, err := s.duplicate.Duplicate(r.Context(), id.UserID, input)
	if err != nil {
		writeError(w, err)
		return
	}
	logEvent("duplicate", id.UserID, "source", input.TimeblockID, "clone", result.Timeblock.ID)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	doc, err := s.export.Export(r.Context(), id.UserID, id.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	filename := fmt.Sprintf("chronos-export-%s.json", timegrid.TodayISO())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	logEvent("export", id.UserID,
		"categories", len(doc.Categories), "timeblocks", len(doc.Timeblocks), "tasks", len(doc.Tasks))
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	profile, err := s.repos.Profiles.FindByID(r.Context(), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var body struct {
		DisplayName *string            `json:"display_name"`
		AvatarURL   *string            `json:"avatar_url"`
		Timezone    *string            `json:"timezone"`
		Preferences *model.Preferences `json:"preferences"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	profile, err := s.repos.Profiles.Update(r.Context(), id.UserID, repository.ProfileUpdate{
		DisplayName: body.DisplayName,
		AvatarURL:   body.AvatarURL,
		Timezone:    body.Timezone,
		Preferences: body.Preferences,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	categories, err := s.repos.Categories.ListActive(r.Context(), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var body struct {
		Name      string  `json:"name"`
		Color     string  `json:"color"`
		Emoji     *string `json:"emoji"`
		SortOrder *int    `json:"sort_order"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	category, err := s.repos.Categories.Create(r.Context(), id.UserID, repository.CategoryInput{
		Name:      body.Name,
		Color:     body.Color,
		Emoji:     body.Emoji,
		SortOrder: body.SortOrder,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var body struct {
		Name      *string `json:"name"`
		Color     *string `json:"color"`
		Emoji     *string `json:"emoji"`
		SortOrder *int    `json:"sort_order"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	category, err := s.repos.Categories.Update(r.Context(), id.UserID, r.PathValue("id"), repository.CategoryUpdate{
		Name:      body.Name,
		Color:     body.Color,
		Emoji:     body.Emoji,
		SortOrder: body.SortOrder,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (s *Server) handleArchiveCategory(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if err := s.repos.Categories.Archive(r.Context(), id.UserID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTimeblocks(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = timegrid.TodayISO()
	}
	if _, err := timegrid.ParseDateISO(date); err != nil {
		writeError(w, apperr.Validation("invalid date %q", date))
		return
	}
	blocks, err := s.repos.Timeblocks.FetchForDate(r.Context(), id.UserID, date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, blocks)
}

func (s *Server) handleCreateTimeblock(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var body struct {
		CategoryID      *string `json:"category_id"`
		Title           *string `json:"title"`
		Date            string  `json:"date"`
		StartTime       string  `json:"start_time"`
		DurationMinutes int     `json:"duration_minutes"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	block, err := s.repos.Timeblocks.Create(r.Context(), id.UserID, repository.TimeblockInput{
		CategoryID:      body.CategoryID,
		Title:           body.Title,
		Date:            body.Date,
		StartTime:       body.StartTime,
		DurationMinutes: body.DurationMinutes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, block)
}

func (s *Server) handleUpdateTimeblock(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var body struct {
		CategoryID      *string                `json:"category_id"`
		Title           *string                `json:"title"`
		Date            *string                `json:"date"`
		StartTime       *string                `json:"start_time"`
		DurationMinutes *int                   `json:"duration_minutes"`
		Status          *model.TimeblockStatus `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	block, err := s.repos.Timeblocks.Update(r.Context(), id.UserID, r.PathValue("id"), repository.TimeblockUpdate{
		CategoryID:      body.CategoryID,
		Title:           body.Title,
		Date:            body.Date,
		StartTime:       body.StartTime,
		DurationMinutes: body.DurationMinutes,
		Status:          body.Status,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, block)
}

func (s *Server) handleDeleteTimeblock(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if err := s.repos.Timeblocks.Delete(r.Context(), id.UserID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBacklog(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	tasks, err := s.repos.Tasks.FetchBacklog(r.Context(), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var body struct {
		TimeblockID      *string            `json:"timeblock_id"`
		CategoryID       *string            `json:"category_id"`
		Title            string             `json:"title"`
		Description      *string            `json:"description"`
		Priority         model.TaskPriority `json:"priority"`
		DueDate          *string            `json:"due_date"`
		EstimatedMinutes *int               `json:"estimated_minutes"`
		SortOrder        *int               `json:"sort_order"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	task, err := s.repos.Tasks.Create(r.Context(), id.UserID, repository.TaskInput{
		TimeblockID:      body.TimeblockID,
		CategoryID:       body.CategoryID,
		Title:            body.Title,
		Description:      body.Description,
		Priority:         body.Priority,
		DueDate:          body.DueDate,
		EstimatedMinutes: body.EstimatedMinutes,
		SortOrder:        body.SortOrder,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var body struct {
		TimeblockID      *string             `json:"timeblock_id"`
		DetachTimeblock  bool                `json:"detach_timeblock"`
		CategoryID       *string             `json:"category_id"`
		Title            *string             `json:"title"`
		Description      *string             `json:"description"`
		Priority         *model.TaskPriority `json:"priority"`
		DueDate          *string             `json:"due_date"`
		EstimatedMinutes *int                `json:"estimated_minutes"`
		SortOrder        *int                `json:"sort_order"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	task, err := s.repos.Tasks.Update(r.Context(), id.UserID, r.PathValue("id"), repository.TaskUpdate{
		TimeblockID:      body.TimeblockID,
		DetachTimeblock:  body.DetachTimeblock,
		CategoryID:       body.CategoryID,
		Title:            body.Title,
		Description:      body.Description,
		Priority:         body.Priority,
		DueDate:          body.DueDate,
		EstimatedMinutes: body.EstimatedMinutes,
		SortOrder:        body.SortOrder,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if err := s.repos.Tasks.Delete(r.Context(), id.UserID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleTask(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	task, err := s.repos.Tasks.ToggleComplete(r.Context(), id.UserID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("invalid request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var coded *apperr.Error
	if !errors.As(err, &coded) {
		coded = apperr.Storage(err, "internal error")
	}

	status := http.StatusInternalServerError
	switch coded.Code {
	case apperr.CodeValidation:
		status = http.StatusBadRequest
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeUnauthorized:
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, map[string]string{
		"error": coded.Message,
		"code":  string(coded.Code),
	})
}
