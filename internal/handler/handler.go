// Package handler exposes the JSON API: the exercise catalog for
// supervisors, the session workflow for trainees, and user administration.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"chambers/internal/apperr"
	"chambers/internal/catalog"
	"chambers/internal/engine"
	"chambers/internal/model"
	"chambers/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store         *store.Store
	engine        *engine.Engine
	catalog       *catalog.Service
	secureCookies bool
}

// New creates a new Handler.
func New(s *store.Store, eng *engine.Engine, cat *catalog.Service, secureCookies bool) *Handler {
	return &Handler{store: s, engine: eng, catalog: cat, secureCookies: secureCookies}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Get("/api/exercises", h.handleListExercises)
		r.Get("/api/exercises/{exerciseID}", h.handleGetExercise)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleSupervisor, model.UserRoleAdmin))
			r.Post("/api/exercises", h.handleCreateExercise)
			r.Put("/api/exercises/{exerciseID}", h.handleUpdateExercise)
			r.Post("/api/exercises/{exerciseID}/documents", h.handleAttachDocument)
			r.Post("/api/exercises/{exerciseID}/generate", h.handleGenerateExercise)
		})

		r.Get("/api/sessions", h.handleListSessions)
		r.Post("/api/sessions", h.handleCreateSession)
		r.Get("/api/sessions/{sessionID}", h.handleGetSession)
		r.Get("/api/sessions/{sessionID}/steps/{index}", h.handleGetStep)
		r.Post("/api/sessions/{sessionID}/submit", h.handleSubmitStep)
		r.Post("/api/sessions/{sessionID}/chat", h.handleChat)
		r.Post("/api/sessions/{sessionID}/complete", h.handleCompleteSession)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/api/admin/users", h.handleListUsers)
			r.Post("/api/admin/users", h.handleCreateUser)
			r.Post("/api/admin/users/{userID}/toggle", h.handleToggleUser)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError maps domain errors onto HTTP statuses. Collaborator failures
// surface as 502 so callers can distinguish "the grader is down" from "you
// sent something wrong".
func writeError(w http.ResponseWriter, err error) {
	var collab *apperr.CollaboratorError
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrInvalidState), errors.Is(err, apperr.ErrRubricMissing):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrForbidden):
		status = http.StatusForbidden
	case errors.As(err, &collab):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// canModifyExercise reports whether the user may mutate an exercise: its
// owning supervisor, or an admin.
func (h *Handler) canModifyExercise(user *model.User, exerciseID string) error {
	if user.Role == model.UserRoleAdmin {
		return nil
	}
	ownerID, err := h.store.ExerciseOwner(exerciseID)
	if err != nil {
		return err
	}
	if ownerID != user.ID {
		return apperr.ErrForbidden
	}
	return nil
}

// canAccessSession reports whether the user may touch a session: its owner,
// or any supervisor or admin.
func (h *Handler) canAccessSession(user *model.User, sessionID string) error {
	if user.Role == model.UserRoleSupervisor || user.Role == model.UserRoleAdmin {
		return nil
	}
	ownerID, err := h.store.SessionOwner(sessionID)
	if err != nil {
		return err
	}
	if ownerID != user.ID {
		return apperr.ErrForbidden
	}
	return nil
}

// --- Exercises ---

func (h *Handler) handleListExercises(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	exercises, err := h.catalog.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]model.Exercise, 0, len(exercises))
	for _, ex := range exercises {
		// Trainees only see runnable exercises, stripped of answers.
		if user.Role == model.UserRoleTrainee {
			if ex.Status != model.ExerciseReady {
				continue
			}
			out = append(out, model.RedactForTrainee(*ex))
			continue
		}
		out = append(out, *ex)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetExercise(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	ex, err := h.catalog.Get(r.Context(), chi.URLParam(r, "exerciseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.RedactForRole(*ex, user.Role))
}

func (h *Handler) handleCreateExercise(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	var p catalog.CreateParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, apperr.ErrInvalidInput)
		return
	}
	ex, err := h.catalog.Create(r.Context(), p, user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ex)
}

func (h *Handler) handleUpdateExercise(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	if err := h.canModifyExercise(user, chi.URLParam(r, "exerciseID")); err != nil {
		writeError(w, err)
		return
	}

	var ex model.Exercise
	if err := json.NewDecoder(r.Body).Decode(&ex); err != nil {
		writeError(w, apperr.ErrInvalidInput)
		return
	}
	ex.ID = chi.URLParam(r, "exerciseID")
	updated, err := h.catalog.Update(r.Context(), &ex)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleAttachDocument(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	if err := h.canModifyExercise(user, chi.URLParam(r, "exerciseID")); err != nil {
		writeError(w, err)
		return
	}

	var doc model.UploadedDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, apperr.ErrInvalidInput)
		return
	}
	saved, err := h.catalog.AttachDocument(r.Context(), chi.URLParam(r, "exerciseID"), doc)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *Handler) handleGenerateExercise(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	if err := h.canModifyExercise(user, chi.URLParam(r, "exerciseID")); err != nil {
		writeError(w, err)
		return
	}

	ex, err := h.catalog.Generate(r.Context(), chi.URLParam(r, "exerciseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

// --- Sessions ---

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	sessions, err := h.store.ListSessions()
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]*model.Session, 0, len(sessions))
	for _, sess := range sessions {
		if user.Role == model.UserRoleTrainee {
			ownerID, err := h.store.SessionOwner(sess.ID)
			if err != nil {
				writeError(w, err)
				return
			}
			if ownerID != user.ID {
				continue
			}
		}
		out = append(out, sess)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	var req struct {
		ExerciseID string `json:"exerciseId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.ErrInvalidInput)
		return
	}
	sess, err := h.engine.CreateSession(r.Context(), req.ExerciseID, user.DisplayName, user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.canAccessSession(user, sessionID); err != nil {
		writeError(w, err)
		return
	}
	sess, err := h.store.GetSession(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if sess == nil {
		writeError(w, apperr.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleGetStep returns one step of the session's exercise, gated so
// trainees cannot read ahead of their frontier.
func (h *Handler) handleGetStep(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.canAccessSession(user, sessionID); err != nil {
		writeError(w, err)
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, apperr.ErrInvalidInput)
		return
	}

	sess, err := h.store.GetSession(sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if sess == nil {
		writeError(w, apperr.ErrNotFound)
		return
	}
	ex, err := h.catalog.Get(r.Context(), sess.ExerciseID)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.engine.NavigateTo(sess, ex, index); err != nil {
		writeError(w, err)
		return
	}

	redacted := model.RedactForRole(*ex, user.Role)
	step := redacted.Steps[index]

	// Only the documents the step names are shown alongside it.
	visible := make([]model.UploadedDocument, 0, len(step.VisibleDocuments))
	for _, docID := range step.VisibleDocuments {
		for _, doc := range redacted.Documents {
			if doc.ID == docID {
				visible = append(visible, doc)
				break
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"step":      step,
		"documents": visible,
		"result":    sess.ResultFor(step.ID),
	})
}

func (h *Handler) handleSubmitStep(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.canAccessSession(user, sessionID); err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		StepID     string `json:"stepId"`
		Submission string `json:"submission"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.ErrInvalidInput)
		return
	}

	result, err := h.engine.SubmitStep(r.Context(), sessionID, req.StepID, req.Submission)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"result":     result.StepResult,
		"stepIndex":  result.StepIndex,
		"isLastStep": result.IsLastStep,
	})
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.canAccessSession(user, sessionID); err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		StepID  string `json:"stepId"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.ErrInvalidInput)
		return
	}

	result, err := h.engine.AskQuestion(r.Context(), sessionID, req.StepID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"question": result.Question,
		"reply":    result.Reply,
		"score":    result.Score,
	})
}

func (h *Handler) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.canAccessSession(user, sessionID); err != nil {
		writeError(w, err)
		return
	}

	final, err := h.engine.CompleteSession(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, final)
}
