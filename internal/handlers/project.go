package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/netcraft/internal/apperrors"
	"github.com/nkiryanov/netcraft/internal/handlers/render"
	"github.com/nkiryanov/netcraft/internal/handlers/userctx"
	"github.com/nkiryanov/netcraft/internal/logger"
	"github.com/nkiryanov/netcraft/internal/models"
)

type projectResponse struct {
	ID        uuid.UUID `json:"project_id"`
	Name      string    `json:"name"`
	Data      any       `json:"data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newProjectResponse(p models.Project) projectResponse {
	res := projectResponse{
		ID:        p.ID,
		Name:      p.Name,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if p.Data != nil {
		res.Data = p.Data
	}
	return res
}

func handleListProjects(projectService projectService, l logger.Logger) http.Handler {
	type response struct {
		Projects []projectResponse `json:"projects"`
		Count    int               `json:"count"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		projects, err := projectService.List(r.Context(), u.ID)
		if err != nil {
			l.Error("Failed to retrieve projects", "user_id", u.ID.String(), "error", err.Error())
			render.ServiceError(w, "Failed to retrieve projects", http.StatusBadRequest)
			return
		}

		res := response{Projects: make([]projectResponse, 0, len(projects)), Count: len(projects)}
		for _, p := range projects {
			res.Projects = append(res.Projects, newProjectResponse(p))
		}
		render.JSON(w, res)
	})
}

func handleSaveProject(projectService projectService, l logger.Logger) http.Handler {
	type request struct {
		Name string         `json:"name" validate:"required"`
		Data map[string]any `json:"data"`
	}
	type response struct {
		Message string    `json:"message"`
		ID      uuid.UUID `json:"project_id"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		p, err := projectService.Save(r.Context(), u.ID, data.Name, data.Data)
		switch {
		case err == nil:
			render.JSONWithStatus(w, response{Message: "Project saved successfully", ID: p.ID}, http.StatusCreated)
		case errors.Is(err, apperrors.ErrProjectNameBad):
			render.ServiceError(w, "Project name must be 1-100 characters", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrProjectTooLarge):
			render.ServiceError(w, "Project data too large (max 1MB)", http.StatusBadRequest)
		default:
			l.Error("Failed to save project", "user_id", u.ID.String(), "error", err.Error())
			render.ServiceError(w, "Failed to save project", http.StatusBadRequest)
		}
	})
}

func handleGetProject(projectService projectService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		projectID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "Invalid project identifier", http.StatusBadRequest)
			return
		}

		p, err := projectService.Get(r.Context(), u.ID, projectID)
		switch {
		case err == nil:
			render.JSON(w, newProjectResponse(p))
		case errors.Is(err, apperrors.ErrProjectNotFound):
			render.ServiceError(w, "Project not found", http.StatusNotFound)
		default:
			l.Error("Failed to retrieve project", "project_id", projectID.String(), "error", err.Error())
			render.ServiceError(w, "Failed to retrieve project", http.StatusBadRequest)
		}
	})
}

func handleDeleteProject(projectService projectService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		projectID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "Invalid project identifier", http.StatusBadRequest)
			return
		}

		err = projectService.Delete(r.Context(), u.ID, projectID)
		switch {
		case err == nil:
			render.Message(w, "Project deleted successfully")
		case errors.Is(err, apperrors.ErrProjectNotFound):
			render.ServiceError(w, "Project not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrProjectNotOwned):
			render.ServiceError(w, "Access denied - not project owner", http.StatusForbidden)
		default:
			l.Error("Failed to delete project", "project_id", projectID.String(), "error", err.Error())
			render.ServiceError(w, "Failed to delete project", http.StatusBadRequest)
		}
	})
}
