// Package project stores arbitrary JSON documents owned by users.
package project

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nkiryanov/netcraft/internal/apperrors"
	"github.com/nkiryanov/netcraft/internal/logger"
	"github.com/nkiryanov/netcraft/internal/models"
	"github.com/nkiryanov/netcraft/internal/repository"
)

const (
	MaxNameLength = 100
	MaxDataSize   = 1 << 20
)

type ProjectService struct {
	storage repository.Storage
	logger  logger.Logger
}

func NewService(storage repository.Storage, l logger.Logger) *ProjectService {
	return &ProjectService{
		storage: storage,
		logger:  l.With("component", "project"),
	}
}

// Save new project
// Name and every string in data are html escaped. Data must fit into MaxDataSize once sanitized
func (s *ProjectService) Save(ctx context.Context, ownerID uuid.UUID, name string, data map[string]any) (models.Project, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < 1 || n > MaxNameLength {
		return models.Project{}, apperrors.ErrProjectNameBad
	}

	if data == nil {
		data = map[string]any{}
	}

	raw, err := json.Marshal(sanitizeValue(data))
	if err != nil {
		return models.Project{}, fmt.Errorf("encode project data: %w", err)
	}
	if len(raw) > MaxDataSize {
		return models.Project{}, apperrors.ErrProjectTooLarge
	}

	p, err := s.storage.Project().Create(ctx, ownerID, html.EscapeString(name), raw)
	if err != nil {
		return p, err
	}

	s.logger.Debug("Project saved", "project_id", p.ID.String(), "user_id", ownerID.String(), "size", len(raw))
	return p, nil
}

// Owner projects, newest first, without data
func (s *ProjectService) List(ctx context.Context, ownerID uuid.UUID) ([]models.Project, error) {
	return s.storage.Project().ListByOwner(ctx, ownerID)
}

// Get project of the owner
// Project of another user is reported as not found
func (s *ProjectService) Get(ctx context.Context, ownerID uuid.UUID, projectID uuid.UUID) (models.Project, error) {
	p, err := s.storage.Project().Get(ctx, projectID)
	if err != nil {
		return models.Project{}, err
	}
	if p.OwnerID != ownerID {
		return models.Project{}, apperrors.ErrProjectNotFound
	}
	return p, nil
}

// Delete project of the owner
// apperrors.ErrProjectNotOwned if project belongs to somebody else
func (s *ProjectService) Delete(ctx context.Context, ownerID uuid.UUID, projectID uuid.UUID) error {
	return s.storage.InTx(ctx, func(st repository.Storage) error {
		p, err := st.Project().Get(ctx, projectID)
		if err != nil {
			return err
		}
		if p.OwnerID != ownerID {
			s.logger.Warn("Attempt to delete foreign project", "project_id", projectID.String(), "user_id", ownerID.String())
			return apperrors.ErrProjectNotOwned
		}
		return st.Project().Delete(ctx, projectID)
	})
}
