package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/netcraft/internal/apperrors"
	"github.com/nkiryanov/netcraft/internal/models"
)

type ProjectRepo struct {
	db DBTX
}

const createProject = `-- name: CreateProject
INSERT INTO projects (id, name, data, owner_id)
VALUES ($1, $2, $3, $4)
RETURNING id, name, data, owner_id, created_at, updated_at
`

func (r *ProjectRepo) Create(ctx context.Context, ownerID uuid.UUID, name string, data json.RawMessage) (models.Project, error) {
	rows, _ := r.db.Query(ctx, createProject, uuid.New(), name, data, ownerID)
	project, err := pgx.CollectOneRow(rows, rowToProject)
	if err != nil {
		return project, fmt.Errorf("db error: %w", err)
	}
	return project, nil
}

const getProject = `-- name: GetProject
SELECT id, name, data, owner_id, created_at, updated_at
FROM projects
WHERE id = $1
`

func (r *ProjectRepo) Get(ctx context.Context, id uuid.UUID) (models.Project, error) {
	rows, _ := r.db.Query(ctx, getProject, id)
	project, err := pgx.CollectOneRow(rows, rowToProject)

	switch {
	case err == nil:
		return project, nil
	case errors.Is(err, pgx.ErrNoRows):
		return project, apperrors.ErrProjectNotFound
	default:
		return project, fmt.Errorf("db error: %w", err)
	}
}

const listProjectsByOwner = `-- name: ListProjectsByOwner
SELECT id, name, owner_id, created_at, updated_at
FROM projects
WHERE owner_id = $1
ORDER BY created_at DESC, id
`

func (r *ProjectRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Project, error) {
	rows, _ := r.db.Query(ctx, listProjectsByOwner, ownerID)
	projects, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Project, error) {
		var p models.Project
		err := row.Scan(&p.ID, &p.Name, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return projects, nil
}

const deleteProject = `-- name: DeleteProject
DELETE FROM projects
WHERE id = $1
`

func (r *ProjectRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, deleteProject, id)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrProjectNotFound
	default:
		return nil
	}
}

func rowToProject(row pgx.CollectableRow) (models.Project, error) {
	var p models.Project
	var data []byte
	err := row.Scan(&p.ID, &p.Name, &data, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	p.Data = data
	return p, err
}
