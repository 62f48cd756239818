package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/ids"
	"catalog.icecat.io/internal/pagination"
)

type ProjectRepo struct{}

func NewProjectRepo() ProjectRepo { return ProjectRepo{} }

func (ProjectRepo) Create(ctx context.Context, tx catalogstore.Tx, p catalogstore.Project) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `
		INSERT INTO project (project_id, name, created_at) VALUES ($1, $2, now())
	`, p.ProjectID, p.Name)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: create project: %w", err)
	}
	return nil
}

func (ProjectRepo) Get(ctx context.Context, tx catalogstore.Tx, id ids.ProjectID) (*catalogstore.Project, error) {
	pt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	var p catalogstore.Project
	row := pt.QueryRow(ctx, `SELECT project_id, name, created_at FROM project WHERE project_id = $1`, id)
	if err := row.Scan(&p.ProjectID, &p.Name, &p.CreatedAt); err != nil {
		return nil, fmt.Errorf("catalogstore/postgres: get project: %w", err)
	}
	return &p, nil
}

func (ProjectRepo) Delete(ctx context.Context, tx catalogstore.Tx, id ids.ProjectID) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `DELETE FROM project WHERE project_id = $1`, id)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: delete project: %w", err)
	}
	return nil
}

func (ProjectRepo) Rename(ctx context.Context, tx catalogstore.Tx, id ids.ProjectID, name string) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `UPDATE project SET name = $2 WHERE project_id = $1`, id, name)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: rename project: %w", err)
	}
	return nil
}

// List returns projects ordered by (created_at, project_id), the cursor
// pair every list operation in this backend uses so pagination.Token stays
// a single opaque cursor type across all entity kinds.
func (ProjectRepo) List(ctx context.Context, tx catalogstore.Tx, pageSize int, token *pagination.Token) ([]catalogstore.Project, *pagination.Token, error) {
	pt, err := asTx(tx)
	if err != nil {
		return nil, nil, err
	}
	pageSize = pagination.ClampPageSize(pageSize)

	var rows pgx.Rows
	if token == nil {
		rows, err = pt.Query(ctx, `
			SELECT project_id, name, created_at FROM project
			ORDER BY created_at, project_id LIMIT $1
		`, pageSize+1)
	} else {
		rows, err = pt.Query(ctx, `
			SELECT project_id, name, created_at FROM project
			WHERE (created_at, project_id) > ($1, $2)
			ORDER BY created_at, project_id LIMIT $3
		`, token.CreatedAt, token.ID, pageSize+1)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("catalogstore/postgres: list projects: %w", err)
	}
	defer rows.Close()

	var projects []catalogstore.Project
	for rows.Next() {
		var p catalogstore.Project
		if err := rows.Scan(&p.ProjectID, &p.Name, &p.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("catalogstore/postgres: scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *pagination.Token
	if len(projects) > pageSize {
		projects = projects[:pageSize]
		last := projects[len(projects)-1]
		next = &pagination.Token{CreatedAt: last.CreatedAt, ID: uuid.UUID(last.ProjectID)}
	}
	return projects, next, nil
}
