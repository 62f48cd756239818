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

type RoleRepo struct{}

func NewRoleRepo() RoleRepo { return RoleRepo{} }

func (RoleRepo) Create(ctx context.Context, tx catalogstore.Tx, r catalogstore.Role) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `
		INSERT INTO role (role_id, project_id, name, external_id, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
	`, r.RoleID, r.ProjectID, r.Name, r.ExternalID, r.Description)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: create role: %w", err)
	}
	return nil
}

func (RoleRepo) Get(ctx context.Context, tx catalogstore.Tx, id ids.RoleID) (*catalogstore.Role, error) {
	pt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	var r catalogstore.Role
	row := pt.QueryRow(ctx, `
		SELECT role_id, project_id, name, external_id, description, created_at, updated_at
		FROM role WHERE role_id = $1
	`, id)
	if err := row.Scan(&r.RoleID, &r.ProjectID, &r.Name, &r.ExternalID, &r.Description, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, fmt.Errorf("catalogstore/postgres: get role: %w", err)
	}
	return &r, nil
}

func (RoleRepo) Delete(ctx context.Context, tx catalogstore.Tx, id ids.RoleID) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `DELETE FROM role WHERE role_id = $1`, id)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: delete role: %w", err)
	}
	return nil
}

func (RoleRepo) Rename(ctx context.Context, tx catalogstore.Tx, id ids.RoleID, name string) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `UPDATE role SET name = $2, updated_at = now() WHERE role_id = $1`, id, name)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: rename role: %w", err)
	}
	return nil
}

func (RoleRepo) List(ctx context.Context, tx catalogstore.Tx, project ids.ProjectID, pageSize int, token *pagination.Token) ([]catalogstore.Role, *pagination.Token, error) {
	pt, err := asTx(tx)
	if err != nil {
		return nil, nil, err
	}
	pageSize = pagination.ClampPageSize(pageSize)

	var rows pgx.Rows
	if token == nil {
		rows, err = pt.Query(ctx, `
			SELECT role_id, project_id, name, external_id, description, created_at, updated_at
			FROM role WHERE project_id = $1
			ORDER BY created_at, role_id LIMIT $2
		`, project, pageSize+1)
	} else {
		rows, err = pt.Query(ctx, `
			SELECT role_id, project_id, name, external_id, description, created_at, updated_at
			FROM role WHERE project_id = $1 AND (created_at, role_id) > ($2, $3)
			ORDER BY created_at, role_id LIMIT $4
		`, project, token.CreatedAt, token.ID, pageSize+1)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("catalogstore/postgres: list roles: %w", err)
	}
	defer rows.Close()

	var roles []catalogstore.Role
	for rows.Next() {
		var r catalogstore.Role
		if err := rows.Scan(&r.RoleID, &r.ProjectID, &r.Name, &r.ExternalID, &r.Description, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, nil, fmt.Errorf("catalogstore/postgres: scan role: %w", err)
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *pagination.Token
	if len(roles) > pageSize {
		roles = roles[:pageSize]
		last := roles[len(roles)-1]
		next = &pagination.Token{CreatedAt: last.CreatedAt, ID: uuid.UUID(last.RoleID)}
	}
	return roles, next, nil
}
