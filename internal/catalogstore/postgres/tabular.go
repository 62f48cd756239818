package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/ids"
	"catalog.icecat.io/internal/pagination"
)

type TabularRepo struct{}

func NewTabularRepo() TabularRepo { return TabularRepo{} }

const tabularColumns = `
	tabular_id, namespace_id, kind, name, metadata_location, location,
	protected, deleted_at, cleanup_task_id, created_at, updated_at`

func scanTabular(row pgx.Row) (*catalogstore.Tabular, error) {
	var t catalogstore.Tabular
	err := row.Scan(
		&t.TabularID, &t.NamespaceID, &t.Kind, &t.Name, &t.MetadataLocation, &t.Location,
		&t.Protected, &t.DeletedAt, &t.CleanupTaskID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (TabularRepo) Create(ctx context.Context, tx catalogstore.Tx, t catalogstore.Tabular) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `
		INSERT INTO tabular (tabular_id, namespace_id, kind, name, metadata_location, location, protected, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
	`, t.TabularID, t.NamespaceID, t.Kind, t.Name, t.MetadataLocation, t.Location, t.Protected)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: create tabular: %w", err)
	}
	return nil
}

func (TabularRepo) Get(ctx context.Context, tx catalogstore.Tx, id ids.TabularID) (*catalogstore.Tabular, error) {
	pt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	row := pt.QueryRow(ctx, `SELECT `+tabularColumns+` FROM tabular WHERE tabular_id = $1`, id)
	t, err := scanTabular(row)
	if err != nil {
		return nil, fmt.Errorf("catalogstore/postgres: get tabular: %w", err)
	}
	return t, nil
}

func (TabularRepo) GetByName(ctx context.Context, tx catalogstore.Tx, namespace ids.NamespaceID, kind catalogstore.TabularKind, name string) (*catalogstore.Tabular, error) {
	pt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	row := pt.QueryRow(ctx, `
		SELECT `+tabularColumns+` FROM tabular
		WHERE namespace_id = $1 AND kind = $2 AND name = $3 AND deleted_at IS NULL
	`, namespace, kind, name)
	t, err := scanTabular(row)
	if err != nil {
		return nil, fmt.Errorf("catalogstore/postgres: get tabular by name: %w", err)
	}
	return t, nil
}

// LockForCommit holds a row-level write lock for the remainder of tx, the
// mechanism the commit state machine relies on to serialize concurrent
// commits against the same table.
func (TabularRepo) LockForCommit(ctx context.Context, tx catalogstore.Tx, id ids.TabularID) (*catalogstore.Tabular, error) {
	pt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	row := pt.QueryRow(ctx, `SELECT `+tabularColumns+` FROM tabular WHERE tabular_id = $1 FOR UPDATE`, id)
	t, err := scanTabular(row)
	if err != nil {
		return nil, fmt.Errorf("catalogstore/postgres: lock tabular for commit: %w", err)
	}
	return t, nil
}

func (TabularRepo) SetMetadataLocation(ctx context.Context, tx catalogstore.Tx, id ids.TabularID, location string) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `
		UPDATE tabular SET metadata_location = $2, updated_at = now() WHERE tabular_id = $1
	`, id, location)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: set metadata location: %w", err)
	}
	return nil
}

func (TabularRepo) Rename(ctx context.Context, tx catalogstore.Tx, id ids.TabularID, namespace ids.NamespaceID, name string) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `
		UPDATE tabular SET namespace_id = $2, name = $3, updated_at = now() WHERE tabular_id = $1
	`, id, namespace, name)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: rename tabular: %w", err)
	}
	return nil
}

func (TabularRepo) SoftDelete(ctx context.Context, tx catalogstore.Tx, id ids.TabularID, cleanupTask *ids.TaskID) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `
		UPDATE tabular SET deleted_at = now(), cleanup_task_id = $2, updated_at = now() WHERE tabular_id = $1
	`, id, cleanupTask)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: soft delete tabular: %w", err)
	}
	return nil
}

// Undrop reverses a soft-delete. Cancelling the pending expiration task
// is the caller's responsibility via TaskRepo.Cancel; this method only
// clears the row state.
func (TabularRepo) Undrop(ctx context.Context, tx catalogstore.Tx, id ids.TabularID) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `
		UPDATE tabular SET deleted_at = NULL, cleanup_task_id = NULL, updated_at = now() WHERE tabular_id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: undrop tabular: %w", err)
	}
	return nil
}

func (TabularRepo) HardDelete(ctx context.Context, tx catalogstore.Tx, id ids.TabularID) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `DELETE FROM tabular WHERE tabular_id = $1`, id)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: hard delete tabular: %w", err)
	}
	return nil
}

func (TabularRepo) List(ctx context.Context, tx catalogstore.Tx, namespace ids.NamespaceID, kind catalogstore.TabularKind, flags catalogstore.TabularListFlags, pageSize int, token *pagination.Token) ([]catalogstore.Tabular, *pagination.Token, error) {
	pt, err := asTx(tx)
	if err != nil {
		return nil, nil, err
	}
	pageSize = pagination.ClampPageSize(pageSize)

	var visibility []string
	if flags.Has(catalogstore.ListActive) {
		visibility = append(visibility, "(deleted_at IS NULL AND metadata_location IS NOT NULL)")
	}
	if flags.Has(catalogstore.ListSoftDeleted) {
		visibility = append(visibility, "deleted_at IS NOT NULL")
	}
	if flags.Has(catalogstore.ListStaged) {
		visibility = append(visibility, "(deleted_at IS NULL AND metadata_location IS NULL)")
	}
	if len(visibility) == 0 {
		visibility = []string{"(deleted_at IS NULL AND metadata_location IS NOT NULL)"}
	}
	visibilityClause := "(" + strings.Join(visibility, " OR ") + ")"

	var rows pgx.Rows
	if token == nil {
		rows, err = pt.Query(ctx, `
			SELECT `+tabularColumns+` FROM tabular
			WHERE namespace_id = $1 AND kind = $2 AND `+visibilityClause+`
			ORDER BY created_at, tabular_id LIMIT $3
		`, namespace, kind, pageSize+1)
	} else {
		rows, err = pt.Query(ctx, `
			SELECT `+tabularColumns+` FROM tabular
			WHERE namespace_id = $1 AND kind = $2 AND `+visibilityClause+`
			  AND (created_at, tabular_id) > ($3, $4)
			ORDER BY created_at, tabular_id LIMIT $5
		`, namespace, kind, token.CreatedAt, token.ID, pageSize+1)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("catalogstore/postgres: list tabulars: %w", err)
	}
	defer rows.Close()

	var tabulars []catalogstore.Tabular
	for rows.Next() {
		t, err := scanTabular(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("catalogstore/postgres: scan tabular: %w", err)
		}
		tabulars = append(tabulars, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *pagination.Token
	if len(tabulars) > pageSize {
		tabulars = tabulars[:pageSize]
		last := tabulars[len(tabulars)-1]
		next = &pagination.Token{CreatedAt: last.CreatedAt, ID: uuid.UUID(last.TabularID)}
	}
	return tabulars, next, nil
}
