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

type NamespaceRepo struct{}

func NewNamespaceRepo() NamespaceRepo { return NamespaceRepo{} }

func (NamespaceRepo) Create(ctx context.Context, tx catalogstore.Tx, n catalogstore.Namespace) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `
		INSERT INTO namespace (namespace_id, warehouse_id, name_parts, parent_namespace_id, properties, protected, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, n.NamespaceID, n.WarehouseID, n.NameParts, n.ParentNamespaceID, n.Properties, n.Protected)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: create namespace: %w", err)
	}
	return nil
}

const namespaceColumns = `
	namespace_id, warehouse_id, name_parts, parent_namespace_id, properties, protected, created_at`

func scanNamespace(row pgx.Row) (*catalogstore.Namespace, error) {
	var n catalogstore.Namespace
	if err := row.Scan(&n.NamespaceID, &n.WarehouseID, &n.NameParts, &n.ParentNamespaceID, &n.Properties, &n.Protected, &n.CreatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

func (NamespaceRepo) Get(ctx context.Context, tx catalogstore.Tx, id ids.NamespaceID) (*catalogstore.Namespace, error) {
	pt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	row := pt.QueryRow(ctx, `SELECT `+namespaceColumns+` FROM namespace WHERE namespace_id = $1`, id)
	n, err := scanNamespace(row)
	if err != nil {
		return nil, fmt.Errorf("catalogstore/postgres: get namespace: %w", err)
	}
	return n, nil
}

// GetByPath resolves a namespace by its full dotted path within a
// warehouse. Invariant I2 requires the (warehouse_id, name_parts) pair to
// be unique, enforced at the database level by a unique index.
func (NamespaceRepo) GetByPath(ctx context.Context, tx catalogstore.Tx, warehouse ids.WarehouseID, nameParts []string) (*catalogstore.Namespace, error) {
	pt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	row := pt.QueryRow(ctx, `
		SELECT `+namespaceColumns+` FROM namespace
		WHERE warehouse_id = $1 AND name_parts = $2
	`, warehouse, nameParts)
	n, err := scanNamespace(row)
	if err != nil {
		return nil, fmt.Errorf("catalogstore/postgres: get namespace by path: %w", err)
	}
	return n, nil
}

func (NamespaceRepo) Delete(ctx context.Context, tx catalogstore.Tx, id ids.NamespaceID) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `DELETE FROM namespace WHERE namespace_id = $1`, id)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: delete namespace: %w", err)
	}
	return nil
}

// MoveSubtree reparents id and recomputes the NameParts of every
// descendant in the same statement, using a recursive CTE so the rename
// and every descendant's path update commit atomically.
func (NamespaceRepo) MoveSubtree(ctx context.Context, tx catalogstore.Tx, id ids.NamespaceID, newParent *ids.NamespaceID) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}

	var newParentParts []string
	if newParent != nil {
		row := pt.QueryRow(ctx, `SELECT name_parts FROM namespace WHERE namespace_id = $1`, *newParent)
		if err := row.Scan(&newParentParts); err != nil {
			return fmt.Errorf("catalogstore/postgres: resolve new parent: %w", err)
		}
	}

	var ownName []string
	if err := pt.QueryRow(ctx, `SELECT name_parts FROM namespace WHERE namespace_id = $1`, id).Scan(&ownName); err != nil {
		return fmt.Errorf("catalogstore/postgres: resolve moved namespace: %w", err)
	}
	leaf := ownName[len(ownName)-1]
	newOwnParts := append(append([]string{}, newParentParts...), leaf)

	_, err = pt.Exec(ctx, `
		WITH RECURSIVE subtree AS (
			SELECT namespace_id, name_parts FROM namespace WHERE namespace_id = $1
			UNION ALL
			SELECT n.namespace_id, n.name_parts
			FROM namespace n
			JOIN subtree s ON n.parent_namespace_id = s.namespace_id
		)
		UPDATE namespace n
		SET name_parts = $2 || n.name_parts[cardinality($3)+1:cardinality(n.name_parts)]
		FROM subtree s
		WHERE n.namespace_id = s.namespace_id
	`, id, newOwnParts, ownName)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: recompute descendant paths: %w", err)
	}

	_, err = pt.Exec(ctx, `UPDATE namespace SET parent_namespace_id = $2 WHERE namespace_id = $1`, id, newParent)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: reparent namespace: %w", err)
	}
	return nil
}

func (NamespaceRepo) UpdateProperties(ctx context.Context, tx catalogstore.Tx, id ids.NamespaceID, properties map[string]string) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `UPDATE namespace SET properties = $2 WHERE namespace_id = $1`, id, properties)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: update namespace properties: %w", err)
	}
	return nil
}

func (NamespaceRepo) ListChildren(ctx context.Context, tx catalogstore.Tx, parent *ids.NamespaceID, warehouse ids.WarehouseID, pageSize int, token *pagination.Token) ([]catalogstore.Namespace, *pagination.Token, error) {
	pt, err := asTx(tx)
	if err != nil {
		return nil, nil, err
	}
	pageSize = pagination.ClampPageSize(pageSize)

	var rows pgx.Rows
	switch {
	case token == nil:
		rows, err = pt.Query(ctx, `
			SELECT `+namespaceColumns+` FROM namespace
			WHERE warehouse_id = $1 AND parent_namespace_id IS NOT DISTINCT FROM $2
			ORDER BY created_at, namespace_id LIMIT $3
		`, warehouse, parent, pageSize+1)
	default:
		rows, err = pt.Query(ctx, `
			SELECT `+namespaceColumns+` FROM namespace
			WHERE warehouse_id = $1 AND parent_namespace_id IS NOT DISTINCT FROM $2
			  AND (created_at, namespace_id) > ($3, $4)
			ORDER BY created_at, namespace_id LIMIT $5
		`, warehouse, parent, token.CreatedAt, token.ID, pageSize+1)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("catalogstore/postgres: list namespaces: %w", err)
	}
	defer rows.Close()

	var namespaces []catalogstore.Namespace
	for rows.Next() {
		n, err := scanNamespace(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("catalogstore/postgres: scan namespace: %w", err)
		}
		namespaces = append(namespaces, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *pagination.Token
	if len(namespaces) > pageSize {
		namespaces = namespaces[:pageSize]
		last := namespaces[len(namespaces)-1]
		next = &pagination.Token{CreatedAt: last.CreatedAt, ID: uuid.UUID(last.NamespaceID)}
	}
	return namespaces, next, nil
}
