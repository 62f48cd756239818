package postgres

import (
	"context"
	"fmt"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/icebergerr"
	"catalog.icecat.io/internal/ids"

	"github.com/jackc/pgx/v5"
)

type SecretRepo struct{}

func NewSecretRepo() SecretRepo { return SecretRepo{} }

func (SecretRepo) Create(ctx context.Context, tx catalogstore.Tx, secret catalogstore.SecretRow) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	_, err = pt.Exec(ctx, `
		INSERT INTO secret (secret_id, ciphertext, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, secret.SecretID, secret.Ciphertext, secret.CreatedAt, secret.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: insert secret: %w", err)
	}
	return nil
}

func (SecretRepo) GetByID(ctx context.Context, tx catalogstore.Tx, id ids.SecretID) (*catalogstore.SecretRow, error) {
	pt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	var row catalogstore.SecretRow
	err = pt.QueryRow(ctx, `
		SELECT secret_id, ciphertext, created_at, updated_at
		FROM secret
		WHERE secret_id = $1
	`, id).Scan(&row.SecretID, &row.Ciphertext, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, icebergerr.New(icebergerr.KindSecretReadFailed, "secret not found")
		}
		return nil, fmt.Errorf("catalogstore/postgres: get secret: %w", err)
	}
	return &row, nil
}

func (SecretRepo) Delete(ctx context.Context, tx catalogstore.Tx, id ids.SecretID) error {
	pt, err := asTx(tx)
	if err != nil {
		return err
	}
	tag, err := pt.Exec(ctx, `DELETE FROM secret WHERE secret_id = $1`, id)
	if err != nil {
		return fmt.Errorf("catalogstore/postgres: delete secret: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return icebergerr.New(icebergerr.KindSecretReadFailed, "secret not found")
	}
	return nil
}
