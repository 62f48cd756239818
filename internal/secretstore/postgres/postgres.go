// Package postgres implements secretstore.Store against the catalog's own
// database: secrets are sealed with AES-256-GCM under a key derived from
// an operator-supplied pepper via bcrypt, then persisted through
// catalogstore.SecretRepo alongside the rest of the catalog's rows.
package postgres

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/icebergerr"
	"catalog.icecat.io/internal/ids"

	"golang.org/x/crypto/bcrypt"
)

// Store seals secret values under a key derived from Pepper before
// handing them to Repo. Pepper is an operator secret distinct from any
// value this Store stores: losing it does not compromise row-level
// database access the way a plaintext secrets table would.
type Store struct {
	Txr   catalogstore.Transactor
	Repo  catalogstore.SecretRepo
	block cipher.AEAD
}

// New derives a 256-bit AEAD key from pepper via bcrypt and returns a
// Store ready to seal and open secrets. bcrypt's cost factor makes key
// derivation deliberately slow: deriving the AES key costs an attacker
// who only has the pepper, not the database, real compute, not a single
// SHA-256 call.
func New(txr catalogstore.Transactor, repo catalogstore.SecretRepo, pepper string) (*Store, error) {
	// bcrypt truncates input at 72 bytes and returns a fixed-size digest
	// regardless of pepper length; hash it through SHA-256 first so an
	// arbitrarily long pepper still contributes every byte to the key.
	salted := sha256.Sum256([]byte(pepper))
	hashed, err := bcrypt.GenerateFromPassword(salted[:], bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("secretstore/postgres: derive key from pepper: %w", err)
	}
	key := sha256.Sum256(hashed)

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("secretstore/postgres: new aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secretstore/postgres: new gcm aead: %w", err)
	}
	return &Store{Txr: txr, Repo: repo, block: aead}, nil
}

func (s *Store) seal(value []byte) ([]byte, error) {
	nonce := make([]byte, s.block.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("secretstore/postgres: read nonce: %w", err)
	}
	return s.block.Seal(nonce, nonce, value, nil), nil
}

func (s *Store) open(sealed []byte) ([]byte, error) {
	nonceSize := s.block.NonceSize()
	if len(sealed) < nonceSize {
		return nil, icebergerr.New(icebergerr.KindSecretReadFailed, "sealed secret shorter than nonce")
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	value, err := s.block.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, icebergerr.Wrap(icebergerr.KindSecretReadFailed, "open sealed secret", err)
	}
	return value, nil
}

func (s *Store) Create(ctx context.Context, value []byte) (string, error) {
	ciphertext, err := s.seal(value)
	if err != nil {
		return "", err
	}
	tx, err := s.Txr.BeginWrite(ctx)
	if err != nil {
		return "", icebergerr.Wrap(icebergerr.KindBackendUnavailable, "begin write transaction", err)
	}
	defer tx.Rollback(ctx)

	id := ids.NewSecretID()
	now := time.Now().UTC()
	row := catalogstore.SecretRow{SecretID: id, Ciphertext: ciphertext, CreatedAt: now, UpdatedAt: now}
	if err := s.Repo.Create(ctx, tx, row); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", icebergerr.Wrap(icebergerr.KindBackendUnavailable, "commit secret creation", err)
	}
	return id.String(), nil
}

func (s *Store) GetByID(ctx context.Context, id string) ([]byte, error) {
	secretID, err := ids.ParseSecretID(id)
	if err != nil {
		return nil, icebergerr.Wrap(icebergerr.KindSecretReadFailed, "invalid secret id", err)
	}
	tx, err := s.Txr.BeginRead(ctx)
	if err != nil {
		return nil, icebergerr.Wrap(icebergerr.KindBackendUnavailable, "begin read transaction", err)
	}
	defer tx.Rollback(ctx)

	row, err := s.Repo.GetByID(ctx, tx, secretID)
	if err != nil {
		return nil, err
	}
	return s.open(row.Ciphertext)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	secretID, err := ids.ParseSecretID(id)
	if err != nil {
		return icebergerr.Wrap(icebergerr.KindSecretReadFailed, "invalid secret id", err)
	}
	tx, err := s.Txr.BeginWrite(ctx)
	if err != nil {
		return icebergerr.Wrap(icebergerr.KindBackendUnavailable, "begin write transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := s.Repo.Delete(ctx, tx, secretID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
