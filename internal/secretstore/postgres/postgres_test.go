package postgres

import (
	"context"
	"errors"
	"testing"

	"catalog.icecat.io/internal/catalogstore"
	"catalog.icecat.io/internal/icebergerr"
	"catalog.icecat.io/internal/ids"
)

type fakeTx struct{}

func (fakeTx) Commit(ctx context.Context) error   { return nil }
func (fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeTransactor struct{}

func (fakeTransactor) BeginWrite(ctx context.Context) (catalogstore.Tx, error) { return fakeTx{}, nil }
func (fakeTransactor) BeginRead(ctx context.Context) (catalogstore.Tx, error)  { return fakeTx{}, nil }

type fakeSecretRepo struct {
	rows map[ids.SecretID]catalogstore.SecretRow
}

func newFakeSecretRepo() *fakeSecretRepo {
	return &fakeSecretRepo{rows: make(map[ids.SecretID]catalogstore.SecretRow)}
}

func (r *fakeSecretRepo) Create(ctx context.Context, tx catalogstore.Tx, secret catalogstore.SecretRow) error {
	r.rows[secret.SecretID] = secret
	return nil
}

func (r *fakeSecretRepo) GetByID(ctx context.Context, tx catalogstore.Tx, id ids.SecretID) (*catalogstore.SecretRow, error) {
	row, ok := r.rows[id]
	if !ok {
		return nil, icebergerr.New(icebergerr.KindSecretReadFailed, "secret not found")
	}
	return &row, nil
}

func (r *fakeSecretRepo) Delete(ctx context.Context, tx catalogstore.Tx, id ids.SecretID) error {
	if _, ok := r.rows[id]; !ok {
		return icebergerr.New(icebergerr.KindSecretReadFailed, "secret not found")
	}
	delete(r.rows, id)
	return nil
}

func TestCreateThenGetByIDRoundTripsPlaintext(t *testing.T) {
	repo := newFakeSecretRepo()
	store, err := New(fakeTransactor{}, repo, "test-pepper")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	id, err := store.Create(context.Background(), []byte("s3-secret-access-key"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	row := repo.rows[mustParse(t, id)]
	if string(row.Ciphertext) == "s3-secret-access-key" {
		t.Fatal("ciphertext must not equal plaintext")
	}

	value, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if string(value) != "s3-secret-access-key" {
		t.Fatalf("value = %q, want original plaintext", value)
	}
}

func TestGetByIDWithWrongPepperFails(t *testing.T) {
	repo := newFakeSecretRepo()
	writer, err := New(fakeTransactor{}, repo, "correct-pepper")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id, err := writer.Create(context.Background(), []byte("top-secret"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	reader, err := New(fakeTransactor{}, repo, "wrong-pepper")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = reader.GetByID(context.Background(), id)
	if err == nil {
		t.Fatal("expected GetByID with the wrong pepper to fail")
	}
	var catErr *icebergerr.CatalogError
	if !errors.As(err, &catErr) || catErr.Kind != icebergerr.KindSecretReadFailed {
		t.Fatalf("expected KindSecretReadFailed, got %v", err)
	}
}

func TestDeleteRemovesTheRow(t *testing.T) {
	repo := newFakeSecretRepo()
	store, err := New(fakeTransactor{}, repo, "test-pepper")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id, err := store.Create(context.Background(), []byte("gone-soon"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.GetByID(context.Background(), id); err == nil {
		t.Fatal("expected GetByID after Delete to fail")
	}
}

func TestSealProducesDistinctCiphertextEachTime(t *testing.T) {
	repo := newFakeSecretRepo()
	store, err := New(fakeTransactor{}, repo, "test-pepper")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err := store.seal([]byte("same-plaintext"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	b, err := store.seal([]byte("same-plaintext"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if string(a) == string(b) {
		t.Fatal("expected a fresh random nonce to produce distinct ciphertext on each call")
	}
}

func mustParse(t *testing.T, s string) ids.SecretID {
	t.Helper()
	id, err := ids.ParseSecretID(s)
	if err != nil {
		t.Fatalf("ParseSecretID(%q): %v", s, err)
	}
	return id
}
