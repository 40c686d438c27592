package repository

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pipecraft/pipecraft-api/internal/models"
	"github.com/pipecraft/pipecraft-api/internal/utils"
)

func setEncryptionKey(t *testing.T) {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i * 3)
	}
	t.Setenv("PIPECRAFT_ENC_KEY", base64.StdEncoding.EncodeToString(key))
}

func newConnRepoMock(t *testing.T) (ConnectionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewConnectionRepository(db), mock
}

func TestConnectionCreateEncryptsPassword(t *testing.T) {
	setEncryptionKey(t)
	repo, mock := newConnRepoMock(t)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO pipecraft.connections").
		WithArgs("warehouse", "postgres", "db.internal", 5432, "dw", "svc",
			sqlmock.AnyArg(), true, false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), now, now))

	conn := &models.Connection{
		Name:     "warehouse",
		DBType:   models.DBTypePostgres,
		Host:     "db.internal",
		Port:     5432,
		Database: "dw",
		Username: "svc",
		Password: "secret",
		IsSource: true,
	}
	created, err := repo.Create(conn)
	if err != nil {
		t.Fatal(err)
	}
	if created.ID != 1 {
		t.Errorf("id = %d, want 1", created.ID)
	}
}

func TestConnectionResolveDecryptsPassword(t *testing.T) {
	setEncryptionKey(t)
	repo, mock := newConnRepoMock(t)

	enc, err := utils.EncryptPassword("secret")
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	mock.ExpectQuery("FROM pipecraft.connections").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "db_type", "host", "port", "db_name", "username",
			"password_enc", "is_source", "is_destination", "created_at", "updated_at",
		}).AddRow(int64(1), "warehouse", "postgres", "db.internal", 5432, "dw", "svc", enc, true, false, now, now))

	conn, err := repo.Resolve(1)
	if err != nil {
		t.Fatal(err)
	}
	if conn.Password != "secret" {
		t.Errorf("password = %q, want decrypted secret", conn.Password)
	}
}

func TestConnectionGetNotFound(t *testing.T) {
	repo, mock := newConnRepoMock(t)
	mock.ExpectQuery("FROM pipecraft.connections").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "db_type", "host", "port", "db_name", "username",
			"is_source", "is_destination", "created_at", "updated_at",
		}))

	_, err := repo.Get(99)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
