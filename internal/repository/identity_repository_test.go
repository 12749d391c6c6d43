package repository

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestGetIdentityByEmailNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIdentityRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM identities").
		WithArgs("nobody@clinic.example").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}))

	identity, err := repo.GetIdentityByEmail("nobody@clinic.example")
	if err != nil {
		t.Fatalf("no rows must not be an error, got %v", err)
	}
	if identity != nil {
		t.Fatalf("expected nil identity, got %+v", identity)
	}
}

func TestGetIdentityByEmailQueryFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIdentityRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM identities").
		WithArgs("doc@clinic.example").
		WillReturnError(errors.New("connection refused"))

	identity, err := repo.GetIdentityByEmail("doc@clinic.example")
	if err == nil {
		t.Fatal("expected a query error to surface")
	}
	if identity != nil {
		t.Fatalf("expected nil identity on failure, got %+v", identity)
	}
}
