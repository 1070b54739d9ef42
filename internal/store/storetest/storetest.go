// Package storetest builds throwaway in-memory stores for tests.
package storetest

import (
	"context"
	"testing"

	"github.com/adityaraj-09/faff-assign/internal/database"
	"github.com/adityaraj-09/faff-assign/internal/models"
	"github.com/adityaraj-09/faff-assign/internal/store"

	"golang.org/x/crypto/bcrypt"
)

func Open(t *testing.T) *store.Store {
	t.Helper()

	db, err := database.Open(database.DriverSQLite, ":memory:", nil)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	return store.New(db)
}

func User(t *testing.T, s *store.Store, name, role string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &models.User{
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func Task(t *testing.T, s *store.Store, requester *models.User, title string) *models.Task {
	t.Helper()

	task := &models.Task{
		Title:       title,
		Status:      models.StatusLogged,
		Priority:    models.PriorityMedium,
		RequesterID: requester.ID,
	}
	if err := s.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("create task %s: %v", title, err)
	}
	return task
}
