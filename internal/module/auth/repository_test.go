package auth

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/simp-lee/ftthadmin/internal/domain"
)

// setupTestDB creates an in-memory SQLite database with the auth tables.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&domain.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	ctx := context.Background()

	user := &domain.User{Name: "Operator", Email: "noc@example.net", PasswordHash: "x"}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if user.ID == 0 {
		t.Fatal("expected non-zero ID after Create")
	}

	byID, err := repo.GetByID(ctx, user.ID)
	if err != nil || byID.Email != "noc@example.net" {
		t.Fatalf("GetByID = %+v, %v", byID, err)
	}
	byEmail, err := repo.GetByEmail(ctx, "noc@example.net")
	if err != nil || byEmail.ID != user.ID {
		t.Fatalf("GetByEmail = %+v, %v", byEmail, err)
	}
	if _, err := repo.GetByEmail(ctx, "nobody@example.net"); !domain.IsNotFound(err) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, &domain.User{Name: "A", Email: "dup@example.net"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := repo.Create(ctx, &domain.User{Name: "B", Email: "dup@example.net"})
	if !domain.IsAlreadyExists(err) {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
}
