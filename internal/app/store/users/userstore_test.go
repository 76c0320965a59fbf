package userstore_test

import (
	"testing"

	userstore "github.com/kinderlink/kinderlink/internal/app/store/users"
	"github.com/kinderlink/kinderlink/internal/app/system/indexes"
	"github.com/kinderlink/kinderlink/internal/domain/models"
	"github.com/kinderlink/kinderlink/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func strptr(s string) *string { return &s }

func TestStore_Create_Guardian(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user := models.User{
		Name:         "  Budi   Santoso ",
		Email:        "Budi@Example.COM",
		PasswordHash: strptr("$2a$10$fakehash"),
	}

	created, err := store.Create(ctx, user)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.Email != "budi@example.com" {
		t.Errorf("email not normalized: got %q", created.Email)
	}
	if created.Name != "Budi Santoso" {
		t.Errorf("name not normalized: got %q", created.Name)
	}
	if created.Role != models.RoleGuardian {
		t.Errorf("expected default role %q, got %q", models.RoleGuardian, created.Role)
	}
	if created.Children == nil {
		t.Error("expected children slice to be initialized")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestStore_Create_NoCredential(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user := models.User{
		Name:  "No Credential",
		Email: "nocred@example.com",
	}

	if _, err := store.Create(ctx, user); err == nil {
		t.Fatal("expected error when creating user without password or federated identity")
	}
}

func TestStore_Create_InvalidRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user := models.User{
		Email:        "badrole@example.com",
		PasswordHash: strptr("$2a$10$fakehash"),
		Role:         "superuser",
	}

	if _, err := store.Create(ctx, user); err == nil {
		t.Fatal("expected error for invalid role")
	}
}

func TestStore_Create_DuplicateEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	user1 := models.User{
		Email:        "duplicate@example.com",
		PasswordHash: strptr("$2a$10$fakehash"),
	}
	if _, err := store.Create(ctx, user1); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	user2 := models.User{
		Email:        "Duplicate@example.com",
		PasswordHash: strptr("$2a$10$otherhash"),
	}
	if _, err := store.Create(ctx, user2); err != userstore.ErrDuplicateEmail {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestStore_GetByEmail_CaseInsensitive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		Email:        "FindMe@Example.COM",
		PasswordHash: strptr("$2a$10$fakehash"),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	found, err := store.GetByEmail(ctx, "FINDME@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID: got %v, want %v", found.ID, created.ID)
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.GetByID(ctx, primitive.NewObjectID()); err != mongo.ErrNoDocuments {
		t.Errorf("expected mongo.ErrNoDocuments, got %v", err)
	}
}

func TestStore_GetByFederatedID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fid := "google-sub-12345"
	created, err := store.Create(ctx, models.User{
		Name:        "Federated User",
		Email:       "fed@example.com",
		FederatedID: &fid,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	found, err := store.GetByFederatedID(ctx, fid)
	if err != nil {
		t.Fatalf("GetByFederatedID failed: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID: got %v, want %v", found.ID, created.ID)
	}

	if _, err := store.GetByFederatedID(ctx, "unknown-sub"); err != mongo.ErrNoDocuments {
		t.Errorf("expected mongo.ErrNoDocuments for unknown subject, got %v", err)
	}
}

func TestStore_SetPasswordHash(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		Email:        "rehash@example.com",
		PasswordHash: strptr("$2a$10$oldhash"),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.SetPasswordHash(ctx, created.ID, "$2a$10$newhash"); err != nil {
		t.Fatalf("SetPasswordHash failed: %v", err)
	}

	found, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if found.PasswordHash == nil || *found.PasswordHash != "$2a$10$newhash" {
		t.Error("expected password hash to be overwritten")
	}
}

func TestStore_SetFederatedID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		Email:        "merge@example.com",
		PasswordHash: strptr("$2a$10$fakehash"),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.SetFederatedID(ctx, created.ID, "google-sub-777"); err != nil {
		t.Fatalf("SetFederatedID failed: %v", err)
	}

	found, err := store.GetByFederatedID(ctx, "google-sub-777")
	if err != nil {
		t.Fatalf("GetByFederatedID after merge failed: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID: got %v, want %v", found.ID, created.ID)
	}
	if found.PasswordHash == nil {
		t.Error("merge must not drop the password hash")
	}
}

func TestStore_UpdateProfile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		Email:        "profile@example.com",
		PasswordHash: strptr("$2a$10$fakehash"),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	updated, err := store.UpdateProfile(ctx, created.ID, userstore.ProfileUpdate{
		Name:    "Siti Rahma",
		Phone:   "081298765432",
		Address: "Jl. Melati No. 5",
	})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}

	if updated.Name != "Siti Rahma" {
		t.Errorf("Name: got %q", updated.Name)
	}
	if updated.Phone != "081298765432" {
		t.Errorf("Phone: got %q", updated.Phone)
	}
	if updated.Address != "Jl. Melati No. 5" {
		t.Errorf("Address: got %q", updated.Address)
	}

	// Partial update keeps earlier values.
	updated, err = store.UpdateProfile(ctx, created.ID, userstore.ProfileUpdate{Phone: "080000000000"})
	if err != nil {
		t.Fatalf("partial UpdateProfile failed: %v", err)
	}
	if updated.Name != "Siti Rahma" {
		t.Errorf("partial update blanked name: got %q", updated.Name)
	}
	if updated.Phone != "080000000000" {
		t.Errorf("Phone after partial update: got %q", updated.Phone)
	}
}
