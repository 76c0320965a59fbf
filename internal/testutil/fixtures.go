package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kinderlink/kinderlink/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateGuardian creates a password-holding guardian with a complete profile
// but no linked children yet.
func (f *Fixtures) CreateGuardian(ctx context.Context, name, email, password string) models.User {
	f.t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		f.t.Fatalf("failed to hash fixture password: %v", err)
	}
	hashStr := string(hash)

	now := time.Now().UTC()
	user := models.User{
		ID:           primitive.NewObjectID(),
		Name:         name,
		Email:        email,
		PasswordHash: &hashStr,
		Phone:        "081234567890",
		Address:      "Jl. Test No. 1",
		Role:         models.RoleGuardian,
		Children:     []primitive.ObjectID{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test guardian: %v", err)
	}
	return user
}

// CreateBareGuardian creates a guardian with only email and password set,
// the state a fresh direct registration leaves behind.
func (f *Fixtures) CreateBareGuardian(ctx context.Context, email, password string) models.User {
	f.t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		f.t.Fatalf("failed to hash fixture password: %v", err)
	}
	hashStr := string(hash)

	now := time.Now().UTC()
	user := models.User{
		ID:           primitive.NewObjectID(),
		Email:        email,
		PasswordHash: &hashStr,
		Role:         models.RoleGuardian,
		Children:     []primitive.ObjectID{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test guardian: %v", err)
	}
	return user
}

// CreateFederatedGuardian creates a guardian backed by an external identity
// with no password.
func (f *Fixtures) CreateFederatedGuardian(ctx context.Context, name, email, federatedID string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:          primitive.NewObjectID(),
		Name:        name,
		Email:       email,
		FederatedID: &federatedID,
		Role:        models.RoleGuardian,
		Children:    []primitive.ObjectID{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test federated guardian: %v", err)
	}
	return user
}

// CreateAdmin creates a test admin user.
func (f *Fixtures) CreateAdmin(ctx context.Context, name, email string) models.User {
	f.t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("admin-secret"), bcrypt.MinCost)
	if err != nil {
		f.t.Fatalf("failed to hash fixture password: %v", err)
	}
	hashStr := string(hash)

	now := time.Now().UTC()
	user := models.User{
		ID:           primitive.NewObjectID(),
		Name:         name,
		Email:        email,
		PasswordHash: &hashStr,
		Role:         models.RoleAdmin,
		Children:     []primitive.ObjectID{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test admin: %v", err)
	}
	return user
}

// CreateChild creates an enrolled child with the given invitation code.
func (f *Fixtures) CreateChild(ctx context.Context, name, code string) models.Child {
	f.t.Helper()

	now := time.Now().UTC()
	child := models.Child{
		ID:             primitive.NewObjectID(),
		Name:           name,
		BirthDate:      time.Date(2020, 3, 14, 0, 0, 0, 0, time.UTC),
		Class:          "Kelas A",
		InvitationCode: code,
		Guardians:      []primitive.ObjectID{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if _, err := f.db.Collection("children").InsertOne(ctx, child); err != nil {
		f.t.Fatalf("failed to create test child: %v", err)
	}
	return child
}

// LinkPair writes both halves of a guardian-child link directly.
func (f *Fixtures) LinkPair(ctx context.Context, userID, childID primitive.ObjectID) {
	f.t.Helper()

	if _, err := f.db.Collection("users").UpdateByID(ctx, userID,
		map[string]any{"$addToSet": map[string]any{"children": childID}}); err != nil {
		f.t.Fatalf("failed to link user side: %v", err)
	}
	if _, err := f.db.Collection("children").UpdateByID(ctx, childID,
		map[string]any{"$addToSet": map[string]any{"guardians": userID}}); err != nil {
		f.t.Fatalf("failed to link child side: %v", err)
	}
}
