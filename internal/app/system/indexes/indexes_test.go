package indexes_test

import (
	"testing"

	"github.com/kinderlink/kinderlink/internal/app/system/indexes"
	"github.com/kinderlink/kinderlink/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func TestEnsureAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// EnsureAll should succeed on a clean database
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("first EnsureAll failed: %v", err)
	}

	// Second call should also succeed (idempotent)
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesUniqueIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	checks := []struct {
		collection string
		index      string
	}{
		{"users", "uniq_users_email"},
		{"users", "uniq_users_federated_id"},
		{"children", "uniq_children_invitation_code"},
	}

	for _, chk := range checks {
		cur, err := db.Collection(chk.collection).Indexes().List(ctx)
		if err != nil {
			t.Fatalf("List indexes on %s failed: %v", chk.collection, err)
		}

		found := false
		for cur.Next(ctx) {
			var idx bson.M
			if err := cur.Decode(&idx); err != nil {
				t.Fatalf("decode index: %v", err)
			}
			if idx["name"] == chk.index {
				found = true
			}
		}
		cur.Close(ctx)

		if !found {
			t.Errorf("expected index %s on %s", chk.index, chk.collection)
		}
	}
}

func TestEnsureAll_DuplicateEmailsRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	users := db.Collection("users")
	if _, err := users.InsertOne(ctx, bson.M{"email": "a@x.com"}); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if _, err := users.InsertOne(ctx, bson.M{"email": "a@x.com"}); err == nil {
		t.Error("expected duplicate email insert to fail")
	}

	// The sparse federated_id index must not collide on absent fields.
	if _, err := users.InsertOne(ctx, bson.M{"email": "b@x.com"}); err != nil {
		t.Errorf("second password-only insert should succeed: %v", err)
	}
}
