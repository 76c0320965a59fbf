package onboarding_test

import (
	"sync"
	"testing"
	"time"

	userstore "github.com/kinderlink/kinderlink/internal/app/store/users"
	"github.com/kinderlink/kinderlink/internal/app/system/indexes"
	"github.com/kinderlink/kinderlink/internal/app/system/apperr"
	"github.com/kinderlink/kinderlink/internal/app/system/linking"
	"github.com/kinderlink/kinderlink/internal/app/system/onboarding"
	"github.com/kinderlink/kinderlink/internal/app/system/token"
	"github.com/kinderlink/kinderlink/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newService(t *testing.T, db *mongo.Database) (*onboarding.Service, *token.Issuer) {
	t.Helper()
	iss, err := token.NewIssuer("onboarding-test-secret", time.Hour, 10*time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer failed: %v", err)
	}
	users := userstore.New(db)
	linker := linking.New(db.Client(), db, zap.NewNop())
	return onboarding.New(users, linker, iss, zap.NewNop()), iss
}

func TestRegister_NewAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, iss := newService(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	sess, err := svc.Register(ctx, "Baru@Example.com", "rahasia123")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if sess.User.Email != "baru@example.com" {
		t.Errorf("email not normalized: got %q", sess.User.Email)
	}
	if sess.User.IsComplete() {
		t.Error("fresh registration must be incomplete")
	}
	if !sess.User.HasPassword() {
		t.Error("expected password hash on account")
	}

	// The token must resolve back to this user.
	uid, err := iss.VerifySession(sess.Token)
	if err != nil {
		t.Fatalf("VerifySession failed: %v", err)
	}
	if uid != sess.User.ID.Hex() {
		t.Errorf("token subject: got %q, want %q", uid, sess.User.ID.Hex())
	}
}

func TestRegister_Validation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := newService(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := svc.Register(ctx, "not-an-email", "short")
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRegister_CompleteAccountConflicts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	svc, _ := newService(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	done := fixtures.CreateGuardian(ctx, "Ibu Sari", "sari@example.com", "rahasia123")
	child := fixtures.CreateChild(ctx, "Putri", "#RG01")
	fixtures.LinkPair(ctx, done.ID, child.ID)

	_, err := svc.Register(ctx, "sari@example.com", "newpassword1")
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Errorf("expected conflict for finished account, got %v", err)
	}
}

func TestRegister_ResumesIncompleteAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	svc, _ := newService(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	stub := fixtures.CreateBareGuardian(ctx, "stuck@example.com", "oldpassword1")

	sess, err := svc.Register(ctx, "stuck@example.com", "newpassword1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if sess.User.ID != stub.ID {
		t.Errorf("expected takeover of account %v, got %v", stub.ID, sess.User.ID)
	}

	// Old password no longer works, new one does.
	if _, err := svc.Login(ctx, "stuck@example.com", "oldpassword1"); err == nil {
		t.Error("old password should be rejected after re-registration")
	}
	if _, err := svc.Login(ctx, "stuck@example.com", "newpassword1"); err != nil {
		t.Errorf("new password should work: %v", err)
	}
}

func TestRegister_ConcurrentSameEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc, _ := newService(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// The unique email index is what arbitrates the race.
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	results := make(chan error, 2)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Register(ctx, "race@example.com", "rahasia123")
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case apperr.KindOf(err) == apperr.KindConflict:
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Errorf("expected one winner and one conflict, got %d wins / %d conflicts", wins, conflicts)
	}

	count, err := db.Collection("users").CountDocuments(ctx, map[string]any{"email": "race@example.com"})
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly one account for the email, got %d", count)
	}
}

func TestLogin_FailureModesLookAlike(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	svc, _ := newService(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateGuardian(ctx, "Ibu Sari", "sari@example.com", "rahasia123")
	fixtures.CreateFederatedGuardian(ctx, "Ibu Wati", "wati@example.com", "google-sub-1")

	cases := []struct {
		name, email, password string
	}{
		{"unknown email", "ghost@example.com", "whatever123"},
		{"wrong password", "sari@example.com", "wrongpass123"},
		{"federated-only account", "wati@example.com", "anything123"},
	}

	var messages []string
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tc.email, tc.password)
			if apperr.KindOf(err) != apperr.KindUnauthorized {
				t.Fatalf("expected unauthorized, got %v", err)
			}
			messages = append(messages, err.Error())
		})
	}

	// All denials must read identically.
	for i := 1; i < len(messages); i++ {
		if messages[i] != messages[0] {
			t.Errorf("denial messages differ: %q vs %q", messages[0], messages[i])
		}
	}
}

func TestLogin_Succeeds(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	svc, _ := newService(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateGuardian(ctx, "Ibu Sari", "Sari@Example.com", "rahasia123")

	sess, err := svc.Login(ctx, "SARI@example.com", "rahasia123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if sess.Token == "" {
		t.Error("expected session token")
	}
}

func TestCompleteProfile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	svc, _ := newService(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	stub := fixtures.CreateBareGuardian(ctx, "baru@example.com", "rahasia123")
	fixtures.CreateChild(ctx, "Putri", "#CP01")

	user, child, err := svc.CompleteProfile(ctx, stub.ID, onboarding.ProfileInput{
		Name:           "Ibu Baru",
		Phone:          "081200000002",
		Address:        "Jl. Kenanga No. 3",
		InvitationCode: "#cp01",
	})
	if err != nil {
		t.Fatalf("CompleteProfile failed: %v", err)
	}

	if !user.IsComplete() {
		t.Error("expected account to be complete after profile + link")
	}
	if !child.HasGuardian(stub.ID) {
		t.Error("expected guardian on child side")
	}
}

func TestCompleteProfile_BadCodeLeavesAccountUntouched(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	svc, _ := newService(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	stub := fixtures.CreateBareGuardian(ctx, "baru@example.com", "rahasia123")
	users := userstore.New(db)

	_, _, err := svc.CompleteProfile(ctx, stub.ID, onboarding.ProfileInput{
		Name:           "Ibu Baru",
		Phone:          "081200000002",
		Address:        "Jl. Kenanga No. 3",
		InvitationCode: "#WRNG",
	})
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not-found for bad code, got %v", err)
	}

	// The whole step fails as one unit: no profile field may land.
	saved, err := users.GetByID(ctx, stub.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if saved.Name != "" || saved.Phone != "" || saved.Address != "" {
		t.Errorf("bad code must not write the profile, got name=%q phone=%q address=%q",
			saved.Name, saved.Phone, saved.Address)
	}
	if len(saved.Children) != 0 {
		t.Errorf("bad code must not link a child, got %d", len(saved.Children))
	}
}

func TestCompleteProfile_AlreadyLinkedLeavesAccountUntouched(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	svc, _ := newService(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	done := fixtures.CreateGuardian(ctx, "Ibu Sari", "sari@example.com", "rahasia123")
	child := fixtures.CreateChild(ctx, "Putri", "#CP02")
	fixtures.LinkPair(ctx, done.ID, child.ID)
	users := userstore.New(db)

	_, _, err := svc.CompleteProfile(ctx, done.ID, onboarding.ProfileInput{
		Name:           "Nama Lain",
		Phone:          "081299999999",
		Address:        "Jl. Lain No. 9",
		InvitationCode: "#CP02",
	})
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict for re-linking the same child, got %v", err)
	}

	saved, err := users.GetByID(ctx, done.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if saved.Name != "Ibu Sari" {
		t.Errorf("rejected step must not overwrite the profile, got name %q", saved.Name)
	}
}

func TestResolveFederated_LookupOrder(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	svc, _ := newService(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	known := fixtures.CreateFederatedGuardian(ctx, "Ibu Wati", "wati@example.com", "google-sub-10")
	byEmail := fixtures.CreateGuardian(ctx, "Ibu Sari", "sari@example.com", "rahasia123")

	// 1) Subject hit wins.
	res, err := svc.ResolveFederated(ctx, onboarding.FederatedProfile{
		SubjectID: "google-sub-10", Email: "different@example.com", Name: "Ibu Wati",
	})
	if err != nil {
		t.Fatalf("ResolveFederated failed: %v", err)
	}
	if res.Session == nil || res.Session.User.ID != known.ID {
		t.Error("expected subject lookup to resolve the federated account")
	}

	// 2) Email match adopts the identity.
	res, err = svc.ResolveFederated(ctx, onboarding.FederatedProfile{
		SubjectID: "google-sub-11", Email: "sari@example.com", Name: "Ibu Sari",
	})
	if err != nil {
		t.Fatalf("ResolveFederated failed: %v", err)
	}
	if res.Session == nil || res.Session.User.ID != byEmail.ID {
		t.Fatal("expected email lookup to resolve the password account")
	}
	if res.Session.User.FederatedID == nil || *res.Session.User.FederatedID != "google-sub-11" {
		t.Error("expected federated id to be attached on email match")
	}

	// 3) Full miss produces a provisional token, not an account.
	res, err = svc.ResolveFederated(ctx, onboarding.FederatedProfile{
		SubjectID: "google-sub-12", Email: "new@example.com", Name: "Orang Baru",
	})
	if err != nil {
		t.Fatalf("ResolveFederated failed: %v", err)
	}
	if res.Session != nil {
		t.Error("unknown person must not get a session")
	}
	if res.ProvisionalToken == "" {
		t.Fatal("expected provisional token for unknown person")
	}

	count, err := db.Collection("users").CountDocuments(ctx, map[string]any{"email": "new@example.com"})
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if count != 0 {
		t.Error("provisional resolution must not create an account")
	}
}

func TestCompleteFederatedRegistration(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	svc, iss := newService(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateChild(ctx, "Putri", "#FR01")

	provisional, err := iss.IssueProvisional(token.ProvisionalClaims{
		FederatedID: "google-sub-20",
		Email:       "baru@example.com",
		Name:        "Ibu Baru",
	})
	if err != nil {
		t.Fatalf("IssueProvisional failed: %v", err)
	}

	sess, child, err := svc.CompleteFederatedRegistration(ctx, onboarding.FederatedRegistration{
		ProvisionalToken: provisional,
		Phone:            "081200000003",
		Address:          "Jl. Mawar No. 4",
		InvitationCode:   "#FR01",
	})
	if err != nil {
		t.Fatalf("CompleteFederatedRegistration failed: %v", err)
	}

	if !sess.User.IsComplete() {
		t.Error("expected a complete account")
	}
	if sess.User.Name != "Ibu Baru" {
		t.Errorf("expected name from provisional claims, got %q", sess.User.Name)
	}
	if !child.HasGuardian(sess.User.ID) {
		t.Error("expected guardian on child side")
	}
	if sess.Token == "" {
		t.Error("expected session token")
	}
}

func TestCompleteFederatedRegistration_RejectsSessionToken(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	svc, iss := newService(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateChild(ctx, "Putri", "#FR02")

	// A session token must not pass where a provisional one is required.
	sessionTok, err := iss.IssueSession("64b000000000000000000000")
	if err != nil {
		t.Fatalf("IssueSession failed: %v", err)
	}

	_, _, err = svc.CompleteFederatedRegistration(ctx, onboarding.FederatedRegistration{
		ProvisionalToken: sessionTok,
		Name:             "X",
		Phone:            "0812",
		Address:          "Jl. X",
		InvitationCode:   "#FR02",
	})
	if apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Errorf("expected unauthorized for wrong token type, got %v", err)
	}
}
