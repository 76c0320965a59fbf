// Package onboarding implements the staged account flows: direct
// registration, deferred profile completion, and federated sign-in.
//
// Accounts are allowed to exist half-built. Registration only proves a
// credential; the profile and the child link come later, and every login
// recomputes where the account stands instead of trusting stored flags.
package onboarding

import (
	"context"
	"errors"
	"strings"

	"github.com/kinderlink/kinderlink/internal/app/store/users"
	"github.com/kinderlink/kinderlink/internal/app/system/apperr"
	"github.com/kinderlink/kinderlink/internal/app/system/authutil"
	"github.com/kinderlink/kinderlink/internal/app/system/linking"
	"github.com/kinderlink/kinderlink/internal/app/system/normalize"
	"github.com/kinderlink/kinderlink/internal/app/system/token"
	"github.com/kinderlink/kinderlink/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const minPasswordLen = 8

// Service drives account onboarding.
type Service struct {
	users  *userstore.Store
	linker *linking.Linker
	tokens *token.Issuer
	log    *zap.Logger
}

// New creates the onboarding service.
func New(users *userstore.Store, linker *linking.Linker, tokens *token.Issuer, logger *zap.Logger) *Service {
	return &Service{users: users, linker: linker, tokens: tokens, log: logger}
}

// Session pairs a user with a freshly minted session token.
type Session struct {
	User  *models.User
	Token string
}

// Register creates a password account holding just a credential, or
// re-arms the password of an existing account that never finished
// onboarding. A finished account is told to log in instead.
func (s *Service) Register(ctx context.Context, email, password string) (*Session, error) {
	email = normalize.Email(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	hash, err := authutil.HashPassword(password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.IsComplete() {
			return nil, apperr.Conflict("email already registered; log in instead")
		}
		// Half-built account, likely an abandoned earlier attempt. Let the
		// new registration take it over.
		s.log.Info("register resumed an incomplete account",
			zap.String("user_id", existing.ID.Hex()))
		if err := s.users.SetPasswordHash(ctx, existing.ID, hash); err != nil {
			return nil, apperr.Internal(err)
		}
		existing.PasswordHash = &hash
		return s.startSession(existing)

	case errors.Is(err, mongo.ErrNoDocuments):
		created, err := s.users.Create(ctx, models.User{
			Email:        email,
			PasswordHash: &hash,
			Role:         models.RoleGuardian,
		})
		if err != nil {
			if errors.Is(err, userstore.ErrDuplicateEmail) {
				// Lost a race with a concurrent registration.
				return nil, apperr.Conflict("email already registered; log in instead")
			}
			return nil, apperr.Internal(err)
		}
		return s.startSession(&created)

	default:
		return nil, apperr.Internal(err)
	}
}

// Login checks a password credential. Every failure mode (unknown email,
// federated-only account, wrong password) produces the same response so
// the endpoint doesn't leak which emails exist.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	denied := apperr.Unauthorized("invalid email or password")

	user, err := s.users.GetByEmail(ctx, normalize.Email(email))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, denied
		}
		return nil, apperr.Internal(err)
	}

	if !user.HasPassword() {
		// Federated-provenance account; password login is not a thing for it.
		return nil, denied
	}
	if !authutil.CheckPassword(*user.PasswordHash, password) {
		return nil, denied
	}

	return s.startSession(user)
}

// ProfileInput carries the deferred-path completion payload.
type ProfileInput struct {
	Name           string
	Phone          string
	Address        string
	InvitationCode string
}

// CompleteProfile fills in the profile of a signed-in guardian and binds
// the account to the child named by the invitation code, as one unit. A
// bad code fails the whole step and leaves the account untouched.
func (s *Service) CompleteProfile(ctx context.Context, userID primitive.ObjectID, in ProfileInput) (*models.User, *models.Child, error) {
	if err := validateProfile(in); err != nil {
		return nil, nil, err
	}

	return s.linker.LinkWithProfile(ctx, userID, linking.Profile{
		Name:    in.Name,
		Phone:   in.Phone,
		Address: in.Address,
	}, in.InvitationCode)
}

// FederatedProfile is what the identity provider asserts about a person.
type FederatedProfile struct {
	SubjectID string
	Email     string
	Name      string
}

// FederatedResult is the outcome of a federated callback. Exactly one of
// Session or ProvisionalToken is set: a session when the person resolved
// to an account, a provisional token when registration must continue.
type FederatedResult struct {
	Session          *Session
	ProvisionalToken string
}

// ResolveFederated maps a provider assertion to an account. Lookup order:
// the federated subject first, then an email match (which adopts the
// federated identity), and finally a provisional token for the
// registration flow.
func (s *Service) ResolveFederated(ctx context.Context, p FederatedProfile) (*FederatedResult, error) {
	if p.SubjectID == "" || p.Email == "" {
		return nil, apperr.Validation("incomplete identity assertion", nil)
	}

	user, err := s.users.GetByFederatedID(ctx, p.SubjectID)
	if err == nil {
		sess, err := s.startSession(user)
		if err != nil {
			return nil, err
		}
		return &FederatedResult{Session: sess}, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.Internal(err)
	}

	user, err = s.users.GetByEmail(ctx, p.Email)
	if err == nil {
		// Same person arriving through a new door; adopt the identity.
		if err := s.users.SetFederatedID(ctx, user.ID, p.SubjectID); err != nil {
			return nil, apperr.Internal(err)
		}
		user.FederatedID = &p.SubjectID
		s.log.Info("federated identity attached to existing account",
			zap.String("user_id", user.ID.Hex()))
		sess, err := s.startSession(user)
		if err != nil {
			return nil, err
		}
		return &FederatedResult{Session: sess}, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.Internal(err)
	}

	provisional, err := s.tokens.IssueProvisional(token.ProvisionalClaims{
		FederatedID: p.SubjectID,
		Email:       normalize.Email(p.Email),
		Name:        p.Name,
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &FederatedResult{ProvisionalToken: provisional}, nil
}

// FederatedRegistration carries the final step of the federated path: the
// provisional token plus the profile and invitation code.
type FederatedRegistration struct {
	ProvisionalToken string
	Name             string
	Phone            string
	Address          string
	InvitationCode   string
}

// CompleteFederatedRegistration verifies the provisional token, then
// creates the account and links the child in one unit. No account exists
// until this succeeds.
func (s *Service) CompleteFederatedRegistration(ctx context.Context, in FederatedRegistration) (*Session, *models.Child, error) {
	claims, err := s.tokens.VerifyProvisional(in.ProvisionalToken)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil, nil, apperr.Unauthorized("registration window expired; sign in again")
		}
		return nil, nil, apperr.Unauthorized("invalid registration token")
	}

	name := in.Name
	if name == "" {
		name = claims.Name
	}
	if err := validateProfile(ProfileInput{
		Name:           name,
		Phone:          in.Phone,
		Address:        in.Address,
		InvitationCode: in.InvitationCode,
	}); err != nil {
		return nil, nil, err
	}

	candidate := models.User{
		Name:        name,
		Email:       claims.Email,
		FederatedID: &claims.FederatedID,
		Phone:       in.Phone,
		Address:     in.Address,
	}

	user, child, err := s.linker.LinkFederated(ctx, candidate, in.InvitationCode)
	if err != nil {
		return nil, nil, err
	}

	sess, err := s.startSession(user)
	if err != nil {
		return nil, nil, err
	}
	return sess, child, nil
}

func (s *Service) startSession(user *models.User) (*Session, error) {
	tok, err := s.tokens.IssueSession(user.ID.Hex())
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &Session{User: user, Token: tok}, nil
}

func validateCredentials(email, password string) error {
	fields := map[string]string{}
	if email == "" || !strings.Contains(email, "@") {
		fields["email"] = "a valid email is required"
	}
	if len(password) < minPasswordLen {
		fields["password"] = "password must be at least 8 characters"
	}
	if len(fields) > 0 {
		return apperr.Validation("validation failed", fields)
	}
	return nil
}

func validateProfile(in ProfileInput) error {
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "name is required"
	}
	if strings.TrimSpace(in.Phone) == "" {
		fields["phone"] = "phone is required"
	}
	if strings.TrimSpace(in.Address) == "" {
		fields["address"] = "address is required"
	}
	if strings.TrimSpace(in.InvitationCode) == "" {
		fields["invitation_code"] = "invitation code is required"
	}
	if len(fields) > 0 {
		return apperr.Validation("validation failed", fields)
	}
	return nil
}
