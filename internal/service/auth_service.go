package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/events"
	"github.com/spec-kit/auth-service/internal/observability"
	"github.com/spec-kit/auth-service/internal/repository"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// Messages returned by operations that succeed without tokens.
const (
	MessageAccountCreated  = "Account created!"
	MessageLoggedOut       = "Logout successful"
	MessageEmailVerified   = "Email verified successfully!"
	MessageAlreadyVerified = "Already verified."
)

// SignupInput is a registration request.
type SignupInput struct {
	Email    string
	Username string
	Password string
	Role     domain.Role
}

// CredentialUpdate is an administrative change. Nil fields are left as is.
type CredentialUpdate struct {
	Email    *string
	Username *string
	Role     *domain.Role
	IsBanned *bool
}

// AuthService coordinates registration, login and the refresh session
// lifecycle. Each subject has at most one active session.
type AuthService struct {
	credentials repository.CredentialRepository
	sessions    repository.SessionRepository
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	tokens      *auth.TokenManager
	hasher      auth.PasswordHasher
	guard       *auth.Guard
	dummyHash   string
}

// AuthDependencies encapsulates the injected stores and collaborators.
// Hasher is optional and defaults to Argon2id with the configured params.
type AuthDependencies struct {
	Credentials repository.CredentialRepository
	Sessions    repository.SessionRepository
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Hasher      auth.PasswordHasher
}

// NewAuthService builds the service. It fails when token secrets are
// missing or shared.
func NewAuthService(cfg config.Config, deps AuthDependencies) (*AuthService, error) {
	if deps.Credentials == nil || deps.Sessions == nil {
		return nil, errors.New("credential and session stores are required")
	}
	tokens, err := auth.NewTokenManager(auth.TokenConfigFrom(cfg.Auth))
	if err != nil {
		return nil, err
	}

	hasher := deps.Hasher
	if hasher == nil {
		hasher = auth.NewHasher(auth.Argon2ParamsFromConfig(cfg.Auth))
	}
	// Verified against when the identifier is unknown.
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuthService{
		credentials: deps.Credentials,
		sessions:    deps.Sessions,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      logger,
		tokens:      tokens,
		hasher:      hasher,
		guard:       auth.NewGuard(tokens, deps.Credentials),
		dummyHash:   dummy,
	}, nil
}

// TokenManager exposes the issuer used by the service.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

// Guard exposes the bearer token guard for route middleware.
func (s *AuthService) Guard() *auth.Guard {
	return s.guard
}

// Signup registers a USER credential. Self-registration as ADMIN is refused
// before anything else is checked.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (msg string, err error) {
	defer s.observe("signup", time.Now(), &err)

	if in.Role == domain.RoleAdmin {
		return "", apperrors.NewForbidden("admin accounts cannot be self-registered")
	}

	email := normalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)

	if _, err := s.credentials.GetByEmail(ctx, email); err == nil {
		return "", apperrors.NewDuplicateEmail()
	} else if !errors.Is(err, repository.ErrNotFound) {
		return "", s.fail(err)
	}
	if _, err := s.credentials.GetByUsername(ctx, username); err == nil {
		return "", apperrors.NewDuplicateUsername()
	} else if !errors.Is(err, repository.ErrNotFound) {
		return "", s.fail(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return "", s.fail(err)
	}

	cred := &domain.Credential{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleUser,
	}
	if err := s.credentials.Create(ctx, cred); err != nil {
		return "", s.storeError(err)
	}

	s.publishRegistered(ctx, cred)
	s.logger.Info("credential registered", zap.String("subject", cred.ID))
	return MessageAccountCreated, nil
}

// Login verifies a password for an email or username and starts a session,
// replacing any previous one for the subject.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (pair domain.TokenPair, err error) {
	defer s.observe("login", time.Now(), &err)

	cred, err := s.lookup(ctx, strings.TrimSpace(identifier))
	if errors.Is(err, repository.ErrNotFound) {
		s.hasher.Verify(s.dummyHash, password)
		s.logger.Info("login failed", zap.String("reason", "unknown_identifier"))
		return domain.TokenPair{}, apperrors.NewInvalidCredentials()
	}
	if err != nil {
		return domain.TokenPair{}, s.fail(err)
	}

	if !s.hasher.Verify(cred.PasswordHash, password) {
		s.logger.Info("login failed", zap.String("reason", "wrong_password"), zap.String("subject", cred.ID))
		return domain.TokenPair{}, apperrors.NewInvalidCredentials()
	}
	if cred.IsBanned {
		s.logger.Info("login refused", zap.String("reason", "banned"), zap.String("subject", cred.ID))
		return domain.TokenPair{}, apperrors.NewUnauthorized("account is banned")
	}

	s.upgradeHash(ctx, cred, password)

	pair, err = s.startSession(ctx, cred)
	if err != nil {
		return domain.TokenPair{}, s.fail(err)
	}
	s.publish(ctx, events.NewEvent(events.EventSessionStarted, cred.ID, events.SessionPayload{Username: cred.Username}))
	return pair, nil
}

// Refresh rotates the session of subject. Every rejection carries the same
// AccessDenied error.
func (s *AuthService) Refresh(ctx context.Context, subject, refreshToken string) (pair domain.TokenPair, err error) {
	defer s.observe("refresh", time.Now(), &err)

	claims, verr := s.tokens.VerifyRefreshToken(refreshToken)
	if verr != nil || claims.Subject != subject {
		return domain.TokenPair{}, s.deny(subject, "invalid_token")
	}

	cred, err := s.credentials.GetByID(ctx, subject)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.TokenPair{}, s.deny(subject, "unknown_subject")
	}
	if err != nil {
		return domain.TokenPair{}, s.fail(err)
	}

	stored, err := s.sessions.Get(ctx, subject)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return domain.TokenPair{}, s.deny(subject, "no_session")
	}
	if err != nil {
		return domain.TokenPair{}, s.fail(err)
	}
	if !s.hasher.Verify(stored, refreshToken) {
		return domain.TokenPair{}, s.deny(subject, "hash_mismatch")
	}

	if cred.IsBanned {
		if derr := s.sessions.Delete(ctx, subject); derr != nil {
			s.logger.Warn("dropping banned session failed", zap.String("subject", subject), zap.Error(derr))
		}
		return domain.TokenPair{}, s.deny(subject, "banned")
	}

	pair, err = s.startSession(ctx, cred)
	if err != nil {
		return domain.TokenPair{}, s.fail(err)
	}
	s.publish(ctx, events.NewEvent(events.EventSessionRotated, cred.ID, events.SessionPayload{Username: cred.Username}))
	return pair, nil
}

// RefreshToken reads the subject from an unverified refresh token and then
// runs Refresh, which performs the actual verification.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	subject, err := auth.UnverifiedSubject(refreshToken)
	if err != nil {
		s.metrics.RecordOperation("refresh", outcomeOf(apperrors.ErrAccessDenied), 0)
		return domain.TokenPair{}, s.deny("", "undecodable_token")
	}
	return s.Refresh(ctx, subject, refreshToken)
}

// Logout ends the session of subject. Ending an absent session succeeds.
func (s *AuthService) Logout(ctx context.Context, subject string) (msg string, err error) {
	defer s.observe("logout", time.Now(), &err)

	if err := s.sessions.Delete(ctx, subject); err != nil {
		return "", s.fail(err)
	}
	s.publish(ctx, events.NewEvent(events.EventSessionEnded, subject, events.SessionPayload{}))
	return MessageLoggedOut, nil
}

// ForwardVerify checks an Authorization header for a reverse proxy.
// require is a marker such as "role:admin"; empty means authentication only.
func (s *AuthService) ForwardVerify(ctx context.Context, authorizationHeader, require string) (ok bool, err error) {
	defer s.observe("verify", time.Now(), &err)

	if _, err := s.guard.Authorize(ctx, authorizationHeader, auth.ParseRequiredRole(require)); err != nil {
		return false, err
	}
	return true, nil
}

// VerifyEmail marks the address of a verification link as confirmed.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (msg string, err error) {
	defer s.observe("verify_email", time.Now(), &err)

	invalid := apperrors.NewForbidden("invalid or expired verification link")

	claims, verr := s.tokens.VerifyEmailVerificationToken(token)
	if verr != nil {
		return "", invalid
	}
	cred, err := s.credentials.GetByID(ctx, claims.Subject)
	if errors.Is(err, repository.ErrNotFound) {
		return "", invalid
	}
	if err != nil {
		return "", s.fail(err)
	}
	if cred.Email != claims.Email {
		return "", invalid
	}
	if cred.IsEmailVerified {
		return MessageAlreadyVerified, nil
	}

	err = s.credentials.MarkEmailVerified(ctx, cred.ID, claims.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return "", invalid
	}
	if err != nil {
		return "", s.fail(err)
	}
	s.publish(ctx, events.NewEvent(events.EventCredentialUpdated, cred.ID,
		events.CredentialUpdatedPayload{Changed: []string{"is_email_verified"}}))
	return MessageEmailVerified, nil
}

// ListCredentials pages through all credentials.
func (s *AuthService) ListCredentials(ctx context.Context, filter repository.CredentialFilter) ([]domain.Credential, error) {
	creds, err := s.credentials.List(ctx, filter)
	if err != nil {
		return nil, s.fail(err)
	}
	return creds, nil
}

// GetCredential loads one credential.
func (s *AuthService) GetCredential(ctx context.Context, id string) (*domain.Credential, error) {
	cred, err := s.credentials.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError(err)
	}
	return cred, nil
}

// UpdateCredential applies an administrative change. It is the only path
// that can grant ADMIN. Banning also ends the subject's session.
func (s *AuthService) UpdateCredential(ctx context.Context, id string, upd CredentialUpdate) (updated *domain.Credential, err error) {
	defer s.observe("admin_update", time.Now(), &err)

	cred, err := s.credentials.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError(err)
	}

	var changed []string
	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		if email != cred.Email {
			if owner, err := s.credentials.GetByEmail(ctx, email); err == nil && owner.ID != cred.ID {
				return nil, apperrors.NewDuplicateEmail()
			} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, s.fail(err)
			}
			cred.Email = email
			cred.IsEmailVerified = false
			changed = append(changed, "email")
		}
	}
	if upd.Username != nil {
		username := strings.TrimSpace(*upd.Username)
		if username != cred.Username {
			if owner, err := s.credentials.GetByUsername(ctx, username); err == nil && owner.ID != cred.ID {
				return nil, apperrors.NewDuplicateUsername()
			} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, s.fail(err)
			}
			cred.Username = username
			changed = append(changed, "username")
		}
	}
	if upd.Role != nil && *upd.Role != cred.Role {
		if !upd.Role.Valid() {
			return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": string(*upd.Role)})
		}
		cred.Role = *upd.Role
		changed = append(changed, "role")
	}
	banned := false
	if upd.IsBanned != nil && *upd.IsBanned != cred.IsBanned {
		cred.IsBanned = *upd.IsBanned
		banned = cred.IsBanned
		changed = append(changed, "is_banned")
	}

	if len(changed) == 0 {
		return cred, nil
	}
	if err := s.credentials.Update(ctx, cred); err != nil {
		return nil, s.storeError(err)
	}

	if banned {
		if err := s.sessions.Delete(ctx, cred.ID); err != nil {
			s.logger.Warn("ending banned session failed", zap.String("subject", cred.ID), zap.Error(err))
		}
	}
	s.publish(ctx, events.NewEvent(events.EventCredentialUpdated, cred.ID,
		events.CredentialUpdatedPayload{Changed: changed, Banned: cred.IsBanned}))
	return cred, nil
}

func (s *AuthService) lookup(ctx context.Context, identifier string) (*domain.Credential, error) {
	if identifier == "" {
		return nil, repository.ErrNotFound
	}
	if isEmail(identifier) {
		return s.credentials.GetByEmail(ctx, normalizeEmail(identifier))
	}
	return s.credentials.GetByUsername(ctx, identifier)
}

// startSession issues a pair and stores the refresh token hash, overwriting
// the previous session.
func (s *AuthService) startSession(ctx context.Context, cred *domain.Credential) (domain.TokenPair, error) {
	pair, err := s.tokens.IssuePair(cred.Identity())
	if err != nil {
		return domain.TokenPair{}, err
	}
	hash, err := s.hasher.Hash(pair.RefreshToken)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if err := s.sessions.Save(ctx, cred.ID, hash, s.tokens.RefreshTTL()); err != nil {
		return domain.TokenPair{}, err
	}
	return pair, nil
}

// upgradeHash replaces legacy or weaker digests after a successful login.
// Failure only costs the upgrade.
func (s *AuthService) upgradeHash(ctx context.Context, cred *domain.Credential, password string) {
	if !s.hasher.NeedsRehash(cred.PasswordHash) {
		return
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn("password rehash failed", zap.String("subject", cred.ID), zap.Error(err))
		return
	}
	if err := s.credentials.UpdatePasswordHash(ctx, cred.ID, hash); err != nil {
		s.logger.Warn("storing rehashed password failed", zap.String("subject", cred.ID), zap.Error(err))
		return
	}
	cred.PasswordHash = hash
	s.logger.Info("password digest upgraded", zap.String("subject", cred.ID))
}

func (s *AuthService) publishRegistered(ctx context.Context, cred *domain.Credential) {
	token, expiresAt, err := s.tokens.IssueEmailVerificationToken(cred.ID, cred.Email)
	if err != nil {
		s.logger.Warn("issuing verification token failed", zap.String("subject", cred.ID), zap.Error(err))
		return
	}
	s.publish(ctx, events.NewEvent(events.EventCredentialRegistered, cred.ID, events.CredentialRegisteredPayload{
		Email:             cred.Email,
		Username:          cred.Username,
		VerificationToken: token,
		ExpiresAt:         expiresAt,
	}))
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publishing event failed",
			zap.String("event_type", string(event.Type)),
			zap.String("subject", event.Subject),
			zap.Error(err))
	}
}

func (s *AuthService) deny(subject, reason string) error {
	s.logger.Info("refresh denied", zap.String("subject", subject), zap.String("reason", reason))
	return apperrors.NewAccessDenied()
}

// fail passes domain errors through and hides everything else behind
// InternalError.
func (s *AuthService) fail(err error) error {
	if apperrors.IsDomainError(err) {
		return err
	}
	s.logger.Error("store operation failed", zap.Error(err))
	return apperrors.NewInternalError(err)
}

// storeError maps repository sentinels to caller-facing kinds.
func (s *AuthService) storeError(err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateEmail):
		return apperrors.NewDuplicateEmail()
	case errors.Is(err, repository.ErrDuplicateUsername):
		return apperrors.NewDuplicateUsername()
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("credential", nil)
	default:
		return s.fail(err)
	}
}

func (s *AuthService) observe(operation string, start time.Time, err *error) {
	s.metrics.RecordOperation(operation, outcomeOf(*err), time.Since(start))
}

func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	return strings.ToLower(apperrors.ToDomainError(err).Code)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isEmail accepts bare addresses only, not "Name <addr>" forms.
func isEmail(value string) bool {
	addr, err := mail.ParseAddress(value)
	return err == nil && addr.Address == value
}
