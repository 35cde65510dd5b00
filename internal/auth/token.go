package auth

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
)

// Audiences separate token kinds even if secrets were misconfigured.
const (
	AudienceAccess            = "access"
	AudienceRefresh           = "refresh"
	AudienceEmailVerification = "email_verification"
)

// ErrInvalidToken covers every verification failure: bad signature, tampered
// payload, wrong audience, expiry.
var ErrInvalidToken = errors.New("invalid token")

// Claims describes the JWT payload.
type Claims struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	IsAdmin         bool   `json:"isAdmin"`
	IsEmailVerified bool   `json:"isEmailVerified"`
	jwt.RegisteredClaims
}

// Identity returns the signed attributes without the registered claims.
func (c *Claims) Identity() domain.Identity {
	return domain.Identity{
		Subject:         c.Subject,
		Email:           c.Email,
		Username:        c.Username,
		IsAdmin:         c.IsAdmin,
		IsEmailVerified: c.IsEmailVerified,
	}
}

// TokenConfig holds secrets and lifetimes for each token kind.
type TokenConfig struct {
	AccessSecret            string
	RefreshSecret           string
	EmailVerificationSecret string
	AccessTTL               time.Duration
	RefreshTTL              time.Duration
	EmailVerificationTTL    time.Duration
}

// TokenConfigFrom maps the auth section of the service config.
func TokenConfigFrom(cfg config.AuthConfig) TokenConfig {
	return TokenConfig{
		AccessSecret:            cfg.AccessTokenSecret,
		RefreshSecret:           cfg.RefreshTokenSecret,
		EmailVerificationSecret: cfg.EmailVerificationSecret,
		AccessTTL:               cfg.AccessTokenTTL(),
		RefreshTTL:              cfg.RefreshTokenTTL(),
		EmailVerificationTTL:    cfg.EmailVerificationTTL(),
	}
}

// TokenManager issues and validates access, refresh and email verification tokens.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	verifySecret  []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	verifyTTL     time.Duration
	now           func() time.Time
}

// NewTokenManager builds a manager. Missing or shared secrets are configuration errors.
func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if strings.TrimSpace(cfg.AccessSecret) == "" || strings.TrimSpace(cfg.RefreshSecret) == "" ||
		strings.TrimSpace(cfg.EmailVerificationSecret) == "" {
		return nil, errors.New("token secrets must be configured")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh token secrets must differ")
	}
	if cfg.EmailVerificationSecret == cfg.AccessSecret || cfg.EmailVerificationSecret == cfg.RefreshSecret {
		return nil, errors.New("email verification secret must differ from token secrets")
	}

	tm := &TokenManager{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		verifySecret:  []byte(cfg.EmailVerificationSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		verifyTTL:     cfg.EmailVerificationTTL,
		now:           time.Now,
	}
	if tm.accessTTL <= 0 {
		tm.accessTTL = config.DefaultAccessTokenTTL
	}
	if tm.refreshTTL <= 0 {
		tm.refreshTTL = config.DefaultRefreshTokenTTL
	}
	if tm.verifyTTL <= 0 {
		tm.verifyTTL = config.DefaultEmailVerificationTTL
	}
	return tm, nil
}

// RefreshTTL is the refresh token lifetime, also used as the session record TTL.
func (tm *TokenManager) RefreshTTL() time.Duration {
	return tm.refreshTTL
}

// IssueAccessToken signs a short-lived access token for the identity.
func (tm *TokenManager) IssueAccessToken(identity domain.Identity) (string, time.Time, error) {
	return tm.sign(identity, tm.accessSecret, AudienceAccess, tm.accessTTL)
}

// IssueRefreshToken signs a long-lived refresh token for the identity.
func (tm *TokenManager) IssueRefreshToken(identity domain.Identity) (string, time.Time, error) {
	return tm.sign(identity, tm.refreshSecret, AudienceRefresh, tm.refreshTTL)
}

// IssuePair signs both tokens.
func (tm *TokenManager) IssuePair(identity domain.Identity) (domain.TokenPair, error) {
	access, _, err := tm.IssueAccessToken(identity)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, _, err := tm.IssueRefreshToken(identity)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// IssueEmailVerificationToken signs a link token binding subject to email.
func (tm *TokenManager) IssueEmailVerificationToken(subject, email string) (string, time.Time, error) {
	return tm.sign(domain.Identity{Subject: subject, Email: email}, tm.verifySecret, AudienceEmailVerification, tm.verifyTTL)
}

// VerifyAccessToken validates a token against the access secret.
func (tm *TokenManager) VerifyAccessToken(token string) (*Claims, error) {
	return Verify(token, tm.accessSecret, AudienceAccess)
}

// VerifyRefreshToken validates a token against the refresh secret.
func (tm *TokenManager) VerifyRefreshToken(token string) (*Claims, error) {
	return Verify(token, tm.refreshSecret, AudienceRefresh)
}

// VerifyEmailVerificationToken validates an email verification link token.
func (tm *TokenManager) VerifyEmailVerificationToken(token string) (*Claims, error) {
	return Verify(token, tm.verifySecret, AudienceEmailVerification)
}

func (tm *TokenManager) sign(identity domain.Identity, secret []byte, audience string, ttl time.Duration) (string, time.Time, error) {
	if len(secret) == 0 {
		return "", time.Time{}, errors.New("signing secret not configured")
	}
	now := tm.now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		Email:           identity.Email,
		Username:        identity.Username,
		IsAdmin:         identity.IsAdmin,
		IsEmailVerified: identity.IsEmailVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Subject,
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Verify checks signature, expiry and audience. All failures return ErrInvalidToken.
func Verify(tokenStr string, secret []byte, audience string) (*Claims, error) {
	if len(secret) == 0 || tokenStr == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(audience),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// UnverifiedSubject decodes the subject of a token without checking its
// signature. The result may only be used to look up server-side state; the
// caller must still verify the token and the stored hash before trusting it.
func UnverifiedSubject(tokenStr string) (string, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
