package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/auth-service/internal/config"
)

const argon2Version = argon2.Version

// ErrInvalidHash is returned when a stored digest cannot be decoded.
var ErrInvalidHash = errors.New("invalid password hash")

// PasswordHasher hashes and verifies secrets at rest. It is used for account
// passwords and for refresh tokens kept in the session store.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(hashed, plain string) bool
	NeedsRehash(hashed string) bool
}

// Argon2Params controls Argon2id cost. MemoryKiB is in KiB as argon2.IDKey expects.
type Argon2Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params returns interactive-login settings.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2ParamsFromConfig reads parameters from the auth config, keeping
// defaults for zero values.
func Argon2ParamsFromConfig(cfg config.AuthConfig) Argon2Params {
	p := DefaultArgon2Params()
	if cfg.Argon2MemoryKiB > 0 {
		p.MemoryKiB = cfg.Argon2MemoryKiB
	}
	if cfg.Argon2Iterations > 0 {
		p.Iterations = cfg.Argon2Iterations
	}
	if cfg.Argon2Parallelism > 0 {
		p.Parallelism = cfg.Argon2Parallelism
	}
	if cfg.Argon2SaltLength > 0 {
		p.SaltLength = cfg.Argon2SaltLength
	}
	if cfg.Argon2KeyLength > 0 {
		p.KeyLength = cfg.Argon2KeyLength
	}
	return p
}

// Hasher is the Argon2id PasswordHasher. Digests produced by older bcrypt
// deployments are still accepted by Verify.
type Hasher struct {
	params Argon2Params
}

// NewHasher builds a hasher with the given parameters.
func NewHasher(params Argon2Params) *Hasher {
	return &Hasher{params: params}
}

// Hash returns an encoded digest:
// $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
func (h *Hasher) Hash(plain string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	key := argon2.IDKey([]byte(plain), salt, h.params.Iterations, h.params.MemoryKiB, h.params.Parallelism, h.params.KeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version,
		h.params.MemoryKiB,
		h.params.Iterations,
		h.params.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

// Verify reports whether plain matches hashed. Malformed digests and digests
// with unreasonable cost never match.
func (h *Hasher) Verify(hashed, plain string) bool {
	if isBcrypt(hashed) {
		return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
	}

	params, salt, expected, err := decodeArgon2(hashed)
	if err != nil {
		return false
	}
	if !withinBounds(params, h.params) {
		return false
	}

	key := argon2.IDKey([]byte(plain), salt, params.Iterations, params.MemoryKiB, params.Parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(key, expected) == 1
}

// NeedsRehash reports whether hashed was produced by another algorithm or
// with parameters different from the current ones.
func (h *Hasher) NeedsRehash(hashed string) bool {
	params, _, _, err := decodeArgon2(hashed)
	if err != nil {
		return true
	}
	return params.MemoryKiB != h.params.MemoryKiB ||
		params.Iterations != h.params.Iterations ||
		params.Parallelism != h.params.Parallelism ||
		params.KeyLength != h.params.KeyLength
}

func isBcrypt(hashed string) bool {
	return strings.HasPrefix(hashed, "$2a$") ||
		strings.HasPrefix(hashed, "$2b$") ||
		strings.HasPrefix(hashed, "$2y$")
}

// withinBounds accepts digests made with older or smaller settings and
// rejects ones far more expensive than ours.
func withinBounds(got, limits Argon2Params) bool {
	if uint64(got.MemoryKiB) > 2*uint64(limits.MemoryKiB) {
		return false
	}
	if uint64(got.Iterations) > 2*uint64(limits.Iterations) {
		return false
	}
	if uint32(got.Parallelism) > 2*uint32(limits.Parallelism) {
		return false
	}
	if got.SaltLength < 8 || got.SaltLength > 64 {
		return false
	}
	if got.KeyLength < 16 || got.KeyLength > 128 {
		return false
	}
	return true
}

func decodeArgon2(encoded string) (Argon2Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Argon2Params{}, nil, nil, ErrInvalidHash
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2Version) {
		return Argon2Params{}, nil, nil, ErrInvalidHash
	}

	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return Argon2Params{}, nil, nil, ErrInvalidHash
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return Argon2Params{}, nil, nil, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return Argon2Params{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil {
		return Argon2Params{}, nil, nil, ErrInvalidHash
	}

	return Argon2Params{
		MemoryKiB:   mem,
		Iterations:  it,
		Parallelism: uint8(par),
		SaltLength:  uint32(len(salt)),
		KeyLength:   uint32(len(key)),
	}, salt, key, nil
}
