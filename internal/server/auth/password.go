// Package auth implements password hashing, bearer token issuance and the
// per-request access guard.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argonAlgorithm = "argon2id"

	// Upper bounds applied when parsing stored hashes so a corrupted or
	// hostile string cannot make verification allocate unbounded memory.
	maxMemoryKiB  = 1 << 18 // 256 MiB
	maxIterations = 64
	maxKeyLength  = 128
)

// ErrInvalidParams is returned by Hash when the configured cost parameters
// cannot produce a hash.
var ErrInvalidParams = errors.New("invalid argon2 parameters")

// Params are the Argon2id cost parameters embedded in every hash string.
type Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams mirrors the OWASP minimum recommendation for Argon2id.
var DefaultParams = Params{
	Memory:      19 * 1024,
	Iterations:  2,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func (p Params) validate() error {
	switch {
	case p.Iterations < 1 || p.Iterations > maxIterations:
		return fmt.Errorf("%w: iterations %d", ErrInvalidParams, p.Iterations)
	case p.Parallelism < 1:
		return fmt.Errorf("%w: parallelism %d", ErrInvalidParams, p.Parallelism)
	case p.Memory < 8*uint32(p.Parallelism) || p.Memory > maxMemoryKiB:
		return fmt.Errorf("%w: memory %d KiB", ErrInvalidParams, p.Memory)
	case p.SaltLength < 8:
		return fmt.Errorf("%w: salt length %d", ErrInvalidParams, p.SaltLength)
	case p.KeyLength < 16 || p.KeyLength > maxKeyLength:
		return fmt.Errorf("%w: key length %d", ErrInvalidParams, p.KeyLength)
	}
	return nil
}

// Hasher produces and checks self-describing Argon2id hash strings of the form
//
//	$argon2id$v=19$m=19456,t=2,p=1$<salt>$<digest>
//
// with salt and digest encoded as unpadded standard base64.
type Hasher struct {
	params Params
	dummy  string
}

// NewHasher creates a Hasher that hashes new passwords with params.
// Verification always uses the parameters embedded in the stored string.
// The dummy hash is derived here so the first unknown-email login costs
// the same as every later one.
func NewHasher(params Params) *Hasher {
	h := &Hasher{params: params}
	// With invalid params the dummy stays empty and verifies to false.
	h.dummy, _ = h.Hash(rand.Text())
	return h
}

// Hash derives a new hash string for password using a fresh random salt.
func (h *Hasher) Hash(password string) (string, error) {
	if err := h.params.validate(); err != nil {
		return "", err
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argonAlgorithm,
		argon2.Version,
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// DummyHash returns a valid hash of a random password, computed by
// NewHasher with the hasher's params. Login verifies against it when the account does not
// exist so both paths cost one full Argon2 run.
func (h *Hasher) DummyHash() string {
	return h.dummy
}

// VerifyPassword reports whether password matches the encoded hash.
// Malformed input yields false.
func VerifyPassword(encoded, password string) bool {
	params, salt, key, err := decodeHash(encoded)
	if err != nil {
		return false
	}

	candidate := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	return subtle.ConstantTimeCompare(key, candidate) == 1
}

func decodeHash(encoded string) (Params, []byte, []byte, error) {
	var p Params

	// Leading "$" produces an empty first field.
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return p, nil, nil, errors.New("malformed hash")
	}
	if fields[1] != argonAlgorithm {
		return p, nil, nil, fmt.Errorf("unsupported algorithm %q", fields[1])
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return p, nil, nil, fmt.Errorf("malformed version: %w", err)
	}
	if version != argon2.Version {
		return p, nil, nil, fmt.Errorf("unsupported version %d", version)
	}

	var memory, iterations, parallelism uint32
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return p, nil, nil, fmt.Errorf("malformed params: %w", err)
	}
	if parallelism > 255 {
		return p, nil, nil, fmt.Errorf("%w: parallelism %d", ErrInvalidParams, parallelism)
	}

	salt, err := base64.RawStdEncoding.Strict().DecodeString(fields[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("malformed salt: %w", err)
	}
	key, err := base64.RawStdEncoding.Strict().DecodeString(fields[5])
	if err != nil {
		return p, nil, nil, fmt.Errorf("malformed digest: %w", err)
	}

	p = Params{
		Memory:      memory,
		Iterations:  iterations,
		Parallelism: uint8(parallelism),
		SaltLength:  uint32(len(salt)),
		KeyLength:   uint32(len(key)),
	}
	if err := p.validate(); err != nil {
		return p, nil, nil, err
	}

	return p, salt, key, nil
}
