package password

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
	minMemoryKB    uint32 = 8 * 1024
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	minPassBytes          = 10
	phcPrefix             = "$argon2id$"
)

// ErrHashFormat reports a stored hash that could not be parsed. It is
// distinct from a mismatch so callers can tell corruption from a wrong
// password.
var ErrHashFormat = errors.New("unparsable credential hash")

// Config holds the Argon2id cost parameters. Memory is in KB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Argon2 hashes and verifies credentials. It is stateless and safe for
// concurrent use.
type Argon2 struct {
	config Config
}

// NewArgon2 validates cfg against the minimum safe parameters and returns a
// ready hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, fmt.Errorf("password memory must be >= %d KB", minMemoryKB)
	case cfg.Time < 1:
		return nil, errors.New("password time must be >= 1")
	case cfg.Parallelism < 1:
		return nil, errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return nil, fmt.Errorf("password salt length must be >= %d", minSaltLength)
	case cfg.KeyLength < minKeyLength:
		return nil, fmt.Errorf("password key length must be >= %d", minKeyLength)
	}
	return &Argon2{config: cfg}, nil
}

// Hash derives a PHC-encoded Argon2id hash with a fresh random salt.
// Password bytes are used exactly as provided; no Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if len(password) < minPassBytes {
		return "", fmt.Errorf("password must be at least %d bytes", minPassBytes)
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt,
		a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)

	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		phcPrefix,
		argon2.Version,
		a.config.Memory, a.config.Time, a.config.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the hash with the parameters embedded in encodedHash
// and compares in constant time.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	memory, timeCost, parallelism, salt, want, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}

	got := argon2.IDKey([]byte(password), salt,
		timeCost, memory, parallelism, uint32(len(want)))

	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// decodePHC splits a $argon2id$v=19$m=..,t=..,p=..$salt$hash string. The
// embedded parameters are trusted only after passing the same floors as
// NewArgon2, so a downgraded stored hash is rejected rather than recomputed
// with weak costs.
func decodePHC(encoded string) (memory uint32, timeCost uint32, parallelism uint8, salt, key []byte, err error) {
	rest, ok := strings.CutPrefix(encoded, phcPrefix)
	if !ok {
		return 0, 0, 0, nil, nil, fmt.Errorf("%w: not argon2id", ErrHashFormat)
	}

	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return 0, 0, 0, nil, nil, fmt.Errorf("%w: wrong segment count", ErrHashFormat)
	}

	var version int
	if _, err := fmt.Sscanf(fields[0], "v=%d", &version); err != nil || version != argon2.Version {
		return 0, 0, 0, nil, nil, fmt.Errorf("%w: unsupported version", ErrHashFormat)
	}

	if _, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &memory, &timeCost, &parallelism); err != nil {
		return 0, 0, 0, nil, nil, fmt.Errorf("%w: bad cost parameters", ErrHashFormat)
	}
	if memory < minMemoryKB || timeCost < 1 || parallelism < 1 {
		return 0, 0, 0, nil, nil, fmt.Errorf("%w: cost parameters below floor", ErrHashFormat)
	}

	salt, err = base64.StdEncoding.DecodeString(fields[2])
	if err != nil || len(salt) < int(minSaltLength) {
		return 0, 0, 0, nil, nil, fmt.Errorf("%w: bad salt", ErrHashFormat)
	}
	key, err = base64.StdEncoding.DecodeString(fields[3])
	if err != nil || len(key) < int(minKeyLength) {
		return 0, 0, 0, nil, nil, fmt.Errorf("%w: bad key", ErrHashFormat)
	}

	return memory, timeCost, parallelism, salt, key, nil
}
