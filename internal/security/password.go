package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

var ErrInvalidPasswordHash = errors.New("invalid password hash")

const argonVersionTag = "v=19"

// argonParams is the cost recorded in each PHC-formatted hash, so stored
// hashes stay verifiable after the defaults change.
type argonParams struct {
	memoryKiB uint32
	passes    uint32
	lanes     uint8
}

var defaultArgonParams = argonParams{memoryKiB: 64 * 1024, passes: 3, lanes: 2}

// Upper bounds applied when decoding; a tampered row cannot make sign-in
// allocate unbounded memory.
const (
	maxArgonMemoryKiB = 1 << 20
	maxArgonPasses    = 16
	saltBytes         = 16
	keyBytes          = 32
)

func (p argonParams) key(password string, salt []byte, n uint32) []byte {
	return argon2.IDKey([]byte(password), salt, p.passes, p.memoryKiB, p.lanes, n)
}

func (p argonParams) valid() bool {
	return p.memoryKiB > 0 && p.memoryKiB <= maxArgonMemoryKiB &&
		p.passes > 0 && p.passes <= maxArgonPasses && p.lanes > 0
}

// HashPassword returns an argon2id hash in PHC string form.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	p := defaultArgonParams
	enc := base64.RawStdEncoding
	return strings.Join([]string{
		"",
		"argon2id",
		argonVersionTag,
		fmt.Sprintf("m=%d,t=%d,p=%d", p.memoryKiB, p.passes, p.lanes),
		enc.EncodeToString(salt),
		enc.EncodeToString(p.key(password, salt, keyBytes)),
	}, "$"), nil
}

// VerifyPassword reports whether password matches encoded. A malformed hash
// yields ErrInvalidPasswordHash.
func VerifyPassword(encoded, password string) (bool, error) {
	p, salt, want, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	got := p.key(password, salt, uint32(len(want))) // #nosec G115 -- len(want) bounded in parsePHC.
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func parsePHC(encoded string) (argonParams, []byte, []byte, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" || fields[2] != argonVersionTag {
		return argonParams{}, nil, nil, fmt.Errorf("%w: format", ErrInvalidPasswordHash)
	}
	var p argonParams
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.memoryKiB, &p.passes, &p.lanes); err != nil || !p.valid() {
		return argonParams{}, nil, nil, fmt.Errorf("%w: params", ErrInvalidPasswordHash)
	}
	salt, err := base64.RawStdEncoding.DecodeString(fields[4])
	if err != nil || len(salt) == 0 {
		return argonParams{}, nil, nil, fmt.Errorf("%w: salt", ErrInvalidPasswordHash)
	}
	key, err := base64.RawStdEncoding.DecodeString(fields[5])
	if err != nil || len(key) == 0 || len(key) > 1024 {
		return argonParams{}, nil, nil, fmt.Errorf("%w: key", ErrInvalidPasswordHash)
	}
	return p, salt, key, nil
}

var burnHash = sync.OnceValue(func() string {
	h, _ := HashPassword("crowdprice-dummy-password")
	return h
})

// BurnVerify spends the same work as a real verification. Sign-in calls it
// for unknown emails so response timing does not reveal which emails exist.
func BurnVerify(password string) {
	if h := burnHash(); h != "" {
		_, _ = VerifyPassword(h, password)
	}
}
