package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

var phcB64 = base64.RawStdEncoding

// phc is a decoded $argon2id$v=19$m=..,t=..,p=..$salt$key string.
type phc struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

func (p phc) String() string {
	return "$argon2id$v=" + strconv.Itoa(argon2.Version) +
		"$m=" + strconv.FormatUint(uint64(p.params.MemoryKiB), 10) +
		",t=" + strconv.FormatUint(uint64(p.params.Iterations), 10) +
		",p=" + strconv.FormatUint(uint64(p.params.Parallelism), 10) +
		"$" + phcB64.EncodeToString(p.salt) +
		"$" + phcB64.EncodeToString(p.key)
}

func derive(password string, salt []byte, p Argon2idParams, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Parallelism, keyLen)
}

// Hash validates password against the policy and returns an Argon2id PHC string.
func (c Config) Hash(password string) (string, error) {
	if err := c.Validate(password); err != nil {
		return "", err
	}
	salt := make([]byte, c.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}
	return phc{
		params: c.Params,
		salt:   salt,
		key:    derive(password, salt, c.Params, c.Params.KeyLength),
	}.String(), nil
}

// Verify reports whether password matches encodedHash. Argon2id and bcrypt
// hashes are accepted; anything else, or an Argon2id hash whose cost exceeds
// twice the configured params, yields ErrInvalidHash.
func (c Config) Verify(encodedHash, password string) (bool, error) {
	if isBcrypt(encodedHash) {
		return verifyBcrypt(encodedHash, password)
	}
	h, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	if !affordable(h.params, c.Params) {
		return false, ErrInvalidHash
	}
	got := derive(password, h.salt, h.params, uint32(len(h.key))) // #nosec G115 -- bounded by affordable.
	return subtle.ConstantTimeCompare(got, h.key) == 1, nil
}

// NeedsRehash reports whether encodedHash should be replaced on the next
// successful login: bcrypt, or Argon2id weaker than the configured params.
func (c Config) NeedsRehash(encodedHash string) bool {
	if isBcrypt(encodedHash) {
		return true
	}
	h, err := parsePHC(encodedHash)
	if err != nil {
		return false
	}
	p := h.params
	return p.MemoryKiB < c.Params.MemoryKiB || p.Iterations < c.Params.Iterations || p.KeyLength < c.Params.KeyLength
}

func isBcrypt(encoded string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(encoded, prefix) {
			return true
		}
	}
	return false
}

func verifyBcrypt(encoded, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) || errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return false, nil
	}
	return false, ErrInvalidHash
}

// affordable bounds stored cost parameters so a tampered hash cannot make a
// login allocate arbitrary memory.
func affordable(got, limit Argon2idParams) bool {
	switch {
	case got.MemoryKiB > 2*limit.MemoryKiB, got.Iterations > 2*limit.Iterations, got.Parallelism > 2*limit.Parallelism:
		return false
	case got.SaltLength < 8 || got.SaltLength > 64:
		return false
	case got.KeyLength < 16 || got.KeyLength > 128:
		return false
	}
	return true
}

func parsePHC(encoded string) (phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" || parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return phc{}, ErrInvalidHash
	}

	var mem, iter, par uint64
	for _, kv := range strings.Split(parts[3], ",") {
		name, val, ok := strings.Cut(kv, "=")
		if !ok {
			return phc{}, ErrInvalidHash
		}
		n, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return phc{}, ErrInvalidHash
		}
		switch name {
		case "m":
			mem = n
		case "t":
			iter = n
		case "p":
			par = n
		default:
			return phc{}, ErrInvalidHash
		}
	}
	if mem == 0 || iter == 0 || par == 0 || par > 255 {
		return phc{}, ErrInvalidHash
	}

	salt, err := phcB64.DecodeString(parts[4])
	if err != nil {
		return phc{}, ErrInvalidHash
	}
	key, err := phcB64.DecodeString(parts[5])
	if err != nil {
		return phc{}, ErrInvalidHash
	}
	return phc{
		params: Argon2idParams{
			MemoryKiB:   uint32(mem),  // #nosec G115 -- ParseUint bitSize 32.
			Iterations:  uint32(iter), // #nosec G115 -- ParseUint bitSize 32.
			Parallelism: uint8(par),   // #nosec G115 -- checked <= 255.
			SaltLength:  uint32(len(salt)),
			KeyLength:   uint32(len(key)),
		},
		salt: salt,
		key:  key,
	}, nil
}
