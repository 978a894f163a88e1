package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

const hashScheme = "pbkdf2_sha256"

// Hasher holds the PBKDF2-SHA256 cost parameters used when writing new
// hashes. Verification reads the parameters back out of the encoded hash,
// so raising the defaults never invalidates stored credentials.
type Hasher struct {
	Iterations int
	SaltLength int
	KeyLength  int
}

// DefaultHasher is the cost profile for new hashes.
var DefaultHasher = Hasher{Iterations: 210000, SaltLength: 16, KeyLength: 32}

// Hash derives an encoded hash in the
// "pbkdf2_sha256$<iterations>$<salt>$<key>" form.
func (h Hasher) Hash(password string) (string, error) {
	password = strings.TrimSpace(password)
	if password == "" {
		return "", fmt.Errorf("auth: empty password")
	}
	if h.Iterations <= 0 || h.SaltLength <= 0 || h.KeyLength <= 0 {
		return "", fmt.Errorf("auth: invalid hasher parameters")
	}

	salt := make([]byte, h.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key := deriveKey([]byte(password), salt, h.Iterations, h.KeyLength)
	return strings.Join([]string{
		hashScheme,
		strconv.Itoa(h.Iterations),
		base64.RawURLEncoding.EncodeToString(salt),
		base64.RawURLEncoding.EncodeToString(key),
	}, "$"), nil
}

// NeedsRehash reports whether encoded was written with weaker parameters
// than h. Callers typically re-hash on the next successful login.
func (h Hasher) NeedsRehash(encoded string) bool {
	p, err := parseHash(encoded)
	if err != nil {
		return true
	}
	return p.iterations < h.Iterations || len(p.salt) < h.SaltLength || len(p.key) < h.KeyLength
}

// HashPassword hashes with DefaultHasher.
func HashPassword(password string) (string, error) {
	return DefaultHasher.Hash(password)
}

// CheckPassword verifies password against an encoded hash in constant time.
func CheckPassword(password, encoded string) bool {
	p, err := parseHash(encoded)
	if err != nil {
		return false
	}
	derived := deriveKey([]byte(password), p.salt, p.iterations, len(p.key))
	return subtle.ConstantTimeCompare(derived, p.key) == 1
}

type hashParams struct {
	iterations int
	salt       []byte
	key        []byte
}

func parseHash(encoded string) (hashParams, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != hashScheme {
		return hashParams{}, fmt.Errorf("auth: unrecognized hash format")
	}

	iters, err := strconv.Atoi(parts[1])
	if err != nil || iters <= 0 {
		return hashParams{}, fmt.Errorf("auth: invalid iteration count")
	}
	salt, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil || len(salt) == 0 {
		return hashParams{}, fmt.Errorf("auth: invalid salt")
	}
	key, err := base64.RawURLEncoding.DecodeString(parts[3])
	if err != nil || len(key) == 0 {
		return hashParams{}, fmt.Errorf("auth: invalid key")
	}

	return hashParams{iterations: iters, salt: salt, key: key}, nil
}

// deriveKey is PBKDF2 (RFC 2898) with HMAC-SHA256 as the PRF.
func deriveKey(password, salt []byte, iterations, keyLen int) []byte {
	prf := hmac.New(sha256.New, password)
	blockCount := (keyLen + prf.Size() - 1) / prf.Size()

	var ctr [4]byte
	out := make([]byte, 0, blockCount*prf.Size())
	for block := 1; block <= blockCount; block++ {
		binary.BigEndian.PutUint32(ctr[:], uint32(block))

		prf.Reset()
		prf.Write(salt)
		prf.Write(ctr[:])
		u := prf.Sum(nil)

		acc := append([]byte(nil), u...)
		for i := 1; i < iterations; i++ {
			prf.Reset()
			prf.Write(u)
			u = prf.Sum(nil)
			for j := range acc {
				acc[j] ^= u[j]
			}
		}
		out = append(out, acc...)
	}
	return out[:keyLen]
}
