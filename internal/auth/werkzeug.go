// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/sha1" //nolint:gosec // pbkdf2:sha1 hashes exist in older deployments
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"hash"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// Werkzeug's generate_password_hash writes "<method>$<salt>$<hex key>",
// where method is "pbkdf2:<digest>:<iterations>" or "scrypt:<n>:<r>:<p>".
// The salt is used as its UTF-8 text, not decoded.

// Bounds accepted when decoding stored werkzeug hashes.
const (
	maxPBKDF2Iterations = 10_000_000
	maxScryptMemory     = 256 << 20 // bytes, 128 * n * r
	maxScryptP          = 16
	maxWerkzeugKeyLen   = 256
)

var pbkdf2Digests = map[string]func() hash.Hash{
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
}

func isWerkzeug(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "pbkdf2:") || strings.HasPrefix(encodedHash, "scrypt:")
}

func verifyWerkzeug(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 3 || parts[1] == "" {
		return false
	}
	want, err := hex.DecodeString(parts[2])
	if err != nil || len(want) == 0 || len(want) > maxWerkzeugKeyLen {
		return false
	}
	got, err := werkzeugKey(parts[0], []byte(password), []byte(parts[1]), len(want))
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(got, want) == 1
}

func werkzeugKey(method string, password, salt []byte, keyLen int) ([]byte, error) {
	fields := strings.Split(method, ":")
	switch fields[0] {
	case "pbkdf2":
		if len(fields) != 3 {
			return nil, invalidWerkzeug(method)
		}
		digest, ok := pbkdf2Digests[fields[1]]
		if !ok {
			return nil, invalidWerkzeug(method)
		}
		iterations, err := strconv.Atoi(fields[2])
		if err != nil || iterations < 1 || iterations > maxPBKDF2Iterations {
			return nil, invalidWerkzeug(method)
		}
		return pbkdf2.Key(password, salt, iterations, keyLen, digest), nil
	case "scrypt":
		if len(fields) != 4 {
			return nil, invalidWerkzeug(method)
		}
		n, errN := strconv.Atoi(fields[1])
		r, errR := strconv.Atoi(fields[2])
		p, errP := strconv.Atoi(fields[3])
		if errN != nil || errR != nil || errP != nil ||
			n < 2 || r < 1 || p < 1 || p > maxScryptP ||
			int64(n)*int64(r) > maxScryptMemory/128 {
			return nil, invalidWerkzeug(method)
		}
		key, err := scrypt.Key(password, salt, n, r, p, keyLen)
		if err != nil {
			return nil, oops.Code("AUTH_INVALID_HASH").With("method", method).Wrap(err)
		}
		return key, nil
	default:
		return nil, invalidWerkzeug(method)
	}
}

func invalidWerkzeug(method string) error {
	return oops.Code("AUTH_INVALID_HASH").
		With("method", method).
		Errorf("unsupported werkzeug hash method")
}
