package binlog

import (
	"crypto/sha512"

	"golang.org/x/crypto/pbkdf2"
)

// DbKeyKind discriminates the DbKey sum type (spec §3: "Empty, Password,
// RawKey"). Used uniformly for both binlog and SQL store (§4.4).
type DbKeyKind int

const (
	DbKeyEmpty DbKeyKind = iota
	DbKeyPassword
	DbKeyRaw
)

// DbKey is the unified encryption key input (spec §3, GLOSSARY).
type DbKey struct {
	Kind     DbKeyKind
	Password string
	Raw      [32]byte
}

// EmptyKey returns the "no encryption" key.
func EmptyKey() DbKey { return DbKey{Kind: DbKeyEmpty} }

// PasswordKey returns a password-derived key (KDF applied at Derive time).
func PasswordKey(password string) DbKey {
	return DbKey{Kind: DbKeyPassword, Password: password}
}

// RawKeyFrom returns a raw 32-byte key used as-is (identity "derivation").
func RawKeyFrom(raw [32]byte) DbKey {
	return DbKey{Kind: DbKeyRaw, Raw: raw}
}

// IsEmpty reports whether this key configures no encryption at all.
func (k DbKey) IsEmpty() bool {
	return k.Kind == DbKeyEmpty
}

// pbkdf2Iterations is the iteration count used for password-derived binlog
// and SQL-store keys. Spec §9 "Open questions" notes the exact count used
// upstream is not recoverable from the available excerpts; we pick a
// value consistent with the moderate, interactive-unlock cost tdlib's KDF
// targets (too low to threaten responsiveness of start_up, high enough to
// not be a no-op) and keep it here as the single source of truth so every
// caller derives identically.
const pbkdf2Iterations = 60000

// deriveKey turns a DbKey plus a 16-byte persisted salt into a raw
// encryption key (spec §4.3: "derived from the DbKey via a slow KDF
// (PBKDF2-SHA512 with a persisted salt for Password; identity for
// RawKey)"). DbKeyEmpty yields a nil key (no encryption).
func deriveKey(key DbKey, salt []byte) []byte {
	switch key.Kind {
	case DbKeyEmpty:
		return nil
	case DbKeyRaw:
		out := make([]byte, 32)
		copy(out, key.Raw[:])
		return out
	case DbKeyPassword:
		return pbkdf2.Key(
			[]byte(key.Password), salt, pbkdf2Iterations, 32, sha512.New,
		)
	default:
		return nil
	}
}
