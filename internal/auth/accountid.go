// Package auth derives account identifiers and keeps password-reset tokens.
package auth

import (
	"crypto/sha1"
	"encoding/hex"
)

// AccountIDLength is the number of hex characters kept from the digest.
const AccountIDLength = 12

// AccountID derives the account id of an e-mail address: the first
// AccountIDLength hex characters of SHA-1(salt + email). The id is also the
// account's schema and database user name.
func AccountID(salt, email string) string {
	sum := sha1.Sum([]byte(salt + email))
	return hex.EncodeToString(sum[:])[:AccountIDLength]
}
