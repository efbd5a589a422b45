package codec

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// ObjID is the binary address of an object: either SHA-256 of its plaintext
// payload, or HMAC-SHA-256 keyed on the repository's public identifier when
// encryption is enabled.
type ObjID []byte

// Hex renders the address as the lowercase hex string used in storage keys
// and log lines.
func (id ObjID) Hex() string {
	return hex.EncodeToString(id)
}

// DeriveAddress computes an object's address from its plaintext payload.
// When macKey is nil, the address is a plain SHA-256 digest; otherwise it is
// HMAC-SHA-256 keyed on macKey (the repository's stable public identifier).
func DeriveAddress(payload []byte, macKey []byte) ObjID {
	if macKey == nil {
		sum := sha256.Sum256(payload)
		return sum[:]
	}
	mac := hmac.New(sha256.New, macKey)
	mac.Write(payload)
	return mac.Sum(nil)
}

// Equal compares two addresses in constant time, as required for integrity
// checks on downloaded objects.
func Equal(a, b ObjID) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// ObjectKey returns the storage-relative key an object is uploaded under:
// objects/{first 3 hex chars}/{full hex address}.
func ObjectKey(id ObjID) string {
	h := id.Hex()
	if len(h) < 3 {
		return "objects/" + h + "/" + h
	}
	return "objects/" + h[:3] + "/" + h
}
