package cryptoframe

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

// Scrypt parameters for password-based key derivation. N=2^15 keeps
// unwrapping under a second on commodity hardware while still costing an
// attacker real money per guess.
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 16
)

// RecoveryObject is the well-known object stored both locally and in the
// repository (spec.md §4.2, §6) that lets a lost cache be fully recovered
// from only the password: the salt and KDF parameters needed to re-derive
// the wrapping key, and the repository's private key sealed under it.
type RecoveryObject struct {
	PublicKey    [32]byte
	Salt         []byte
	ScryptN      int
	ScryptR      int
	ScryptP      int
	WrappedNonce [24]byte
	Wrapped      []byte // secretbox-sealed private key
}

// WrapPrivateKey derives a symmetric key from password via scrypt and seals
// kp.Private under it, producing a RecoveryObject safe to store in
// plaintext next to the repository.
func WrapPrivateKey(kp *KeyPair, password []byte) (*RecoveryObject, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("cryptoframe: wrap: generate salt: %w", err)
	}

	key, err := scrypt.Key(password, salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("cryptoframe: wrap: derive key: %w", err)
	}

	ro := &RecoveryObject{
		PublicKey: kp.Public,
		Salt:      salt,
		ScryptN:   scryptN,
		ScryptR:   scryptR,
		ScryptP:   scryptP,
	}
	if _, err := rand.Read(ro.WrappedNonce[:]); err != nil {
		return nil, fmt.Errorf("cryptoframe: wrap: generate nonce: %w", err)
	}

	var symKey [32]byte
	copy(symKey[:], key)
	ro.Wrapped = secretbox.Seal(nil, kp.Private[:], &ro.WrappedNonce, &symKey)

	return ro, nil
}

// UnwrapPrivateKey re-derives the wrapping key from password and the
// recovery object's stored salt/KDF parameters, then opens the sealed
// private key.
func UnwrapPrivateKey(ro *RecoveryObject, password []byte) (*KeyPair, error) {
	key, err := scrypt.Key(password, ro.Salt, ro.ScryptN, ro.ScryptR, ro.ScryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("cryptoframe: unwrap: derive key: %w", err)
	}

	var symKey [32]byte
	copy(symKey[:], key)

	priv, ok := secretbox.Open(nil, ro.Wrapped, &ro.WrappedNonce, &symKey)
	if !ok {
		return nil, fmt.Errorf("cryptoframe: unwrap: wrong password or corrupted recovery object")
	}

	kp := &KeyPair{Public: ro.PublicKey}
	copy(kp.Private[:], priv)
	return kp, nil
}
