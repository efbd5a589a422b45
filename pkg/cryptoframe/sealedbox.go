package cryptoframe

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

// KeyPair is a NaCl box public/private key pair.
type KeyPair struct {
	Public  [32]byte
	Private [32]byte
}

// GenerateKeyPair creates a fresh NaCl box key pair for a new repository.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptoframe: generate key pair: %w", err)
	}
	return &KeyPair{Public: *pub, Private: *priv}, nil
}

// sealedBoxNonce derives a deterministic nonce from the ephemeral and
// recipient public keys, in the manner of libsodium's crypto_box_seal but
// with a truncated SHA-256 where libsodium uses BLAKE2b, so these boxes are
// not interchangeable with libsodium's. A sealed box needs no nonce exchange
// because the nonce is fixed as a function of the two public keys, and the
// ephemeral key is single-use.
func sealedBoxNonce(ephemeralPub, recipientPub *[32]byte) *[24]byte {
	h := sha256.New()
	h.Write(ephemeralPub[:])
	h.Write(recipientPub[:])
	sum := h.Sum(nil)

	var nonce [24]byte
	copy(nonce[:], sum[:24])
	return &nonce
}

// SealAnonymous encrypts msg to recipientPub using a fresh, single-use
// ephemeral key pair. Only the holder of the matching private key can
// decrypt — writers never need the private key, matching spec.md §4.2's
// "writers need only the public key" requirement.
func SealAnonymous(msg []byte, recipientPub *[32]byte) ([]byte, error) {
	ephemeralPub, ephemeralPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptoframe: seal: generate ephemeral key: %w", err)
	}

	nonce := sealedBoxNonce(ephemeralPub, recipientPub)
	sealed := box.Seal(nil, msg, nonce, recipientPub, ephemeralPriv)

	out := make([]byte, 0, 32+len(sealed))
	out = append(out, ephemeralPub[:]...)
	out = append(out, sealed...)
	return out, nil
}

// OpenAnonymous decrypts a sealed box produced by SealAnonymous.
func OpenAnonymous(sealed []byte, recipientPub, recipientPriv *[32]byte) ([]byte, error) {
	if len(sealed) < 32 {
		return nil, fmt.Errorf("cryptoframe: open: ciphertext too short")
	}

	var ephemeralPub [32]byte
	copy(ephemeralPub[:], sealed[:32])
	ciphertext := sealed[32:]

	nonce := sealedBoxNonce(&ephemeralPub, recipientPub)
	msg, ok := box.Open(nil, ciphertext, nonce, &ephemeralPub, recipientPriv)
	if !ok {
		return nil, fmt.Errorf("cryptoframe: open: decryption failed")
	}
	return msg, nil
}
