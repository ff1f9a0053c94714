package hostproxy

import (
	"crypto/sha256"
	"encoding/binary"

	"golang.org/x/crypto/chacha20"
)

// Cipher is a keyed stream cipher applied to relay frames, generalizing
// the teacher's hand-rolled XOR rolling cipher (Cipher.java: separate
// encode/decode key arrays updated after every frame) to a real stream
// cipher from the teacher's own golang.org/x/crypto dependency. Two
// independent keystreams are kept — one per direction — mirroring the
// teacher's separate eb/db state even though both derive from the same
// handshake seed.
type Cipher struct {
	enc *chacha20.Cipher
	dec *chacha20.Cipher
}

// deriveKeyNonce expands the 4-byte handshake seed into a 32-byte key and
// 12-byte nonce via SHA-256, so both sides of a relay session agree on
// cipher state from the same seed value without a separate key exchange.
func deriveKeyNonce(seed int32) (key [32]byte, nonce [12]byte) {
	var seedBytes [4]byte
	binary.LittleEndian.PutUint32(seedBytes[:], uint32(seed))
	sum := sha256.Sum256(seedBytes[:])
	copy(key[:], sum[:32])
	copy(nonce[:], sum[4:16])
	return key, nonce
}

// NewCipher builds a Cipher seeded for one relay session.
func NewCipher(seed int32) (*Cipher, error) {
	key, nonce := deriveKeyNonce(seed)
	enc, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		return nil, err
	}
	dec, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		return nil, err
	}
	return &Cipher{enc: enc, dec: dec}, nil
}

// Encrypt XORs src's keystream into dst. dst and src may overlap exactly.
func (c *Cipher) Encrypt(dst, src []byte) { c.enc.XORKeyStream(dst, src) }

// Decrypt XORs src's keystream into dst. dst and src may overlap exactly.
func (c *Cipher) Decrypt(dst, src []byte) { c.dec.XORKeyStream(dst, src) }
