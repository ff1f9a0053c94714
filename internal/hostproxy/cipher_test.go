package hostproxy

import "testing"

func TestCipherRoundTrips(t *testing.T) {
	enc, err := NewCipher(12345)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	dec, err := NewCipher(12345)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	plain := []byte("hello from the relay")
	cipherText := make([]byte, len(plain))
	enc.Encrypt(cipherText, plain)

	recovered := make([]byte, len(cipherText))
	dec.Decrypt(recovered, cipherText)

	if string(recovered) != string(plain) {
		t.Fatalf("round trip mismatch: got %q want %q", recovered, plain)
	}
}

func TestCipherDifferentSeedsDiverge(t *testing.T) {
	a, _ := NewCipher(1)
	b, _ := NewCipher(2)

	plain := []byte("same plaintext, different seeds")
	outA := make([]byte, len(plain))
	outB := make([]byte, len(plain))
	a.Encrypt(outA, plain)
	b.Encrypt(outB, plain)

	if string(outA) == string(outB) {
		t.Fatal("expected different seeds to produce different ciphertext")
	}
}
