package common

import (
	"encoding/hex"
	"testing"
)

func TestMakeRandHexString_LengthAndHex(t *testing.T) {
	const n = 16
	s, err := MakeRandHexString(n)
	if err != nil {
		t.Fatalf("MakeRandHexString error: %v", err)
	}
	if len(s) != n*2 {
		t.Fatalf("expected length %d, got %d", n*2, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		t.Fatalf("result is not valid hex: %v", err)
	}
}

func TestMakeRandHexString_Entropy(t *testing.T) {
	const n = 32
	a, err := MakeRandHexString(n)
	if err != nil {
		t.Fatalf("MakeRandHexString error: %v", err)
	}
	b, err := MakeRandHexString(n)
	if err != nil {
		t.Fatalf("MakeRandHexString error: %v", err)
	}
	if a == b {
		t.Logf("warning: two MakeRandHexString(%d) results are identical; extremely unlikely", n)
	}
}

func TestHashSHA256Hex_StableAndDistinct(t *testing.T) {
	if HashSHA256Hex("token-a") != HashSHA256Hex("token-a") {
		t.Fatal("digest is not deterministic")
	}
	if HashSHA256Hex("token-a") == HashSHA256Hex("token-b") {
		t.Fatal("distinct inputs produced the same digest")
	}
	if len(HashSHA256Hex("x")) != 64 {
		t.Fatal("unexpected digest length")
	}
}
