package chain

import (
	"strings"
	"testing"
)

func TestFindProof_knownAnswers(t *testing.T) {
	cases := []struct {
		difficulty int
		previous   int64
		want       int64
	}{
		{4, 1, 533},
		{2, 1, 308},
		{4, 533, 45293},
	}
	for _, tc := range cases {
		got := NewProofOfWork(tc.difficulty).FindProof(tc.previous)
		if got != tc.want {
			t.Errorf("difficulty %d FindProof(%d) = %d, want %d", tc.difficulty, tc.previous, got, tc.want)
		}
	}
}

func TestFindProof_returnsFirstValidCandidate(t *testing.T) {
	pow := NewProofOfWork(2)
	proof := pow.FindProof(7)
	if !pow.Verify(proof, 7) {
		t.Fatalf("Verify(%d, 7) = false for a found proof", proof)
	}
	for c := int64(1); c < proof; c++ {
		if pow.Verify(c, 7) {
			t.Fatalf("candidate %d verifies but FindProof returned %d", c, proof)
		}
	}
}

func TestVerify_matchesDigestPrefix(t *testing.T) {
	pow := NewProofOfWork(4)
	digest := sha256Hex([]byte(powInput(533, 1)))
	if !strings.HasPrefix(digest, "0000") {
		t.Fatalf("digest of 533²-1² = %s, expected four leading zeros", digest)
	}
	if !pow.Verify(533, 1) {
		t.Error("Verify(533, 1) = false")
	}
	if pow.Verify(534, 1) {
		t.Error("Verify(534, 1) = true")
	}
}

func TestNewProofOfWork_defaultDifficulty(t *testing.T) {
	if d := NewProofOfWork(0).Difficulty(); d != DefaultDifficulty {
		t.Errorf("Difficulty() = %d, want %d", d, DefaultDifficulty)
	}
}

func TestPowInput(t *testing.T) {
	cases := []struct {
		proof, previous int64
		want            string
	}{
		{533, 1, "284088"},
		{3, 5, "-16"},
		{3_000_000_000, 1, "8999999999999999999"},
		{1, 3_000_000_000, "-8999999999999999999"},
	}
	for _, tc := range cases {
		if got := powInput(tc.proof, tc.previous); got != tc.want {
			t.Errorf("powInput(%d, %d) = %s, want %s", tc.proof, tc.previous, got, tc.want)
		}
	}
}
