package session

import (
	"bytes"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	sealed, err := seal("passphrase", []byte("household-token-value"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	plain, err := open("passphrase", sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(plain, []byte("household-token-value")) {
		t.Errorf("round trip = %q, want %q", plain, "household-token-value")
	}
}

func TestOpenWrongPassphrase(t *testing.T) {
	sealed, err := seal("right", []byte("secret"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	if _, err := open("wrong", sealed); err == nil {
		t.Error("expected decrypt failure with wrong passphrase")
	}
}

func TestOpenTruncatedBlob(t *testing.T) {
	if _, err := open("passphrase", []byte("short")); err == nil {
		t.Error("expected error for truncated blob")
	}
}

func TestSealUniqueOutputs(t *testing.T) {
	a, err := seal("passphrase", []byte("same"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	b, err := seal("passphrase", []byte("same"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("expected fresh salt/nonce to produce distinct ciphertexts")
	}
}
