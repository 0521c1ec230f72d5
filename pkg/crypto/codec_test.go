package crypto

import (
	"bytes"
	"encoding/base64"
	"testing"

	"tpabridge/pkg/errorx"
)

func testKey(b byte) []byte {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = b
	}
	return key
}

func TestCodecRoundTrip(t *testing.T) {
	codec, err := NewCodec(testKey(0x01))
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	cases := []string{"2500.00", "PAT-88231", "", "金额字段", "0.01"}
	for _, plaintext := range cases {
		ciphertext, err := codec.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt(%q) failed: %v", plaintext, err)
		}
		if ciphertext == plaintext && plaintext != "" {
			t.Errorf("ciphertext equals plaintext: %q", plaintext)
		}

		got, err := codec.Decrypt(ciphertext)
		if err != nil {
			t.Fatalf("Decrypt failed: %v", err)
		}
		if got != plaintext {
			t.Errorf("roundtrip mismatch: got %q, want %q", got, plaintext)
		}
	}
}

func TestCodecEncryptNotDeterministic(t *testing.T) {
	codec, _ := NewCodec(testKey(0x01))

	c1, _ := codec.Encrypt("2500.00")
	c2, _ := codec.Encrypt("2500.00")
	if c1 == c2 {
		t.Error("two encryptions of the same plaintext produced identical ciphertext")
	}
}

func TestCodecDecryptTamper(t *testing.T) {
	codec, _ := NewCodec(testKey(0x01))
	ciphertext, _ := codec.Encrypt("2500.00")

	t.Run("flipped byte", func(t *testing.T) {
		raw, _ := base64.StdEncoding.DecodeString(ciphertext)
		raw[len(raw)-1] ^= 0xFF
		tampered := base64.StdEncoding.EncodeToString(raw)

		_, err := codec.Decrypt(tampered)
		if errorx.KindOf(err) != errorx.KindIntegrity {
			t.Errorf("tampered ciphertext: got kind %q, want integrity", errorx.KindOf(err))
		}
	})

	t.Run("invalid base64", func(t *testing.T) {
		_, err := codec.Decrypt("not-base64!!!")
		if errorx.KindOf(err) != errorx.KindIntegrity {
			t.Errorf("corrupt encoding: got kind %q, want integrity", errorx.KindOf(err))
		}
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := codec.Decrypt(base64.StdEncoding.EncodeToString([]byte{0x01, 0x02}))
		if errorx.KindOf(err) != errorx.KindIntegrity {
			t.Errorf("truncated ciphertext: got kind %q, want integrity", errorx.KindOf(err))
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		other, _ := NewCodec(testKey(0x02))
		_, err := other.Decrypt(ciphertext)
		if errorx.KindOf(err) != errorx.KindIntegrity {
			t.Errorf("key mismatch: got kind %q, want integrity", errorx.KindOf(err))
		}
	})
}

func TestCodecKeySize(t *testing.T) {
	if _, err := NewCodec([]byte("short")); err == nil {
		t.Error("expected error for short key")
	}
	if _, err := NewCodec(bytes.Repeat([]byte{0x01}, 64)); err == nil {
		t.Error("expected error for oversized key")
	}
}

func TestRotatingCodec(t *testing.T) {
	v1, _ := NewCodec(testKey(0x01))
	cipherV1, _ := v1.Encrypt("2500.00")
	versionedV1 := "v1:" + cipherV1

	rotated, err := NewRotatingCodec(testKey(0x02), 2)
	if err != nil {
		t.Fatalf("NewRotatingCodec failed: %v", err)
	}
	if err := rotated.AddPreviousKey(testKey(0x01), 1); err != nil {
		t.Fatalf("AddPreviousKey failed: %v", err)
	}

	t.Run("decrypt old version", func(t *testing.T) {
		got, err := rotated.Decrypt(versionedV1)
		if err != nil {
			t.Fatalf("Decrypt v1 ciphertext failed: %v", err)
		}
		if got != "2500.00" {
			t.Errorf("got %q, want 2500.00", got)
		}
	})

	t.Run("encrypt carries current version", func(t *testing.T) {
		ciphertext, err := rotated.Encrypt("100.00")
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		if ciphertext[:3] != "v2:" {
			t.Errorf("ciphertext prefix = %q, want v2:", ciphertext[:3])
		}
		got, err := rotated.Decrypt(ciphertext)
		if err != nil || got != "100.00" {
			t.Errorf("roundtrip failed: got %q, err %v", got, err)
		}
	})

	t.Run("unknown version fails closed", func(t *testing.T) {
		_, err := rotated.Decrypt("v9:" + cipherV1)
		if errorx.KindOf(err) != errorx.KindIntegrity {
			t.Errorf("unknown version: got kind %q, want integrity", errorx.KindOf(err))
		}
	})

	t.Run("re-encryption", func(t *testing.T) {
		if !rotated.NeedsReEncryption(versionedV1) {
			t.Error("v1 ciphertext should need re-encryption")
		}

		reencrypted, err := rotated.ReEncrypt(versionedV1)
		if err != nil {
			t.Fatalf("ReEncrypt failed: %v", err)
		}
		if rotated.NeedsReEncryption(reencrypted) {
			t.Error("re-encrypted ciphertext should carry current version")
		}
		got, err := rotated.Decrypt(reencrypted)
		if err != nil || got != "2500.00" {
			t.Errorf("re-encrypted roundtrip failed: got %q, err %v", got, err)
		}
	})
}
