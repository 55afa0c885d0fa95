package qrtoken

import (
	"strings"
	"testing"
	"time"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec("unit-test-access-secret")
	if err != nil {
		t.Fatalf("create codec: %v", err)
	}
	return c
}

func TestNewCodec_EmptySecret(t *testing.T) {
	if _, err := NewCodec(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	codec := newTestCodec(t)
	payload := Payload{
		Code:       "c0ffee",
		MediLinkID: "ML-A1B2C3D4",
		Perms:      []string{"demographics", "consultations"},
		ExpiresAt:  time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}

	token, err := codec.Encode(payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.ContainsAny(token, "+/=") {
		t.Errorf("token must be base64url without padding, got %q", token)
	}

	got, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Code != payload.Code {
		t.Errorf("code mismatch: %s != %s", got.Code, payload.Code)
	}
	if got.MediLinkID != payload.MediLinkID {
		t.Errorf("medilink id mismatch: %s != %s", got.MediLinkID, payload.MediLinkID)
	}
	if len(got.Perms) != 2 {
		t.Errorf("expected 2 perms, got %v", got.Perms)
	}
	if !got.ExpiresAt.Equal(payload.ExpiresAt) {
		t.Errorf("expiry mismatch: %v != %v", got.ExpiresAt, payload.ExpiresAt)
	}
}

func TestEncode_NoncesDiffer(t *testing.T) {
	codec := newTestCodec(t)
	payload := Payload{Code: "abc", MediLinkID: "ML-00000000", ExpiresAt: time.Now()}

	t1, err := codec.Encode(payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	t2, err := codec.Encode(payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if t1 == t2 {
		t.Error("expected distinct tokens for the same payload")
	}
}

func TestDecode_Garbage(t *testing.T) {
	codec := newTestCodec(t)

	if _, err := codec.Decode("not!!valid&&base64"); err == nil {
		t.Error("expected error for invalid base64")
	}
	if _, err := codec.Decode("YWJj"); err == nil {
		t.Error("expected error for token shorter than nonce")
	}
}

func TestDecode_Tampered(t *testing.T) {
	codec := newTestCodec(t)
	token, err := codec.Encode(Payload{Code: "abc", MediLinkID: "ML-00000000", ExpiresAt: time.Now()})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// Flip a character near the end of the ciphertext
	tampered := []byte(token)
	last := len(tampered) - 1
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}

	if _, err := codec.Decode(string(tampered)); err == nil {
		t.Error("expected authentication failure for tampered token")
	}
}

func TestDecode_WrongSecret(t *testing.T) {
	codec := newTestCodec(t)
	other, err := NewCodec("a-different-secret")
	if err != nil {
		t.Fatalf("create codec: %v", err)
	}

	token, err := codec.Encode(Payload{Code: "abc", MediLinkID: "ML-00000000", ExpiresAt: time.Now()})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if _, err := other.Decode(token); err == nil {
		t.Error("expected failure decoding with a different secret")
	}
}

func TestSameSecretSharesKey(t *testing.T) {
	// Two codecs with the same secret must interoperate: the salt and
	// iteration count are fixed for exactly this reason.
	a := newTestCodec(t)
	b := newTestCodec(t)

	token, err := a.Encode(Payload{Code: "abc", MediLinkID: "ML-11111111", ExpiresAt: time.Now()})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := b.Decode(token); err != nil {
		t.Errorf("expected second codec to decode token: %v", err)
	}
}

func TestPayload_Expired(t *testing.T) {
	p := Payload{ExpiresAt: time.Now().Add(-time.Minute)}
	if !p.Expired(time.Now()) {
		t.Error("expected payload to be expired")
	}

	p.ExpiresAt = time.Now().Add(time.Minute)
	if p.Expired(time.Now()) {
		t.Error("expected payload to be valid")
	}
}

func TestImage_ProducesPNG(t *testing.T) {
	codec := newTestCodec(t)
	token, err := codec.Encode(Payload{Code: "abc", MediLinkID: "ML-22222222", ExpiresAt: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	png, err := Image(token, 0)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(png) < 8 || string(png[1:4]) != "PNG" {
		t.Error("expected PNG magic bytes")
	}
}
