package webhook

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestVerifySignature(t *testing.T) {
	secret := "test-secret-key"
	body := []byte(`{"topic":"action.launch"}`)
	prefixed := Signature(body, secret)
	plain := strings.TrimPrefix(prefixed, "sha256=")

	tests := []struct {
		name      string
		body      []byte
		signature string
		secret    string
		wantErr   bool
	}{
		{"prefixed", body, prefixed, secret, false},
		{"plain hex", body, plain, secret, false},
		{"surrounding space", body, " " + prefixed + " ", secret, false},
		{"wrong signature", body, "sha256=" + strings.Repeat("00", 32), secret, true},
		{"tampered body", []byte(`{"topic":"action.discover"}`), prefixed, secret, true},
		{"wrong secret", body, prefixed, "other", true},
		{"empty signature", body, "", secret, true},
		{"empty secret", body, prefixed, "", true},
		{"malformed hex", body, "sha256=zz", secret, true},
		{"truncated", body, plain[:10], secret, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifySignature(tt.body, tt.signature, tt.secret)
			if (err != nil) != tt.wantErr {
				t.Fatalf("verifySignature() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && err.Error() != "webhook verification failed" {
				t.Errorf("error leaks detail: %v", err)
			}
		})
	}
}

func TestSignatureFormat(t *testing.T) {
	sig := Signature([]byte("x"), "k")
	if !strings.HasPrefix(sig, "sha256=") {
		t.Fatalf("signature %q missing prefix", sig)
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(sig, "sha256="))
	if err != nil || len(raw) != 32 {
		t.Fatalf("signature %q is not a hex sha256", sig)
	}
}
