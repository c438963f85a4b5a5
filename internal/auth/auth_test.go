package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewService("test-secret", 30*time.Minute)

	token, err := svc.IssueToken("alice")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	username, err := svc.ResolveToken(token)
	if err != nil {
		t.Fatalf("ResolveToken: %v", err)
	}
	if username != "alice" {
		t.Errorf("subject = %q, want alice", username)
	}
}

func TestTokenExpiryWindow(t *testing.T) {
	issuedAt := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	svc := NewService("test-secret", 30*time.Minute).
		WithClock(func() time.Time { return issuedAt })
	token, err := svc.IssueToken("alice")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	tests := []struct {
		name    string
		at      time.Time
		wantErr error
	}{
		{"accepted at +29min", issuedAt.Add(29 * time.Minute), nil},
		{"rejected at +31min", issuedAt.Add(31 * time.Minute), ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc.WithClock(func() time.Time { return tt.at })
			_, err := svc.ResolveToken(token)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ResolveToken error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTokenTamperingRejected(t *testing.T) {
	svc := NewService("test-secret", 30*time.Minute)
	other := NewService("other-secret", 30*time.Minute)

	token, err := other.IssueToken("alice")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ResolveToken(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("foreign-key token error = %v, want ErrTokenInvalid", err)
	}
	if _, err := svc.ResolveToken("not-a-jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("garbage token error = %v, want ErrTokenInvalid", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("hash equals plaintext")
	}

	if err := CheckPassword(hash, "s3cret"); err != nil {
		t.Errorf("CheckPassword with correct password: %v", err)
	}
	if err := CheckPassword(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("CheckPassword with wrong password error = %v, want ErrInvalidCredentials", err)
	}
}
