package credentials

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aura-live/backend/internal/models"
	"github.com/aura-live/backend/pkg/apperror"
)

func newTestIssuer(t *testing.T) (*Issuer, *JWTSigner) {
	t.Helper()
	signer, err := NewJWTSigner("api-key", "room-secret")
	if err != nil {
		t.Fatalf("NewJWTSigner() error = %v", err)
	}
	iss, err := NewIssuer(signer, 0)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	return iss, signer
}

func TestViewerNeverGetsPublish(t *testing.T) {
	iss, signer := newTestIssuer(t)
	for _, authed := range []bool{true, false} {
		cred, err := iss.Issue(Request{RoomName: "room-1", Identity: "user-9", Authenticated: authed, Role: models.CredentialRoleViewer})
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		if cred.Capabilities.CanPublish {
			t.Fatalf("viewer credential has CanPublish")
		}
		claims, err := signer.Parse(cred.Token)
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if claims.Video.CanPublish || !claims.Video.CanSubscribe || !claims.Video.RoomJoin {
			t.Fatalf("viewer video grant = %+v", claims.Video)
		}
		if claims.Video.Room != "room-1" || claims.Subject != cred.Identity || claims.Issuer != "api-key" {
			t.Fatalf("claims = %+v", claims)
		}
	}
}

func TestHostRequiresAuthentication(t *testing.T) {
	iss, signer := newTestIssuer(t)
	if _, err := iss.Issue(Request{RoomName: "r", Role: models.CredentialRoleHost}); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("anonymous host error = %v, want ErrForbidden", err)
	}
	cred, err := iss.Issue(Request{RoomName: "r", Identity: "creator-a", Authenticated: true, Role: models.CredentialRoleHost})
	if err != nil {
		t.Fatalf("Issue(host) error = %v", err)
	}
	claims, err := signer.Parse(cred.Token)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !claims.Video.CanPublish || cred.Identity != "creator-a" {
		t.Fatalf("host credential = %+v, grant %+v", cred, claims.Video)
	}
}

func TestIssueValidation(t *testing.T) {
	iss, _ := newTestIssuer(t)
	cases := map[string]Request{
		"empty room":   {RoomName: " ", Role: models.CredentialRoleViewer},
		"unknown role": {RoomName: "r", Role: "moderator"},
	}
	for name, req := range cases {
		if _, err := iss.Issue(req); !apperror.IsValidation(err) {
			t.Errorf("%s: error = %v, want ValidationError", name, err)
		}
	}
}

func TestAnonymousIdentityAndExpiry(t *testing.T) {
	iss, _ := newTestIssuer(t)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	iss.now = func() time.Time { return now }

	a, err := iss.Issue(Request{RoomName: "r", Role: models.CredentialRoleViewer})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	b, _ := iss.Issue(Request{RoomName: "r", Role: models.CredentialRoleViewer})
	if !strings.HasPrefix(a.Identity, "viewer-") || a.Identity == b.Identity {
		t.Fatalf("anonymous identities = %q, %q", a.Identity, b.Identity)
	}
	if want := now.Add(DefaultTTL); !a.ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", a.ExpiresAt, want)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	signer, _ := NewJWTSigner("k", "s")
	tok, err := signer.Sign(models.JoinCredential{
		Identity:  "u",
		RoomName:  "r",
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if _, err := signer.Parse(tok); err == nil {
		t.Fatalf("Parse(expired) error = nil")
	}
}

func TestConstructorsRequireSigningMaterial(t *testing.T) {
	if _, err := NewJWTSigner("k", ""); !errors.Is(err, apperror.ErrConfiguration) {
		t.Fatalf("NewJWTSigner(no secret) error = %v", err)
	}
	if _, err := NewIssuer(nil, time.Minute); !errors.Is(err, apperror.ErrConfiguration) {
		t.Fatalf("NewIssuer(nil) error = %v", err)
	}
	if _, err := NewZegoSigner(0, strings.Repeat("a", 32)); !errors.Is(err, apperror.ErrConfiguration) {
		t.Fatalf("NewZegoSigner(0) error = %v", err)
	}
	if _, err := NewZegoSigner(1234, "short"); !errors.Is(err, apperror.ErrConfiguration) {
		t.Fatalf("NewZegoSigner(short secret) error = %v", err)
	}
}

func TestZegoSignerProducesToken04(t *testing.T) {
	signer, err := NewZegoSigner(1234567, "0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("NewZegoSigner() error = %v", err)
	}
	iss, err := NewIssuer(signer, time.Minute)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	cred, err := iss.Issue(Request{RoomName: "room", Role: models.CredentialRoleViewer})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if cred.Provider != ProviderZego || !strings.HasPrefix(cred.Token, "04") {
		t.Fatalf("credential = %+v", cred)
	}
}

func TestParseICEServers(t *testing.T) {
	got := ParseICEServers([]string{"stun:stun.example.com:3478", "", "turn:turn.example.com|u|p"})
	if len(got) != 2 {
		t.Fatalf("ParseICEServers() = %d servers, want 2", len(got))
	}
	if got[1].Username != "u" || got[1].Credential != "p" {
		t.Fatalf("turn server = %+v", got[1])
	}
}
