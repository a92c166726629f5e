// Package credentials mints short-lived, role-scoped grants to join a media room.
// Credentials are never stored; they expire on their own.
package credentials

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aura-live/backend/internal/models"
	"github.com/aura-live/backend/internal/observability"
	"github.com/aura-live/backend/pkg/apperror"
)

// DefaultTTL is the credential lifetime when none is configured.
const DefaultTTL = 10 * time.Minute

// Signer turns a credential into the token the media backend accepts.
type Signer interface {
	Sign(cred models.JoinCredential) (string, error)
	Provider() string
}

// roleCapabilities is the only source of capabilities; callers never supply them.
var roleCapabilities = map[models.CredentialRole]models.Capabilities{
	models.CredentialRoleHost:   {CanPublish: true, CanSubscribe: true, CanJoin: true},
	models.CredentialRoleViewer: {CanPublish: false, CanSubscribe: true, CanJoin: true},
}

// CapabilitiesFor returns the capability set for role.
func CapabilitiesFor(role models.CredentialRole) (models.Capabilities, bool) {
	c, ok := roleCapabilities[role]
	return c, ok
}

// Request describes who wants to join which room, and as what.
type Request struct {
	RoomName      string
	Identity      string
	Authenticated bool
	Role          models.CredentialRole
}

// Issuer signs join credentials.
type Issuer struct {
	signer  Signer
	ttl     time.Duration
	now     func() time.Time
	metrics *observability.Metrics
}

// NewIssuer returns ErrConfiguration when signer is nil.
func NewIssuer(signer Signer, ttl time.Duration) (*Issuer, error) {
	if signer == nil {
		return nil, apperror.Configuration("credential signer not configured")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{signer: signer, ttl: ttl, now: time.Now}, nil
}

func (i *Issuer) SetMetrics(m *observability.Metrics) { i.metrics = m }

// Provider names the signer backing this issuer.
func (i *Issuer) Provider() string { return i.signer.Provider() }

// Issue mints a credential for req. Anonymous callers get a generated viewer identity
// and may never receive host capabilities.
func (i *Issuer) Issue(req Request) (*models.JoinCredential, error) {
	room := strings.TrimSpace(req.RoomName)
	if room == "" {
		return nil, apperror.Validation("room_name", "required")
	}
	caps, ok := CapabilitiesFor(req.Role)
	if !ok {
		return nil, apperror.Validation("role", "must be host or viewer")
	}
	identity := strings.TrimSpace(req.Identity)
	if !req.Authenticated || identity == "" {
		if req.Role == models.CredentialRoleHost {
			return nil, apperror.ErrForbidden
		}
		identity = AnonymousIdentity()
	}

	cred := models.JoinCredential{
		Identity:     identity,
		RoomName:     room,
		Role:         req.Role,
		Capabilities: caps,
		ExpiresAt:    i.now().UTC().Add(i.ttl).Truncate(time.Second),
		Provider:     i.signer.Provider(),
	}
	tok, err := i.signer.Sign(cred)
	if err != nil {
		return nil, err
	}
	cred.Token = tok
	i.metrics.CredentialIssued(string(req.Role))
	return &cred, nil
}

// AnonymousIdentity returns a fresh "viewer-xxxxxxxxxxxx" identity.
func AnonymousIdentity() string {
	return "viewer-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
