package credentials

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aura-live/backend/internal/models"
	"github.com/aura-live/backend/pkg/apperror"
)

// ProviderJWT names the HS256 room token format.
const ProviderJWT = "jwt"

var ErrInvalidRoomToken = errors.New("invalid room token")

// VideoGrant is the media capability block embedded in room tokens.
type VideoGrant struct {
	Room         string `json:"room"`
	RoomJoin     bool   `json:"roomJoin"`
	CanPublish   bool   `json:"canPublish"`
	CanSubscribe bool   `json:"canSubscribe"`
}

// RoomClaims are the claims of an HS256 room token.
type RoomClaims struct {
	Video VideoGrant `json:"video"`
	jwt.RegisteredClaims
}

// JWTSigner signs room tokens with an API key / secret pair shared with the media backend.
type JWTSigner struct {
	apiKey string
	secret []byte
	now    func() time.Time
}

func NewJWTSigner(apiKey, secret string) (*JWTSigner, error) {
	if apiKey == "" || secret == "" {
		return nil, apperror.Configuration("room token api key and secret required")
	}
	return &JWTSigner{apiKey: apiKey, secret: []byte(secret), now: time.Now}, nil
}

func (s *JWTSigner) Provider() string { return ProviderJWT }

func (s *JWTSigner) Sign(cred models.JoinCredential) (string, error) {
	now := s.now()
	claims := RoomClaims{
		Video: VideoGrant{
			Room:         cred.RoomName,
			RoomJoin:     cred.Capabilities.CanJoin,
			CanPublish:   cred.Capabilities.CanPublish,
			CanSubscribe: cred.Capabilities.CanSubscribe,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.apiKey,
			Subject:   cred.Identity,
			ExpiresAt: jwt.NewNumericDate(cred.ExpiresAt),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse verifies a room token signed by this signer.
func (s *JWTSigner) Parse(token string) (*RoomClaims, error) {
	t, err := jwt.ParseWithClaims(token, &RoomClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidRoomToken
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.apiKey))
	if err != nil {
		return nil, ErrInvalidRoomToken
	}
	claims, ok := t.Claims.(*RoomClaims)
	if !ok || !t.Valid {
		return nil, ErrInvalidRoomToken
	}
	return claims, nil
}
