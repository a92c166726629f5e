package credentials

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ZEGOCLOUD/zego_server_assistant/token/go/src/token04"

	"github.com/aura-live/backend/internal/models"
	"github.com/aura-live/backend/pkg/apperror"
)

// ProviderZego names the ZEGOCLOUD token04 format.
const ProviderZego = "zego"

// RtcRoomPayload is the payload for room-based token04 tokens.
type RtcRoomPayload struct {
	RoomID       string      `json:"RoomId"`
	Privilege    map[int]int `json:"Privilege"`
	StreamIDList []string    `json:"StreamIdList,omitempty"`
}

// ZegoSigner signs credentials as ZEGOCLOUD token04 tokens.
type ZegoSigner struct {
	appID  uint32
	secret string
	now    func() time.Time
}

// NewZegoSigner requires the console app id and a 32-character server secret.
func NewZegoSigner(appID uint32, serverSecret string) (*ZegoSigner, error) {
	if appID == 0 || serverSecret == "" {
		return nil, apperror.Configuration("zego app_id and server_secret required")
	}
	if len(serverSecret) != 32 {
		return nil, apperror.Configuration("zego server_secret must be 32 characters")
	}
	return &ZegoSigner{appID: appID, secret: serverSecret, now: time.Now}, nil
}

func (s *ZegoSigner) Provider() string { return ProviderZego }

// AppID is returned to clients alongside the token.
func (s *ZegoSigner) AppID() uint32 { return s.appID }

func (s *ZegoSigner) Sign(cred models.JoinCredential) (string, error) {
	privilege := map[int]int{
		token04.PrivilegeKeyLogin:   token04.PrivilegeDisable,
		token04.PrivilegeKeyPublish: token04.PrivilegeDisable,
	}
	if cred.Capabilities.CanJoin {
		privilege[token04.PrivilegeKeyLogin] = token04.PrivilegeEnable
	}
	if cred.Capabilities.CanPublish {
		privilege[token04.PrivilegeKeyPublish] = token04.PrivilegeEnable
	}
	payload, err := json.Marshal(RtcRoomPayload{RoomID: cred.RoomName, Privilege: privilege})
	if err != nil {
		return "", fmt.Errorf("zego: marshal payload: %w", err)
	}
	effective := int64(cred.ExpiresAt.Sub(s.now()).Seconds())
	if effective < 1 {
		effective = 1
	}
	tok, err := token04.GenerateToken04(s.appID, cred.Identity, s.secret, effective, string(payload))
	if err != nil {
		return "", fmt.Errorf("zego: generate token: %w", err)
	}
	return tok, nil
}
