package models

import "time"

// CredentialRole is the role a join credential is minted for.
type CredentialRole string

const (
	CredentialRoleHost   CredentialRole = "host"
	CredentialRoleViewer CredentialRole = "viewer"
)

// Capabilities is the set of media transport permissions carried by a credential.
type Capabilities struct {
	CanPublish   bool `json:"can_publish"`
	CanSubscribe bool `json:"can_subscribe"`
	CanJoin      bool `json:"can_join"`
}

// JoinCredential is a short-lived, signed grant to join one room. It is never persisted.
type JoinCredential struct {
	Identity     string         `json:"identity"`
	RoomName     string         `json:"room_name"`
	Role         CredentialRole `json:"role"`
	Capabilities Capabilities   `json:"capabilities"`
	ExpiresAt    time.Time      `json:"expires_at"`
	Provider     string         `json:"provider"`
	Token        string         `json:"token"`
}
