package credentials

import (
	"strings"

	webrtc "github.com/pion/webrtc/v3"
)

// ParseICEServers turns configured entries into ICE servers for clients.
// An entry is "url" or "url|username|credential" for TURN.
func ParseICEServers(entries []string) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(entries))
	for _, e := range entries {
		parts := strings.Split(strings.TrimSpace(e), "|")
		if parts[0] == "" {
			continue
		}
		srv := webrtc.ICEServer{URLs: []string{parts[0]}}
		if len(parts) == 3 {
			srv.Username = parts[1]
			srv.Credential = parts[2]
			srv.CredentialType = webrtc.ICECredentialTypePassword
		}
		out = append(out, srv)
	}
	return out
}
