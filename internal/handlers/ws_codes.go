// internal/handlers/ws_codes.go
package handlers

// Close reasons sent with status 1008 (policy violation) when a socket is
// rejected during the handshake. Clients match on the exact strings.
const (
	ReasonMissingToken = "Missing token"
	ReasonInvalidToken = "Invalid token"
	ReasonUserNotFound = "User not found"
	ReasonLobbyGone    = "Lobby not found"
	ReasonLobbyFull    = "Lobby is full"
)
