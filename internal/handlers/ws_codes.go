// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the room view socket.
const (
	BadSubprotocolError   = 3000 // Client connected without the room subprotocol.
	InvalidAuthTokenError = 3001 // Auth token expired between upgrade and first push.
	InvalidRoomIDError    = 3003 // Room in the WS URL does not exist.
	RoomStartedClosure    = 3004 // Room left the open state; nothing more to push.
)
