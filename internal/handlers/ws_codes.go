// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the room handler.
// These provide more specific reasons for closure than standard codes.
const (
	InvalidRoomIDError = 3003 // Room id in the WS URL is empty or too long.
	BusClosedError     = 3004 // The update bus shut down, usually during server shutdown.
)

// maxRoomIDLen bounds the room id accepted from the URL.
const maxRoomIDLen = 128

// maxFrameBytes is the largest client frame read. Bigger frames close the session with
// websocket.StatusMessageTooBig.
const maxFrameBytes = 64 << 10
