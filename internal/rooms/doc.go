// Package rooms implements the room-identity service: creating opaque room
// identifiers and validating their existence against Redis. The relay never
// calls this service; the UI uses it before opening a WebSocket connection.
package rooms
