package rooms

import "github.com/jaevor/go-nanoid"

// Room ids are short, lowercase, and URL-safe; they appear verbatim in room
// links and in broker routing keys.
const (
	roomIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	roomIDLength   = 7
)

// newRoomIDGenerator returns a function producing random room identifiers.
func newRoomIDGenerator() (func() string, error) {
	return nanoid.CustomASCII(roomIDAlphabet, roomIDLength)
}
