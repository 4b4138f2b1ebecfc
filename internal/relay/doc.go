// Package relay implements the real-time message relay: a WebSocket gateway
// that fans chat messages out across horizontally-scaled instances through a
// topic-exchange broker.
//
// The implementation is organized into specialized files for configuration,
// the connection registry, the topic subscription manager, the broker bridge,
// clients, and the gateway event loop to keep the codebase maintainable and
// testable as the project grows.
package relay
