// Package broadcast implements the WebSocket fan-out relay using the actor pattern.
//
// The Broadcaster owns two independent subscriber groups (location and comment) and
// pushes serialized updates to every open connection in a group. Uses a single
// goroutine + command channel (no mutexes). Per-connection write goroutines keep one
// slow client from ever blocking delivery to the others.
package broadcast
