// Package socketio carries servant commands over socket.io. The daemon side
// answers "command" events through acknowledgements; the client side sends
// one event per command and waits for the acknowledgement.
//
// Commands and responses travel as JSON strings so that payload bytes survive
// the trip unchanged.
package socketio
