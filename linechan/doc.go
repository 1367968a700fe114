// Package linechan provides the line-oriented duplex transport used by the zbus bus adapter.
//
// A Channel exchanges one newline-terminated text record per call over two independent
// unidirectional byte streams: an outbound stream the owner writes frames to, and an inbound
// stream it reads responses from.
//
// # Transports
//
//   - NewStream: any io.Reader / io.Writer pair.
//   - OpenFIFO: a pair of named pipes, the usual binding to a logic simulator.
//   - OpenSerial: a serial port (go.bug.st/serial), both directions on one device.
//   - DialWebSocket, UpgradeWebSocket, NewWebSocket: one websocket text message per line.
//   - Pipe: two in-memory channels connected back to back.
//
// # Blocking and cancellation
//
// Receive blocks until a full line is available. Each channel runs one reader goroutine
// that hands completed lines to Receive, so a Receive abandoned because its context ended
// does not lose data: the line is returned by the next Receive call.
//
// A Channel is NOT goroutine-safe. The owner must serialize Send and Receive calls.
package linechan
