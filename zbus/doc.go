// Package zbus implements a software bus adapter that drives a simulated memory-mapped bus
// (address, data, byte select and a request/acknowledge handshake) by exchanging
// newline-delimited ASCII frames with a peer, typically a logic simulator.
//
// # Wire Format
//
// Every request is one line of four '_' separated fields:
//
//	<cmd>_<select>_<address>_<data>
//
// cmd is one hex digit (bit2 request active, bit1 write-enable, bit0 cycle enable), select is
// one hex digit and address and data are eight hex digits each. Fields that do not apply to a
// transaction carry the don't-care marker 'x' repeated to the field width:
//
//	7_f_00000021_00000054   write 0x54 to 0x21
//	7_f_00000000_xxxxxxxx   read 0x00
//	4_x_xxxxxxxx_xxxxxxxx   idle
//	0_x_xxxxxxxx_xxxxxxxx   finish
//
// The peer answers every request with exactly one line: a status hex digit (bit1 ack, bit0
// req/data-ready) followed by an eight digit data word, or xxxxxxxx when no data is carried.
//
// # Handshake
//
// An Adapter resends a request frame until the peer acks it; this spin-wait is part of the
// protocol, not error recovery. A read then sends idle frames until the req bit is set and
// returns that response's data word. One request is in flight per channel at any time.
//
// The wait is unbounded by default, so a stuck peer blocks forever. WithWaitTimeout or a
// context deadline bound it; an aborted wait fails with ErrTimeout and responses the peer
// still owes are discarded before the next frame, which keeps retries safe.
//
// # Multiple Channels
//
// MultiAdapter replicates the adapter over several channel pairs addressed by index. ZW and
// ZR send and receive one frame per channel per call, in index order.
package zbus
