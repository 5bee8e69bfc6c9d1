// Package relay moves bytes between the two sockets of a relayed TCP
// connection until both directions have finished.
//
// Two strategies are available. Direct runs one goroutine per direction that
// reads into a fixed buffer and writes it straight out. Queued splits each
// direction into a reader and a writer joined by a bounded channel of
// chunks, so a slow writer holds up its reader instead of growing memory.
//
// In both, a read EOF is forwarded as a half-close (CloseWrite) on the
// destination, and the other direction keeps running. A single idle
// watchdog, reset by traffic in either direction, cancels the whole relay
// when nothing has moved for Config.IdleTimeout.
package relay
