// Package sockopt applies per-connection TCP socket options for the relay.
//
// It covers keepalive probing, TCP_NODELAY and the Linux packet routing mark
// (SO_MARK). The mark is read from an accepted socket and applied to the
// outbound socket from a net.Dialer Control hook, so it is in place before
// connect(2) and egress policy-routing rules keyed on it match the SYN.
//
// On platforms without SO_MARK, Mark always reports no mark and outbound
// sockets use default routing.
package sockopt
