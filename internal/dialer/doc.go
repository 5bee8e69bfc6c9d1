// Package dialer provides the outbound connectors used by tcpredir.
//
// Dialers implement a small interface (DialContext). The direct dialer
// connects straight to the original destination; the HTTP and SOCKS5
// dialers ask an upstream proxy to connect on the relay's behalf. In every
// case the TCP socket the relay opens carries the routing mark attached to
// the context with WithMark.
package dialer
