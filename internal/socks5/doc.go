// Package socks5 provides the client side of the SOCKS5 handshake used by
// tcpredir to chain through an upstream SOCKS5 proxy.
//
// It wraps the low-level protocol types in github.com/txthinking/socks5.
package socks5
