// Package tproxy accepts connections redirected to it by the firewall and
// relays each one to the destination the client originally asked for.
//
// On Linux the original destination is read from conntrack via
// SO_ORIGINAL_DST (IPv4) or IP6T_SO_ORIGINAL_DST (IPv6), which is what
// iptables/nftables REDIRECT and DNAT rules leave behind. A firewall mark on
// the inbound socket is copied to the outbound socket before it connects.
//
// On other platforms the lookup is stubbed out and every connection is
// rejected.
package tproxy
