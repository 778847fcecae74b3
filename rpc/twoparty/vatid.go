// Package twoparty implements the two-party vat network from spec
// §4.5–§4.7: a Connection carrying length-prefixed RPC messages over a
// full-duplex byte stream, and a VatNetwork that vends exactly one such
// Connection to the single peer on the other end.
package twoparty

import "github.com/capnproto-go/rpc-core/rpc"

// Side identifies which of the two participants a VatId names. The
// wire schema represents this as a 16-bit enum; this package treats it
// opaquely beyond Equal, per spec §6 "VatId".
type Side int

const (
	Server Side = iota
	Client
)

var _ rpc.VatId = Server

// Equal reports whether other names the same end as s.
func (s Side) Equal(other rpc.VatId) bool {
	o, ok := other.(Side)
	return ok && o == s
}

// Other returns the opposite end.
func (s Side) Other() Side {
	if s == Server {
		return Client
	}
	return Server
}

func (s Side) String() string {
	if s == Server {
		return "server"
	}
	return "client"
}
