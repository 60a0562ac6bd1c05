package danetls

import (
	"fmt"
	"net"
)

//
// Candidate is one network address a run will attempt: an IP address
// and port for the target server. Candidates are attempted in
// resolver-returned order, one authentication attempt each.
//
type Candidate struct {
	IP   net.IP
	Port int
}

//
// Family returns the address family name, "IPv6" or "IPv4".
//
func (c Candidate) Family() string {
	if c.IP.To4() == nil {
		return "IPv6"
	}
	return "IPv4"
}

//
// Address returns the dialable host:port form of the candidate, with
// IPv6 addresses bracketed.
//
func (c Candidate) Address() string {
	return addressString(c.IP, c.Port)
}

// String returns a human readable form of the candidate.
func (c Candidate) String() string {
	return fmt.Sprintf("%s address %s port %d", c.Family(), c.IP, c.Port)
}
