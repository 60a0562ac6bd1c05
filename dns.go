package danetls

import (
	"encoding/hex"
	"fmt"
	"net"

	"github.com/miekg/dns"
)

//
// Query contains parameters of a DNS query: name, type, and class.
//
type Query struct {
	Name  string
	Type  uint16
	Class uint16
}

//
// NewQuery returns an initialized Query structure from the given query
// parameters.
//
func NewQuery(qname string, qtype uint16, qclass uint16) *Query {
	q := new(Query)
	q.Name = dns.Fqdn(qname)
	q.Type = qtype
	q.Class = qclass
	return q
}

//
// makeQueryMessage constructs a DNS query message (*dns.Msg) from the
// given query and resolver parameters.
//
func makeQueryMessage(query *Query, resolver *Resolver) *dns.Msg {

	m := new(dns.Msg)
	m.Id = dns.Id()
	m.RecursionDesired = resolver.Rdflag
	m.AuthenticatedData = resolver.Adflag
	m.CheckingDisabled = resolver.Cdflag
	m.SetEdns0(resolver.Payload, true)
	m.Question = make([]dns.Question, 1)
	m.Question[0] = dns.Question{Name: query.Name, Qtype: query.Type,
		Qclass: query.Class}
	return m
}

//
// sendQueryUDP sends a DNS query via UDP with timeout and retries if
// necessary.
//
func sendQueryUDP(query *Query, resolver *Resolver) (*dns.Msg, error) {

	var response *dns.Msg
	var err error

	m := makeQueryMessage(query, resolver)

	c := new(dns.Client)
	c.Net = "udp"
	c.Timeout = resolver.Timeout

	retries := resolver.Retries
	for retries > 0 {
		response, _, err = c.Exchange(m, resolver.Address())
		if err == nil {
			break
		}
		if nerr, ok := err.(net.Error); ok && !nerr.Timeout() {
			break
		}
		retries--
	}

	return response, err
}

//
// sendQueryTCP sends a DNS query via TCP.
//
func sendQueryTCP(query *Query, resolver *Resolver) (*dns.Msg, error) {

	m := makeQueryMessage(query, resolver)

	c := new(dns.Client)
	c.Net = "tcp"
	c.Timeout = resolver.Timeout

	response, _, err := c.Exchange(m, resolver.Address())
	return response, err
}

//
// sendQuery sends a DNS query via UDP with fallback to TCP upon
// truncation.
//
func sendQuery(query *Query, resolver *Resolver) (*dns.Msg, error) {

	response, err := sendQueryUDP(query, resolver)

	if err == nil && response.MsgHdr.Truncated {
		response, err = sendQueryTCP(query, resolver)
	}

	if err != nil {
		return nil, err
	}
	if response == nil {
		return nil, fmt.Errorf("null DNS response to query")
	}
	return response, err
}

//
// responseOK determines whether the response rcode indicates a usable
// answer (NOERROR or NXDOMAIN). Anything else is treated as a bogus or
// indeterminate DNSSEC state by the callers, since a validating
// resolver signals validation failure with SERVFAIL.
//
func responseOK(response *dns.Msg) bool {

	switch response.MsgHdr.Rcode {
	case dns.RcodeSuccess, dns.RcodeNameError:
		return true
	default:
		return false
	}
}

//
// Lookup holds everything the DNS collaborator feeds into a run: the
// candidate addresses in resolver order (IPv6 before IPv4), the TLSA
// record set, and the DNSSEC trust flags for both.
//
type Lookup struct {
	Addresses []Candidate
	TLSA      []TLSARecord
	Flags     TrustFlags
	Errs      []error // query-level problems, for diagnostics
}

//
// addressesFromResponse extracts candidate addresses of the given rrtype
// from a response message, preserving answer order.
//
func addressesFromResponse(response *dns.Msg, rrtype uint16, port int) []Candidate {

	var list []Candidate
	for _, rr := range response.Answer {
		if rr.Header().Rrtype != rrtype {
			continue
		}
		switch rrtype {
		case dns.TypeAAAA:
			list = append(list, Candidate{IP: rr.(*dns.AAAA).AAAA, Port: port})
		case dns.TypeA:
			list = append(list, Candidate{IP: rr.(*dns.A).A, Port: port})
		}
	}
	return list
}

//
// tlsaFromResponse extracts the TLSA record set from a response
// message. The association data arrives hex encoded in the dns.TLSA
// presentation form and is decoded to raw bytes; records whose data
// does not decode are kept with empty data so that the usability filter
// reports them rather than dropping them silently.
//
func tlsaFromResponse(response *dns.Msg) []TLSARecord {

	var records []TLSARecord
	for _, rr := range response.Answer {
		tlsa, ok := rr.(*dns.TLSA)
		if !ok {
			continue
		}
		data, err := hex.DecodeString(tlsa.Certificate)
		if err != nil {
			data = nil
		}
		records = append(records, TLSARecord{
			Usage:        tlsa.Usage,
			Selector:     tlsa.Selector,
			MatchingType: tlsa.MatchingType,
			Data:         data,
		})
	}
	return records
}

//
// getAddressSet queries one address rrtype (A or AAAA) for the
// hostname. It sets the per-family authenticated flag from the AD bit
// and flags the lookup bogus/indeterminate when there is no usable
// response at all.
//
func getAddressSet(resolver *Resolver, hostname string, rrtype uint16,
	port int, lookup *Lookup) error {

	q := NewQuery(hostname, rrtype, dns.ClassINET)
	response, err := sendQuery(q, resolver)
	if err != nil {
		lookup.Flags.BogusOrIndeterminate = true
		return fmt.Errorf("address query failed: %w", err)
	}
	if !responseOK(response) {
		lookup.Flags.BogusOrIndeterminate = true
		return fmt.Errorf("address query failed: rcode %s",
			dns.RcodeToString[response.MsgHdr.Rcode])
	}

	if response.MsgHdr.AuthenticatedData {
		switch rrtype {
		case dns.TypeAAAA:
			lookup.Flags.V6Authenticated = true
		case dns.TypeA:
			lookup.Flags.V4Authenticated = true
		}
	}

	lookup.Addresses = append(lookup.Addresses,
		addressesFromResponse(response, rrtype, port)...)
	return nil
}

//
// getTLSASet queries the TLSA record set at _<port>._tcp.<hostname>.
// NXDOMAIN and an empty answer mean authenticated absence of TLSA data
// (PKIX fallback territory); a missing or failed response means a bogus
// or indeterminate state, which must abort the run.
//
func getTLSASet(resolver *Resolver, hostname string, port int, lookup *Lookup) error {

	qname := fmt.Sprintf("_%d._tcp.%s", port, hostname)
	q := NewQuery(qname, dns.TypeTLSA, dns.ClassINET)

	response, err := sendQuery(q, resolver)
	if err != nil {
		lookup.Flags.BogusOrIndeterminate = true
		return fmt.Errorf("TLSA query failed: %w", err)
	}
	if !responseOK(response) {
		lookup.Flags.BogusOrIndeterminate = true
		return fmt.Errorf("TLSA query failed: rcode %s",
			dns.RcodeToString[response.MsgHdr.Rcode])
	}
	if response.MsgHdr.Rcode == dns.RcodeNameError {
		return nil
	}

	lookup.TLSA = tlsaFromResponse(response)
	if len(lookup.TLSA) > 0 && response.MsgHdr.AuthenticatedData {
		lookup.Flags.TLSAAuthenticated = true
	}
	return nil
}

//
// LookupServer performs the DNS side of a run: AAAA and A address
// lookups, and the TLSA lookup unless the mode is PKIX-only. The
// returned Lookup carries the trust flags the decision engine consumes.
// Query transport failures and non-NOERROR/NXDOMAIN rcodes mark the
// lookup bogus/indeterminate but are reported through the returned
// Lookup rather than an error; the error return is reserved for a nil
// resolver.
//
func LookupServer(resolver *Resolver, config *Config) (*Lookup, error) {

	if resolver == nil {
		return nil, fmt.Errorf("nil resolver object supplied")
	}

	lookup := new(Lookup)

	if resolver.IPv6 {
		if err := getAddressSet(resolver, config.Hostname, dns.TypeAAAA,
			config.Port, lookup); err != nil {
			lookup.Errs = append(lookup.Errs, err)
		}
	} else {
		lookup.Flags.V6Authenticated = true
	}
	if resolver.IPv4 {
		if err := getAddressSet(resolver, config.Hostname, dns.TypeA,
			config.Port, lookup); err != nil {
			lookup.Errs = append(lookup.Errs, err)
		}
	} else {
		lookup.Flags.V4Authenticated = true
	}

	if config.Mode != ModePKIX {
		if err := getTLSASet(resolver, config.Hostname, config.Port,
			lookup); err != nil {
			lookup.Errs = append(lookup.Errs, err)
		}
	}

	return lookup, nil
}
