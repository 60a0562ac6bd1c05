package danetls

import "errors"

// Run-fatal errors. Any of these aborts the run before the first
// connection attempt and classifies it as AllFailed.
var (
	// ErrBogusDNS is returned when a DNS response was bogus or
	// indeterminate. This state is distinct from authenticated absence
	// of data and must never be treated as "no records".
	ErrBogusDNS = errors.New("danetls: bogus or indeterminate DNS response")

	// ErrDANERequired is returned in DANE-only mode when no usable,
	// authenticated TLSA trust material exists for the server.
	ErrDANERequired = errors.New("danetls: DANE required but no secure TLSA data")

	// ErrTrustStore is returned when the PKIX trust store could not be
	// loaded.
	ErrTrustStore = errors.New("danetls: failed to load trust store")

	// ErrNoAddresses is returned when address resolution produced no
	// candidate addresses.
	ErrNoAddresses = errors.New("danetls: no addresses found")
)
