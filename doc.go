//
// Package danetls authenticates a TLS server with DANE (RFC 6698),
// falling back to conventional PKIX authentication when no secure TLSA
// records exist for the server. It is the library behind the danetls
// diagnostic command.
//
// A run is described by an immutable Config (server name, port,
// authentication mode, optional STARTTLS application and trust store).
// LookupServer() queries a validating resolver for the server's
// addresses and TLSA record set, recording the DNSSEC authentication
// status of each record set in TrustFlags. The resolver must set the AD
// bit on authenticated responses, and the path to it must be trusted.
//
// Decide() evaluates the run-level policy once: DANE is attempted only
// when TLSA records exist and both the TLSA and address record sets
// were DNSSEC authenticated; otherwise the run falls back to PKIX, or
// aborts in DANE-only mode. A bogus or indeterminate DNS answer always
// aborts the run before any connection attempt; it is never treated as
// authenticated absence of data.
//
// Runner.Run() then attempts every resolved address in order, one at a
// time: connect, optional STARTTLS negotiation (smtp, imap, pop3,
// xmpp-client, xmpp-server), TLS handshake, and peer verification.
// Structurally unusable TLSA records are reported and excluded from the
// trust material. Each address yields an AttemptResult; Aggregate()
// folds them into a RunResult whose ExitCode() follows the classic
// danetls convention: 0 all succeeded, 1 mixed, 2 all failed.
//
// Per RFC 7671, Section 5.1, DANE-EE matches skip certificate name
// checks unless the DaneEEname option is set.
//

package danetls
