package danetls

//
// Mode selects the peer authentication policy for a run.
//
type Mode int

//
// Authentication modes. ModeBoth attempts DANE when secure TLSA records
// exist and falls back to PKIX otherwise.
//
const (
	ModeBoth Mode = iota // DANE preferred, PKIX fallback
	ModeDANE             // DANE only
	ModePKIX             // PKIX only
)

// String returns the mode name as used on the command line.
func (m Mode) String() string {
	switch m {
	case ModeDANE:
		return "dane"
	case ModePKIX:
		return "pkix"
	default:
		return "dane+pkix"
	}
}

//
// TrustFlags reflect the DNSSEC chain-of-trust status of the address and
// TLSA record sets, as reported by the DNS collaborator. The individual
// flags are meaningful only when BogusOrIndeterminate is false; a bogus
// or indeterminate answer aborts the run before any connection attempt
// and is never conflated with authenticated absence of data.
//
type TrustFlags struct {
	V4Authenticated      bool // A record set was DNSSEC authenticated
	V6Authenticated      bool // AAAA record set was DNSSEC authenticated
	TLSAAuthenticated    bool // TLSA record set was DNSSEC authenticated
	BogusOrIndeterminate bool // some response was bogus or indeterminate
}

//
// Decision is the run-level outcome of the DANE decision engine.
//
type Decision struct {
	AttemptDANE bool   // configure DANE verification for every attempt
	Abort       bool   // abort the run before any connection attempt
	Reason      string // human-readable reason when DANE is not attempted
}

//
// Decide determines, once per run, whether DANE verification is
// attempted, PKIX fallback applies, or the run must abort. Each
// insecurity check disqualifies DANE without disqualifying PKIX
// fallback; only ModeDANE turns a disqualification into an abort.
// The caller is responsible for checking flags.BogusOrIndeterminate
// before invoking Decide.
//
func Decide(mode Mode, tlsaPresent bool, flags TrustFlags) Decision {

	if mode == ModePKIX {
		return Decision{Reason: "pkix mode: TLSA records not consulted"}
	}

	switch {
	case !tlsaPresent:
		return Decision{Abort: mode == ModeDANE,
			Reason: "no TLSA records found"}
	case !flags.TLSAAuthenticated:
		return Decision{Abort: mode == ModeDANE,
			Reason: "insecure TLSA records"}
	case !flags.V4Authenticated || !flags.V6Authenticated:
		// DANE requires the addresses themselves to be authenticated;
		// unauthenticated address resolution would let an attacker
		// redirect the connection.
		return Decision{Abort: mode == ModeDANE,
			Reason: "insecure address records"}
	}

	return Decision{AttemptDANE: true}
}
