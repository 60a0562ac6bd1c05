package danetls

//
// Outcome classifies a single per-address authentication attempt.
//
type Outcome int

const (
	OutcomeSuccess         Outcome = iota // handshake and peer authentication succeeded
	OutcomeConnectFailed                  // transport connection could not be opened
	OutcomeStartTLSFailed                 // cleartext STARTTLS negotiation failed
	OutcomeNoUsableTLSA                   // no usable TLSA trust material for this attempt
	OutcomeHandshakeFailed                // TLS handshake failed
	OutcomeVerifyFailed                   // handshake succeeded, peer authentication failed
)

// String returns a short description of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeConnectFailed:
		return "connection failed"
	case OutcomeStartTLSFailed:
		return "starttls failed"
	case OutcomeNoUsableTLSA:
		return "no usable TLSA records"
	case OutcomeHandshakeFailed:
		return "handshake failed"
	case OutcomeVerifyFailed:
		return "peer authentication failed"
	default:
		return "unknown"
	}
}

//
// AttemptResult records the outcome of one address attempt, along with
// the verification verdict for diagnostic reporting.
//
type AttemptResult struct {
	Address Candidate
	Outcome Outcome
	Err     error   // underlying error, nil on success
	Verdict Verdict // populated once the handshake completed
}

//
// Status is the overall classification of a run.
//
type Status int

const (
	AllFailed      Status = iota // no attempt succeeded, or no attempt was made
	AllSucceeded                 // every attempt succeeded
	PartialSuccess               // some attempts succeeded, some failed
)

// String returns a short description of the run status.
func (s Status) String() string {
	switch s {
	case AllSucceeded:
		return "all succeeded"
	case PartialSuccess:
		return "partial success"
	default:
		return "all failed"
	}
}

//
// RunResult accumulates per-address outcomes into an overall result.
//
type RunResult struct {
	Attempts  []AttemptResult
	Successes int
	Failures  int
	Status    Status
}

//
// ExitCode maps the run status to the process exit code: 0 when all
// attempts succeeded, 1 for mixed results, 2 when everything failed or
// no attempt was made. Usage errors (exit 3) are the CLI's concern.
//
func (r RunResult) ExitCode() int {
	switch r.Status {
	case AllSucceeded:
		return 0
	case PartialSuccess:
		return 1
	default:
		return 2
	}
}

//
// Aggregate folds a sequence of attempt results into a RunResult. Every
// non-success outcome counts as a failure. An empty sequence (run
// aborted, or no addresses resolved) classifies as AllFailed.
//
func Aggregate(attempts []AttemptResult) RunResult {

	r := RunResult{Attempts: attempts}
	for _, a := range attempts {
		if a.Outcome == OutcomeSuccess {
			r.Successes++
		} else {
			r.Failures++
		}
	}

	switch {
	case r.Successes > 0 && r.Failures == 0:
		r.Status = AllSucceeded
	case r.Successes > 0:
		r.Status = PartialSuccess
	default:
		r.Status = AllFailed
	}
	return r
}
