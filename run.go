package danetls

import (
	"crypto/x509"
	"net"
	"time"

	"github.com/rs/zerolog"
)

//
// Runner drives one run: it applies the DANE decision, then attempts
// every candidate address in order, sequentially, without stopping on a
// per-address failure. All resolved addresses are always attempted; this
// is a diagnostic tool, not a connect-to-first-success client. The
// collaborator hooks (transport dial, TLS session factory, STARTTLS
// negotiation) are swappable for testing.
//
type Runner struct {
	Config *Config
	Log    zerolog.Logger

	roots      *x509.CertPool
	dial       func(network, address string, timeout time.Duration) (net.Conn, error)
	newSession func(conn net.Conn, config *Config, roots *x509.CertPool,
		attemptDane bool, records []TLSARecord) session
	starttls func(conn net.Conn, config *Config) (string, error)
}

//
// NewRunner returns a Runner for the given configuration, with the real
// network collaborators installed. Loading the trust store happens here
// so that a bad store is detected before any connection attempt.
//
func NewRunner(config *Config, log zerolog.Logger) (*Runner, error) {

	roots, err := loadTrustStore(config.CAFile)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		Config: config,
		Log:    log,
		roots:  roots,
	}
	r.dial = func(network, address string, timeout time.Duration) (net.Conn, error) {
		return getDialer(timeout).Dial(network, address)
	}
	r.newSession = newTLSSession
	r.starttls = startTLS
	return r, nil
}

//
// submitRecords runs the usability filter and engine acceptance over
// the TLSA record set, reporting every excluded record. The returned
// slice is the trust material for all attempts of this run.
//
func (r *Runner) submitRecords(records []TLSARecord) []TLSARecord {

	usable, rejected := usableRecords(records)
	for _, tr := range rejected {
		r.Log.Warn().Str("record", tr.String()).Msg("unusable TLSA record")
	}

	var accepted []TLSARecord
	for _, tr := range usable {
		if !engineAccepts(tr) {
			r.Log.Warn().Str("record", tr.String()).
				Msg("TLSA record rejected by TLS engine")
			continue
		}
		accepted = append(accepted, tr)
	}
	return accepted
}

//
// Run executes the full authentication run against the lookup results.
// A bogus or indeterminate DNS state, and a DANE requirement that cannot
// be met, abort before the first attempt; the returned RunResult then
// has zero attempts and classifies as AllFailed. The error return
// reports the run-fatal condition; attempt-scoped failures are recorded
// in the per-address results instead.
//
func (r *Runner) Run(lookup *Lookup) (RunResult, error) {

	for _, err := range lookup.Errs {
		r.Log.Warn().Err(err).Msg("DNS query problem")
	}

	if lookup.Flags.BogusOrIndeterminate {
		return Aggregate(nil), ErrBogusDNS
	}

	decision := Decide(r.Config.Mode, len(lookup.TLSA) > 0, lookup.Flags)
	if decision.Abort {
		r.Log.Error().Str("reason", decision.Reason).Msg("cannot attempt DANE")
		return Aggregate(nil), ErrDANERequired
	}
	if !decision.AttemptDANE && r.Config.Mode != ModePKIX {
		r.Log.Warn().Str("reason", decision.Reason).Msg("falling back to PKIX")
	}

	if len(lookup.Addresses) == 0 {
		return Aggregate(nil), ErrNoAddresses
	}

	attemptDane := decision.AttemptDANE
	var records []TLSARecord
	if attemptDane {
		records = r.submitRecords(lookup.TLSA)
		if len(records) == 0 && r.Config.Mode == ModeBoth {
			// With no records loaded into the engine, authentication
			// reverts to ordinary PKIX.
			r.Log.Warn().Msg("no usable TLSA records; falling back to PKIX")
			attemptDane = false
		}
	}

	attempts := make([]AttemptResult, 0, len(lookup.Addresses))
	for _, addr := range lookup.Addresses {
		attempts = append(attempts, r.attempt(addr, attemptDane, records))
	}
	return Aggregate(attempts), nil
}

//
// attempt performs one address attempt: connect, prepare the TLS
// session, optional STARTTLS negotiation, handshake, and verdict
// classification. Every failure is attempt-scoped; the caller moves on
// to the next address.
//
func (r *Runner) attempt(addr Candidate, attemptDane bool,
	records []TLSARecord) AttemptResult {

	res := AttemptResult{Address: addr}
	log := r.Log.With().Str("address", addr.Address()).Logger()
	log.Info().Str("family", addr.Family()).Msg("connecting")

	conn, err := r.dial("tcp", addr.Address(), r.Config.Timeout)
	if err != nil {
		log.Error().Err(err).Msg("connection failed")
		res.Outcome = OutcomeConnectFailed
		res.Err = err
		return res
	}
	defer conn.Close()

	// One deadline bounds the whole attempt: STARTTLS plus handshake.
	if err := conn.SetDeadline(time.Now().Add(r.Config.Timeout)); err != nil {
		log.Warn().Err(err).Msg("could not set connection deadline")
	}

	sess := r.newSession(conn, r.Config, r.roots, attemptDane, records)
	defer sess.Close()

	if r.Config.Appname != "" {
		transcript, err := r.starttls(conn, r.Config)
		if err != nil {
			log.Error().Err(err).Msg("STARTTLS failed")
			log.Debug().Str("transcript", transcript).Msg("STARTTLS transcript")
			res.Outcome = OutcomeStartTLSFailed
			res.Err = err
			return res
		}
		log.Debug().Str("transcript", transcript).Msg("STARTTLS transcript")
	}

	if attemptDane && r.Config.Mode == ModeDANE && len(records) == 0 {
		log.Error().Msg("no usable TLSA records present")
		res.Outcome = OutcomeNoUsableTLSA
		return res
	}

	err = sess.Handshake()
	res.Verdict = sess.Verdict()
	if err != nil {
		if res.Verdict.Err != nil {
			// The handshake was torn down by our own verification
			// callback; classify as a verification failure.
			log.Error().Str("code", res.Verdict.Code).Err(res.Verdict.Err).
				Msg("peer authentication failed")
			res.Outcome = Classify(res.Verdict)
			res.Err = res.Verdict.Err
			return res
		}
		log.Error().Err(err).Msg("TLS handshake failed")
		res.Outcome = OutcomeHandshakeFailed
		res.Err = err
		return res
	}

	log.Info().Str("version", sess.Version()).Str("cipher", sess.Cipher()).
		Msg("handshake succeeded")
	for i, cert := range res.Verdict.Chain {
		log.Debug().Int("depth", i).
			Str("subject", cert.Subject.String()).
			Str("issuer", cert.Issuer.String()).
			Msg("peer certificate")
	}
	res.Outcome = Classify(res.Verdict)
	if res.Outcome == OutcomeSuccess {
		if res.Verdict.DANE() {
			log.Info().Msg(res.Verdict.MatchDescription())
		}
		if res.Verdict.PeerName != "" {
			log.Info().Str("peername", res.Verdict.PeerName).
				Msg("verified peername")
		}
	} else {
		log.Error().Str("code", res.Verdict.Code).
			Msg("peer authentication failed")
		res.Err = res.Verdict.Err
	}
	return res
}
