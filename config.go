package danetls

import "time"

// defaultAttemptTimeout bounds one address attempt: connect, optional
// STARTTLS negotiation, and TLS handshake. The original tool blocked
// without bound; a deadline keeps total run time proportional to the
// number of addresses.
const defaultAttemptTimeout = 10 * time.Second

//
// Config holds the immutable parameters of a single run: the target
// server, the authentication policy, and the optional STARTTLS
// application. It is constructed once at startup and shared read-only
// by the decision engine and the orchestrator; per-run mutable state
// (attempt outcomes, counters) lives in RunResult instead.
//
type Config struct {
	Hostname    string        // server hostname (certificate name checks)
	Port        int           // server port
	Mode        Mode          // authentication mode
	CAFile      string        // alternate trust store (PEM), "" = system store
	Appname     string        // STARTTLS application, "" = direct TLS
	Servicename string        // STARTTLS service name, "" = Hostname
	DaneEEname  bool          // do name checks even for DANE-EE records
	Timeout     time.Duration // per-address attempt deadline
}

//
// NewConfig returns a Config for the given server name and port, with
// the default authentication mode (DANE with PKIX fallback) and attempt
// timeout.
//
func NewConfig(hostname string, port int) *Config {
	c := new(Config)
	c.Hostname = hostname
	c.Port = port
	c.Mode = ModeBoth
	c.Timeout = defaultAttemptTimeout
	return c
}

//
// Service returns the STARTTLS service name: the configured one, or the
// server hostname when unset.
//
func (c *Config) Service() string {
	if c.Servicename != "" {
		return c.Servicename
	}
	return c.Hostname
}
