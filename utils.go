package danetls

import (
	"crypto/x509"
	"encoding/pem"
	"net"
	"strconv"
	"strings"
	"time"
)

//
// addressString returns an address string from the given IP address and
// port.
//
func addressString(ipaddress net.IP, port int) string {

	addr := ipaddress.String()
	if !strings.Contains(addr, ":") {
		return addr + ":" + strconv.Itoa(port)
	}
	return "[" + addr + "]" + ":" + strconv.Itoa(port)
}

//
// getDialer returns a net.Dialer initialized with the given timeout.
//
func getDialer(timeout time.Duration) *net.Dialer {

	dialer := new(net.Dialer)
	dialer.Timeout = timeout
	return dialer
}

//
// CertToPEMBytes returns PEM encoded bytes corresponding to the given
// x.509 certificate.
//
func CertToPEMBytes(cert *x509.Certificate) []byte {

	block := &pem.Block{
		Type:  "CERTIFICATE",
		Bytes: cert.Raw,
	}
	return pem.EncodeToMemory(block)
}
