package connector

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"os"

	"oggo/connstring"
	"oggo/ogerr"
	"oggo/protocol"
)

// upgradeTLS runs the pre-startup SSLRequest negotiation and, if the
// server agrees, wraps conn in a TLS client connection: write
// SSLRequest, read a single byte ('S' or 'N'); on 'N', fail unless
// SslMode is one that tolerates plaintext.
func upgradeTLS(conn net.Conn, cfg *connstring.Config, host string) (net.Conn, error) {
	wb := protocol.NewWriteBuffer(conn, 8)
	protocol.WriteSSLRequest(wb)
	if err := wb.Flush(); err != nil {
		return nil, ogerr.Wrap(ogerr.ConnectionFailed, err, "send SSLRequest")
	}

	reply := make([]byte, 1)
	if _, err := conn.Read(reply); err != nil {
		return nil, ogerr.Wrap(ogerr.ConnectionFailed, err, "read SSLRequest reply")
	}

	if reply[0] == 'N' {
		switch cfg.SslMode {
		case connstring.SslRequire, connstring.SslVerifyCA, connstring.SslVerifyFull:
			return nil, ogerr.Newf(ogerr.ConnectionFailed, "server refused SSL but SslMode=%s requires it", cfg.SslMode)
		default:
			return conn, nil
		}
	}
	if reply[0] != 'S' {
		return nil, ogerr.Newf(ogerr.ProtocolViolation, "unexpected SSLRequest reply byte %q", reply[0])
	}

	tlsCfg, err := buildTLSConfig(cfg, host)
	if err != nil {
		return nil, err
	}
	tlsConn := tls.Client(conn, tlsCfg)
	if err := tlsConn.Handshake(); err != nil {
		return nil, ogerr.Wrap(ogerr.ConnectionFailed, err, "TLS handshake")
	}
	return tlsConn, nil
}

// buildTLSConfig assembles a *tls.Config from the connection string's TLS
// knobs: RootCertificate for server verification, SslCertificate/
// SslKey for client certificate auth, TrustServerCertificate/SslMode for
// the verification policy.
func buildTLSConfig(cfg *connstring.Config, host string) (*tls.Config, error) {
	tc := &tls.Config{ServerName: host}

	if cfg.SslMode == connstring.SslAllow || cfg.SslMode == connstring.SslPrefer || cfg.TrustServerCertificate {
		tc.InsecureSkipVerify = true
	}
	if cfg.SslMode == connstring.SslVerifyCA {
		// Go's default verification also checks the hostname; VerifyCA
		// wants chain validation only, so skip the built-in check and
		// verify the chain ourselves in VerifyPeerCertificate.
		tc.InsecureSkipVerify = true
		tc.VerifyPeerCertificate = verifyCAOnly(tc)
	}

	if cfg.RootCertificate != "" {
		pem, err := os.ReadFile(cfg.RootCertificate)
		if err != nil {
			return nil, ogerr.Wrap(ogerr.ConfigurationInvalid, err, "read RootCertificate")
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, ogerr.New(ogerr.ConfigurationInvalid, "RootCertificate contains no usable certificates")
		}
		tc.RootCAs = pool
	}

	if cfg.SslCertificate != "" && cfg.SslKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.SslCertificate, cfg.SslKey)
		if err != nil {
			return nil, ogerr.Wrap(ogerr.ConfigurationInvalid, err, "load client certificate/key")
		}
		tc.Certificates = []tls.Certificate{cert}
	}

	return tc, nil
}

// verifyCAOnly implements SslMode=VerifyCA: validate the certificate
// chain against RootCAs but skip hostname verification, unlike the
// standard library's all-or-nothing InsecureSkipVerify.
func verifyCAOnly(tc *tls.Config) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		certs := make([]*x509.Certificate, len(rawCerts))
		for i, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return err
			}
			certs[i] = cert
		}
		opts := x509.VerifyOptions{Roots: tc.RootCAs, Intermediates: x509.NewCertPool()}
		for _, c := range certs[1:] {
			opts.Intermediates.AddCert(c)
		}
		_, err := certs[0].Verify(opts)
		return err
	}
}
