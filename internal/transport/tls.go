package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/url"
	"os"
	"strings"
)

func clientTLSConfig(cfg TLSConfig, endpoint string) (*tls.Config, error) {
	out := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	serverName := strings.TrimSpace(cfg.ServerName)
	if serverName == "" {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, err
		}
		serverName = u.Hostname()
	}
	out.ServerName = serverName

	if caPath := strings.TrimSpace(cfg.CAFile); caPath != "" {
		caPEM, err := os.ReadFile(caPath)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, fmt.Errorf("transport: parse tls ca bundle: %s", caPath)
		}
		out.RootCAs = pool
	}
	return out, nil
}
