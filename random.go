package pgfixture

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net"
)

const passwordBytes = 10

// FreePort asks the kernel for a TCP port that is free on host. The port is released before
// returning, so another process may still grab it.
func FreePort(host string) (int, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, fmt.Errorf("find free port: %w", err)
	}
	defer ln.Close()
	addr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("listener address is not TCP: %T", ln.Addr())
	}
	return addr.Port, nil
}

// RandomPassword returns a URL-safe password made of 10 random bytes.
func RandomPassword() (string, error) {
	b := make([]byte, passwordBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
