package utils

import (
	"fmt"
	"net"
	"strconv"
)

// VerifyPortAvailable probes the address the API server is about to bind so
// a configuration pointing at an occupied port fails during startup instead
// of inside ListenAndServe.
func VerifyPortAvailable(host string, port string) error {
	if _, err := strconv.Atoi(port); err != nil {
		return fmt.Errorf("invalid port number: %w", err)
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(host, port))
	if err != nil {
		return fmt.Errorf("port %s is not available: %w", port, err)
	}
	if closeErr := ln.Close(); closeErr != nil {
		return fmt.Errorf("failed to close listener: %w", closeErr)
	}
	return nil
}
