package utils

import (
	"fmt"
	"net"
)

func IsPortAvailable(host string, port int) bool {
	listener, err := net.ListenTCP("tcp4", &net.TCPAddr{IP: net.ParseIP(host), Port: port})
	if err != nil {
		Verbose("port %d on %s not available: %v", port, host, err)
		return false
	}

	defer listener.Close()
	return true
}

// FindAvailablePort returns the first free port in [start, end] on host.
func FindAvailablePort(host string, start, end int) (int, error) {
	if start > end {
		return 0, fmt.Errorf("invalid port range %d-%d", start, end)
	}

	for port := start; port <= end; port++ {
		if IsPortAvailable(host, port) {
			return port, nil
		}
	}

	return 0, fmt.Errorf("no available port in range %d-%d", start, end)
}
