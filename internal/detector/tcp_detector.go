package detector

import (
	"fmt"
	"net"
	"time"
)

// TCPDetector considers the daemon alive when its port accepts a
// connection.
type TCPDetector struct {
	Host    string // defaults to 127.0.0.1
	Port    int
	Timeout time.Duration // per-dial; defaults to 1s
}

func (d TCPDetector) Alive() (bool, error) {
	host := d.Host
	if host == "" {
		host = "127.0.0.1"
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, fmt.Sprintf("%d", d.Port)), timeout)
	if err != nil {
		return false, nil
	}
	_ = conn.Close()
	return true, nil
}

func (d TCPDetector) Describe() string { return fmt.Sprintf("tcp:%d", d.Port) }
