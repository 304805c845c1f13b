package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"
)

const defaultAddr = "127.0.0.1:3001"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var (
		addr    string
		timeout time.Duration
	)

	flagSet := pflag.NewFlagSet("healthcheck", pflag.ContinueOnError)
	flagSet.StringVar(&addr, "addr", os.Getenv("OPSCENTER_LISTEN_ADDR"), "address of the opscenter API (host:port)")
	flagSet.DurationVar(&timeout, "timeout", 2*time.Second, "request timeout")
	if err := flagSet.Parse(args); err != nil {
		return 2
	}

	return check(normalizeAddr(addr), timeout)
}

func check(addr string, timeout time.Duration) int {
	client := &http.Client{Timeout: timeout}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://%s/api/health", addr), nil)
	if err != nil {
		return 1
	}

	resp, err := client.Do(req)
	if err != nil {
		return 1
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 1
	}

	return 0
}

// normalizeAddr ensures the healthcheck connects to loopback rather than the
// bind-all address, since it runs inside the same container as the server.
func normalizeAddr(raw string) string {
	if raw == "" {
		return defaultAddr
	}

	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return defaultAddr
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port)
}
