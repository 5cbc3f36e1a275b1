// Command healthcheck probes the API's readiness endpoint for container
// health checks. It exits non-zero unless the API answers 200.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

func main() {
	url := pflag.String("url", defaultURL(os.Getenv("HTTP_ADDR")), "endpoint to probe")
	timeout := pflag.Duration("timeout", 3*time.Second, "probe timeout")
	pflag.Parse()

	if err := probe(context.Background(), *url, *timeout); err != nil {
		slog.Error("health check failed", slog.String("url", *url), slog.Any("err", err))
		os.Exit(1)
	}
}

// defaultURL targets /readyz on localhost at the port of addr.
func defaultURL(addr string) string {
	port := "8000"
	if i := strings.LastIndex(addr, ":"); i >= 0 && i < len(addr)-1 {
		port = addr[i+1:]
	}
	return "http://localhost:" + port + "/readyz"
}

func probe(ctx context.Context, url string, timeout time.Duration) error {
	client := &http.Client{Timeout: timeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

type statusError struct{ code int }

func (e *statusError) Error() string { return "unexpected status " + http.StatusText(e.code) }
