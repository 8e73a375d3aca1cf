package healthcheck

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	Path     = "/api/health"
	StatusUp = "UP"
)

var client = &http.Client{}

type response struct {
	Status string `json:"status"`
}

// CheckHealth calls the basic health endpoint of a server running on this machine and fails unless it answers 200
// with status UP.
func CheckHealth(ctx context.Context, host string, timeout time.Duration, disableTLSCheck bool) error {
	log.Info().Str("host", host).Msg("starting health check")

	client.Timeout = timeout

	if disableTLSCheck {
		log.Warn().Msg("ignoring bad HTTPS certificates from server")
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402 -- doing this at user's option
			},
		}
	}

	target, err := url.JoinPath(host, Path)
	if err != nil {
		return fmt.Errorf("healthcheck: CheckHealth: bad host: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}

	// only ever probe this machine
	if strings.ToLower(req.URL.Hostname()) != "localhost" && req.URL.Hostname() != "127.0.0.1" {
		return fmt.Errorf("healthcheck: CheckHealth: can only check health on localhost")
	}

	res, err := client.Do(req) // #nosec G704 -- limited to localhost
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		log.Error().Str("host", host).Str("status", res.Status).Msg("bad status from server")
		return fmt.Errorf("healthcheck: bad status from server: %s", res.Status)
	}

	var body response
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return fmt.Errorf("healthcheck: could not decode response: %w", err)
	}

	if body.Status != StatusUp {
		return fmt.Errorf("healthcheck: server reports status %q", body.Status)
	}

	return nil
}
