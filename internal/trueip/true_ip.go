// Package trueip works out the address of the client behind any trusted reverse proxies.
package trueip

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/lthummus/loginguard/internal/config"
)

const (
	TrustedProxiesConfigKey = "security.trusted_proxies"
	RealIPHeaderConfigKey   = "security.real_ip_header"

	updateDebounceTime = 100 * time.Millisecond
)

type Resolver struct {
	lock           sync.RWMutex
	lastUpdateTime time.Time

	trustedProxyIPs   []net.IP
	trustedProxyCIDRs []*net.IPNet
	realIPHeader      string
}

// NewResolverFromConfig loads the trusted proxy list and reloads it whenever the config file changes.
func NewResolverFromConfig() *Resolver {
	r := &Resolver{}
	config.RegisterForUpdates(func(event fsnotify.Event) {
		log.Debug().Msg("reloading trusted proxy config")
		r.reload()
	})

	r.reload()
	return r
}

func (r *Resolver) reload() {
	r.lock.Lock()
	defer r.lock.Unlock()

	if time.Since(r.lastUpdateTime) < updateDebounceTime {
		return
	}

	var newTrustedIPs []net.IP
	var newTrustedCIDRs []*net.IPNet

	for _, curr := range viper.GetStringSlice(TrustedProxiesConfigKey) {
		_, ipnet, err := net.ParseCIDR(curr)
		// note opposite of normal error check!
		if err == nil {
			newTrustedCIDRs = append(newTrustedCIDRs, ipnet)
			continue
		}

		ip := net.ParseIP(curr)
		if ip == nil {
			log.Warn().Str("input", curr).Msg("could not parse trusted proxy as CIDR or IP")
			continue
		}
		newTrustedIPs = append(newTrustedIPs, ip)
	}

	if len(newTrustedIPs) == 0 && len(newTrustedCIDRs) == 0 {
		log.Warn().Msg("no trusted proxies configured; client addresses come straight from the connection")
	} else {
		log.Info().Int("trusted_ip_count", len(newTrustedIPs)).Int("trusted_cidr_count", len(newTrustedCIDRs)).Msg("loaded trusted proxies")
	}

	r.trustedProxyIPs = newTrustedIPs
	r.trustedProxyCIDRs = newTrustedCIDRs
	r.realIPHeader = viper.GetString(RealIPHeaderConfigKey)
	r.lastUpdateTime = time.Now()
}

func (r *Resolver) isProxyTrusted(ip net.IP) bool {
	for _, curr := range r.trustedProxyIPs {
		if curr.Equal(ip) {
			return true
		}
	}

	for _, curr := range r.trustedProxyCIDRs {
		if curr.Contains(ip) {
			return true
		}
	}

	return false
}

func (r *Resolver) isTrustedUpstream(req *http.Request) bool {
	remoteIPStr, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		log.Warn().Str("remote_addr", req.RemoteAddr).Err(err).Msg("could find remote address for testing trusted proxy")
		return false
	}

	remoteIP := net.ParseIP(remoteIPStr)
	if remoteIP == nil {
		log.Warn().Str("remote_ip", remoteIPStr).Msg("could not parse remote as IP")
		return false
	}

	return r.isProxyTrusted(remoteIP)
}

// lastForwardedFor returns the last X-Forwarded-For header. Only the last one was added by our proxy; Header.Get
// would return the first.
func lastForwardedFor(req *http.Request) string {
	headers := req.Header.Values("X-Forwarded-For")
	if len(headers) == 0 {
		return ""
	}
	return headers[len(headers)-1]
}

// Find returns the client address for req. Forwarding headers are only honored when the connection comes from a
// trusted proxy.
func (r *Resolver) Find(req *http.Request) string {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if r.isTrustedUpstream(req) {
		if r.realIPHeader != "" {
			if contents := req.Header.Get(r.realIPHeader); contents != "" {
				return contents
			}
			log.Warn().Str("real_ip_header", r.realIPHeader).Msg("security.real_ip_header is set, but that header isn't in the request")
		} else if fwd := lastForwardedFor(req); fwd != "" {
			parts := strings.Split(fwd, ",")
			return strings.TrimSpace(parts[len(parts)-1])
		}
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		log.Warn().Str("remote_addr", req.RemoteAddr).Err(err).Msg("could find remote address")
	}

	return host
}
