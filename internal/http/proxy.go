package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"golang.org/x/net/http/httpproxy"

	"github.com/webstorage/storectl/internal/config"
	"github.com/webstorage/storectl/internal/constants"
	"github.com/webstorage/storectl/internal/logging"
)

// ConfigureHTTPClient builds an HTTP client honouring the configured proxy mode.
//
// Modes:
//   - no-proxy: direct connections
//   - system: HTTP_PROXY / HTTPS_PROXY / NO_PROXY from the environment
//   - basic: explicit proxy, credentials embedded in the proxy URL
//   - ntlm: explicit proxy wrapped in an NTLM negotiator
//
// A basic or ntlm mode with no host falls back to direct connections so a
// half-written config never blocks the client from starting.
func ConfigureHTTPClient(cfg *config.Config, logger *logging.Logger) (*nethttp.Client, error) {
	transport := &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
	}

	var client *nethttp.Client

	switch strings.ToLower(cfg.ProxyMode) {
	case "no-proxy", "":
		transport.Proxy = nil
		client = &nethttp.Client{Transport: transport}

	case "system":
		transport.Proxy = nethttp.ProxyFromEnvironment
		client = &nethttp.Client{Transport: transport}

	case "basic", "ntlm":
		if cfg.ProxyHost == "" {
			logger.Warn().Str("mode", cfg.ProxyMode).Msg("Proxy host is missing, falling back to direct connections")
			transport.Proxy = nil
			return &nethttp.Client{Transport: transport}, nil
		}
		if cfg.NeedsProxyPassword() {
			logger.Warn().Msg("Proxy user configured but password missing, proxy auth disabled until password is set")
		}

		transport.Proxy = proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy, logger)
		if cfg.ProxyMode == "ntlm" {
			client = &nethttp.Client{Transport: ntlmssp.Negotiator{RoundTripper: transport}}
		} else {
			client = &nethttp.Client{Transport: transport}
		}

	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", cfg.ProxyMode)
	}

	if cfg.ProxyWarmup && cfg.ProxyMode != "no-proxy" && cfg.ProxyMode != "" {
		if err := warmupProxy(client, cfg.ServerURL); err != nil {
			return nil, fmt.Errorf("proxy warmup failed: %w", err)
		}
	}

	return client, nil
}

// buildProxyURL constructs a proxy URL from config
func buildProxyURL(cfg *config.Config) *url.URL {
	port := cfg.ProxyPort
	if port == 0 {
		port = 8080
	}

	proxyURL := &url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%d", cfg.ProxyHost, port),
	}

	// Empty password in URL can cause auth failures with some proxies
	if cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
		proxyURL.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
	}

	return proxyURL
}

// warmupProxy performs one request through the proxy so authentication
// failures surface at startup rather than mid-transfer.
func warmupProxy(client *nethttp.Client, serverURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), constants.HTTPProxyWarmupTimeout)
	defer cancel()

	req, err := nethttp.NewRequestWithContext(ctx, "GET", serverURL+"/", nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("warmup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == nethttp.StatusProxyAuthRequired {
		return fmt.Errorf("proxy rejected credentials: %d", resp.StatusCode)
	}

	return nil
}

// proxyFuncWithBypass returns a proxy function that respects the NoProxy bypass list.
// If noProxy is empty, behaves identically to nethttp.ProxyURL.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string, logger *logging.Logger) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	cfg := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	proxyFunc := cfg.ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		result, err := proxyFunc(req.URL)
		if result == nil {
			logger.Debug().Str("host", req.URL.Host).Msg("Proxy bypass")
		}
		return result, err
	}
}
