package http

import (
	"context"
	"crypto/tls"
	nethttp "net/http"
	"os"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/http2"

	"github.com/webstorage/storectl/internal/config"
	"github.com/webstorage/storectl/internal/constants"
	"github.com/webstorage/storectl/internal/logging"
)

// retryLogger adapts the zerolog wrapper to retryablehttp.LeveledLogger.
type retryLogger struct {
	logger *logging.Logger
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// checkRetry retries transport failures and 5xx only. A 4xx answer is final:
// retrying a 401 or a rejected rename cannot change the outcome.
func checkRetry(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err == nil && resp != nil && resp.StatusCode < 500 {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// NewAPIClient creates the client used for JSON calls (login, list, rename, delete).
// RetryMax comes from config and defaults to zero, so failures surface on the
// first attempt unless the user opts in.
func NewAPIClient(cfg *config.Config, logger *logging.Logger) (*nethttp.Client, error) {
	base, err := ConfigureHTTPClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = base
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = constants.RetryWaitMin
	retryClient.RetryWaitMax = constants.RetryWaitMax
	retryClient.CheckRetry = checkRetry
	// Hand the last response back untouched so status codes reach the gate.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = retryLogger{logger: logger}

	return retryClient.StandardClient(), nil
}

// NewTransferClient creates the client used for uploads and downloads.
//
// It is not wrapped in retryablehttp: the retry layer buffers request bodies,
// which would defeat streaming upload progress. Transfers are never retried.
//
// Key settings:
//   - Proxy support (ConfigureHTTPClient as base)
//   - HTTP/2 unless a proxy is active (DISABLE_HTTP2 / FORCE_HTTP2 env toggles)
//   - Disabled compression
//   - No overall timeout; callers bound transfers with their context
func NewTransferClient(cfg *config.Config, logger *logging.Logger) (*nethttp.Client, error) {
	baseClient, err := ConfigureHTTPClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	tr, ok := baseClient.Transport.(*nethttp.Transport)
	if !ok {
		// NTLM wraps the transport in a negotiator; use it as-is.
		baseClient.Timeout = 0
		return baseClient, nil
	}

	tr.MaxIdleConns = 64
	tr.MaxIdleConnsPerHost = 16
	tr.MaxConnsPerHost = 16
	tr.DisableCompression = true
	tr.ForceAttemptHTTP2 = true

	_ = http2.ConfigureTransport(tr)

	if os.Getenv("DISABLE_HTTP2") == "true" {
		disableHTTP2(tr)
	}

	// Proxies often mishandle HTTP/2 multiplexing mid-transfer.
	if proxyActive(cfg) && os.Getenv("FORCE_HTTP2") != "true" {
		logger.Debug().Str("mode", cfg.ProxyMode).Msg("Proxy active, transfers use HTTP/1.1")
		disableHTTP2(tr)
	}

	baseClient.Transport = tr
	baseClient.Timeout = 0
	return baseClient, nil
}

func disableHTTP2(tr *nethttp.Transport) {
	tr.ForceAttemptHTTP2 = false
	tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
}

func proxyActive(cfg *config.Config) bool {
	switch cfg.ProxyMode {
	case "no-proxy", "":
		return false
	case "system":
		return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
			os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
	default:
		return true
	}
}
