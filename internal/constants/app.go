// Package constants holds tunables shared across the client.
package constants

import (
	"time"
)

// Application identity
const (
	// AppName is used for the config directory and the CLI root command.
	AppName = "storectl"

	// DefaultServerURL matches the development backend listen address.
	DefaultServerURL = "http://127.0.0.1:8080"

	// SessionTokenKey is the single entry the client reads and writes in the session store.
	SessionTokenKey = "token"
)

// Workspace timing
const (
	// StatusClearDelay - how long a transient status message stays visible (5 seconds)
	StatusClearDelay = 5 * time.Second

	// SignupRedirectDelay - pause before returning to the login step after a successful signup (3 seconds)
	SignupRedirectDelay = 3 * time.Second
)

// Transfer sizing
const (
	// DownloadSpaceMargin - free space required before saving a download, as a multiple of its size
	DownloadSpaceMargin = 1.1

	// CopyBufferSize - buffer used to stream each file into the upload body (64KB)
	CopyBufferSize = 64 * 1024
)

// User-facing messages synthesized by the client when the server gives none
const (
	MsgDownloadFailed = "An error occurred while preparing the file."
	MsgUploadFailed   = "Upload failed."
	MsgRenameFailed   = "Rename failed."
	MsgDeleteFailed   = "Delete failed."
	MsgSessionExpired = "Session expired, please log in again."
)

// Event bus buffer sizing
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	// Progress callbacks fire per read, so the buffer absorbs bursts from both transfers.
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (60 seconds)
	HTTPTLSHandshakeTimeout = 60 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPProxyWarmupTimeout - timeout for the optional proxy warmup request (15 seconds)
	HTTPProxyWarmupTimeout = 15 * time.Second
)

// Retry configuration for the transport layer.
// Workspace actions are not retried by default; retry_max in the config opts in.
const (
	RetryWaitMin = 1 * time.Second
	RetryWaitMax = 30 * time.Second
)
