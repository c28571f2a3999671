package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
)

// ErrorKind classifies a failed request.
type ErrorKind int

const (
	// KindTransport covers network failures and unusable response bodies.
	KindTransport ErrorKind = iota
	// KindAuthorization is a 401: the credential is missing, invalid or expired.
	KindAuthorization
	// KindValidation is any other 4xx.
	KindValidation
	// KindServer is a 5xx.
	KindServer
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	default:
		return "transport"
	}
}

// maxErrorBody bounds how much of an error response is read for its message.
const maxErrorBody = 64 * 1024

// RequestError is returned for every request that did not produce a usable response.
type RequestError struct {
	Kind       ErrorKind
	StatusCode int    // 0 for transport failures
	Message    string // server-supplied message, if any
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s error (status %d)", e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	default:
		return e.Kind.String() + " error"
	}
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// serverMessage is the body shape the backend uses for errors and acknowledgements.
type serverMessage struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// KindForStatus maps an HTTP status code to an error kind.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == nethttp.StatusUnauthorized:
		return KindAuthorization
	case status >= 400 && status < 500:
		return KindValidation
	case status >= 500:
		return KindServer
	default:
		return KindTransport
	}
}

// FromResponse builds a RequestError from a non-2xx response, consuming the body.
func FromResponse(resp *nethttp.Response) *RequestError {
	reqErr := &RequestError{
		Kind:       KindForStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
	}
	if resp.Body == nil {
		return reqErr
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		reqErr.Err = err
		return reqErr
	}
	reqErr.Message = ParseMessage(body)
	return reqErr
}

// ParseMessage extracts the message field from a JSON body, or "" if there is none.
func ParseMessage(body []byte) string {
	var msg serverMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return ""
	}
	if msg.Message != "" {
		return strings.TrimSpace(msg.Message)
	}
	return strings.TrimSpace(msg.Error)
}

// Transport wraps a network or decoding failure.
func Transport(err error) *RequestError {
	return &RequestError{Kind: KindTransport, Err: err}
}

// KindOf returns the kind of err, or KindTransport if err carries no RequestError.
func KindOf(err error) ErrorKind {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind
	}
	return KindTransport
}

// IsAuthorization reports whether err is a 401 failure.
func IsAuthorization(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Kind == KindAuthorization
}

// UserMessage returns the server-supplied message carried by err, or fallback
// when the server said nothing usable.
func UserMessage(err error, fallback string) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr.Message != "" {
		return reqErr.Message
	}
	return fallback
}
