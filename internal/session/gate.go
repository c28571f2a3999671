package session

import (
	nethttp "net/http"

	"github.com/webstorage/storectl/internal/events"
	apihttp "github.com/webstorage/storectl/internal/http"
	"github.com/webstorage/storectl/internal/logging"
)

// Doer executes HTTP requests. *net/http.Client satisfies it.
type Doer interface {
	Do(req *nethttp.Request) (*nethttp.Response, error)
}

// Gate attaches the session credential to every request and ends the session
// on a 401, whichever action issued the call.
type Gate struct {
	session *Session
	doer    Doer
	bus     *events.EventBus
	logger  *logging.Logger
}

// NewGate creates a gate sending through doer. bus may be nil.
func NewGate(session *Session, doer Doer, bus *events.EventBus, logger *logging.Logger) *Gate {
	return &Gate{session: session, doer: doer, bus: bus, logger: logger}
}

// Session returns the session the gate reads from.
func (g *Gate) Session() *Session {
	return g.session
}

// Do sends req with "Authorization: Bearer <token>".
//
// A 2xx response is returned open for the caller to read and close. Any other
// status is consumed and returned as a *http.RequestError; a 401 also clears
// the session and publishes a session-ended event navigating to the entry page.
// A response that arrives after the session was cleared or replaced is
// discarded and reported as an authorization failure.
func (g *Gate) Do(req *nethttp.Request) (*nethttp.Response, error) {
	token, epoch := g.session.snapshot()
	if token == "" {
		return nil, &apihttp.RequestError{Kind: apihttp.KindAuthorization, Err: ErrNotAuthenticated}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.doer.Do(req)
	if err != nil {
		g.logger.Debug().Err(err).Str("method", req.Method).Str("path", req.URL.Path).Msg("Request failed")
		return nil, apihttp.Transport(err)
	}

	g.logger.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Msg("Request completed")

	if _, current := g.session.snapshot(); current != epoch {
		resp.Body.Close()
		return nil, &apihttp.RequestError{Kind: apihttp.KindAuthorization, Err: ErrNotAuthenticated}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	reqErr := apihttp.FromResponse(resp)
	if reqErr.Kind == apihttp.KindAuthorization {
		g.endSession(epoch, reqErr.Message)
	}
	return nil, reqErr
}

func (g *Gate) endSession(epoch uint64, reason string) {
	if !g.session.clearIfCurrent(epoch) {
		return
	}
	if reason == "" {
		reason = "unauthorized"
	}
	g.logger.Warn().Str("reason", reason).Msg("Session ended by server")
	if g.bus != nil {
		g.bus.PublishSessionEnded(reason, events.NavigateEntry)
	}
}
