package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// OAuthResult is the outcome of one authorization flow.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o OAuthResult) Error() error {
	return o.err
}

// OAuthHandler serves the OAuth2 redirect endpoint. It validates the state
// token, exchanges the authorization code, and delivers exactly one
// [OAuthResult] on [OAuthHandler.Result].
type OAuthHandler struct {
	config     *oauth2.Config
	state      string
	resultChan chan OAuthResult
	once       sync.Once
}

// NewOAuthHandler creates a handler for the given config and state token.
// The state token should be cryptographically random.
func NewOAuthHandler(config *oauth2.Config, state string) *OAuthHandler {
	return &OAuthHandler{
		config:     config,
		state:      state,
		resultChan: make(chan OAuthResult, 1),
	}
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("state") != h.state {
		h.send(OAuthResult{err: fmt.Errorf("invalid state parameter")})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		errParam := r.URL.Query().Get("error")
		h.send(OAuthResult{err: fmt.Errorf("authorization denied: %s", errParam)})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	token, err := h.config.Exchange(context.Background(), code)
	if err != nil {
		h.send(OAuthResult{err: fmt.Errorf("token exchange failed: %w", err)})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	h.send(OAuthResult{Token: token})

	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Authorization Complete</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4rem">
	<h1>&#10003; Authorization complete</h1>
	<p>You can close this window and return to the terminal.</p>
</body>
</html>
`)
}

// send delivers the result at most once; late callback hits are ignored.
func (h *OAuthHandler) send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the channel that receives exactly one flow outcome.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}
