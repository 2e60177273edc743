package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/encore/internal/shared"
	"golang.org/x/oauth2"
)

// RunCallback serves handler at addr/path until the flow completes, the
// timeout elapses, or ctx is canceled, then shuts the listener down.
func RunCallback(ctx context.Context, addr, path string, handler *OAuthHandler, timeout time.Duration, logger *log.Logger) (*oauth2.Token, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	mux := http.NewServeMux()
	mux.Handle(path, handler)
	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("waiting for authorization callback", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("callback server error: %w", err)
	case <-timer.C:
		shutdown(httpServer, logger)
		return nil, fmt.Errorf("%w: no authorization after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		shutdown(httpServer, logger)
		return nil, ctx.Err()
	}

	shutdown(httpServer, logger)

	if result.Error() != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}

func shutdown(httpServer *http.Server, logger *log.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error shutting down callback server", "error", err)
	}
}
