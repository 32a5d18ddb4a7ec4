package bridge

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/dekarrin/fiberhost/internal/hostlog"
)

// ctxKey namespaces values this package stores on a request context,
// avoiding collisions with anything else that might use context.Value.
type ctxKey int

const (
	ctxKeyLoggedIn ctxKey = iota
	ctxKeyClient
)

// clientFromContext returns the authenticated Client for req, valid
// only behind RequireAuth (panics, same as any unchecked context-value
// type assertion, if called where no AuthHandler ran first).
func clientFromContext(ctx context.Context) Client {
	return ctx.Value(ctxKeyClient).(Client)
}

func loggedInFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKeyLoggedIn).(bool)
	return v
}

// authHandler is the bridge's equivalent of server/middle/middle.go's
// AuthHandler: it extracts and validates the bearer token, then stores
// the resolved Client (or the zero Client, if auth is optional and
// absent) on the request context before calling next.
type authHandler struct {
	clients     *ClientStore
	secret      []byte
	required    bool
	unauthDelay time.Duration
	logger      *hostlog.Logger
	next        http.Handler
}

func (ah *authHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var loggedIn bool
	var client Client

	tok, err := getBearerToken(req)
	if err != nil {
		if ah.required {
			time.Sleep(ah.unauthDelay)
			Unauthorized("", err.Error()).WriteResponse(w, req, ah.logger)
			return
		}
	} else {
		client, err = validateAndLookupClient(tok, ah.secret, ah.clients)
		if err != nil {
			if ah.required {
				time.Sleep(ah.unauthDelay)
				Unauthorized("", err.Error()).WriteResponse(w, req, ah.logger)
				return
			}
		} else {
			loggedIn = true
		}
	}

	ctx := req.Context()
	ctx = context.WithValue(ctx, ctxKeyLoggedIn, loggedIn)
	ctx = context.WithValue(ctx, ctxKeyClient, client)
	ah.next.ServeHTTP(w, req.WithContext(ctx))
}

// RequireAuth builds chi-compatible middleware that rejects any
// request lacking a valid bearer token before next ever runs.
func RequireAuth(clients *ClientStore, secret []byte, unauthDelay time.Duration, logger *hostlog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return &authHandler{clients: clients, secret: secret, required: true, unauthDelay: unauthDelay, logger: logger, next: next}
	}
}

// OptionalAuth builds middleware that resolves a client if a valid
// token is present, but lets the request through either way (used by
// endpoints like server info that behave differently for logged-in
// clients without requiring one).
func OptionalAuth(clients *ClientStore, secret []byte, unauthDelay time.Duration, logger *hostlog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return &authHandler{clients: clients, secret: secret, required: false, unauthDelay: unauthDelay, logger: logger, next: next}
	}
}

// RecoverPanic is the bridge's equivalent of middle.DontPanic: it turns
// a panicking handler into an HTTP-500 instead of taking down the
// server.
func RecoverPanic(logger *hostlog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			defer func() {
				if panicVal := recover(); panicVal != nil {
					InternalServerError("panic: %v\nSTACK TRACE: %s", panicVal, string(debug.Stack())).
						WriteResponse(w, req, logger)
				}
			}()
			next.ServeHTTP(w, req)
		})
	}
}
