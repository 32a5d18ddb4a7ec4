package bridge

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dekarrin/fiberhost/internal/hostlog"
)

// errorBody is the JSON shape of an error response, matching
// server/result/result.go's ErrorResponse.
type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// Result is a pending HTTP response: a status, a JSON body, and a
// message logged at the server, never shown to the client. Grounded on
// server/result/result.go's Result, trimmed to this bridge's needs (no
// redirects, no plain-text variant: every bridge response is JSON).
type Result struct {
	Status      int
	IsErr       bool
	InternalMsg string

	body interface{}
	hdrs [][2]string
}

// OK builds an HTTP-200 JSON result.
func OK(body interface{}, internalMsg string, args ...interface{}) Result {
	return Result{Status: http.StatusOK, body: body, InternalMsg: fmt.Sprintf(internalMsg, args...)}
}

// Created builds an HTTP-201 JSON result.
func Created(body interface{}, internalMsg string, args ...interface{}) Result {
	return Result{Status: http.StatusCreated, body: body, InternalMsg: fmt.Sprintf(internalMsg, args...)}
}

// NoContent builds an HTTP-204 result with no body.
func NoContent(internalMsg string, args ...interface{}) Result {
	return Result{Status: http.StatusNoContent, InternalMsg: fmt.Sprintf(internalMsg, args...)}
}

// BadRequest builds an HTTP-400 error result.
func BadRequest(userMsg, internalMsg string, args ...interface{}) Result {
	return errResult(http.StatusBadRequest, userMsg, internalMsg, args...)
}

// Unauthorized builds an HTTP-401 error result, also setting the
// WWW-Authenticate header.
func Unauthorized(userMsg, internalMsg string, args ...interface{}) Result {
	if userMsg == "" {
		userMsg = "You are not authorized to do that"
	}
	r := errResult(http.StatusUnauthorized, userMsg, internalMsg, args...)
	r.hdrs = append(r.hdrs, [2]string{"WWW-Authenticate", `Bearer realm="fiberhost bridge"`})
	return r
}

// Forbidden builds an HTTP-403 error result.
func Forbidden(internalMsg string, args ...interface{}) Result {
	return errResult(http.StatusForbidden, "You don't have permission to do that", internalMsg, args...)
}

// NotFound builds an HTTP-404 error result.
func NotFound(internalMsg string, args ...interface{}) Result {
	return errResult(http.StatusNotFound, "The requested resource was not found", internalMsg, args...)
}

// Conflict builds an HTTP-409 error result.
func Conflict(userMsg, internalMsg string, args ...interface{}) Result {
	return errResult(http.StatusConflict, userMsg, internalMsg, args...)
}

// InternalServerError builds an HTTP-500 error result.
func InternalServerError(internalMsg string, args ...interface{}) Result {
	return errResult(http.StatusInternalServerError, "An internal server error occurred", internalMsg, args...)
}

func errResult(status int, userMsg, internalMsg string, args ...interface{}) Result {
	return Result{
		Status:      status,
		IsErr:       true,
		InternalMsg: fmt.Sprintf(internalMsg, args...),
		body:        errorBody{Error: userMsg, Status: status},
	}
}

// WriteResponse marshals r's body (if any) and writes the HTTP
// response, logging the outcome through logger.
func (r Result) WriteResponse(w http.ResponseWriter, req *http.Request, logger *hostlog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	for _, h := range r.hdrs {
		w.Header().Set(h[0], h[1])
	}

	var payload []byte
	if r.Status != http.StatusNoContent && r.body != nil {
		var err error
		payload, err = json.Marshal(r.body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			logger.Errorf("%s %s: could not marshal response: %s", req.Method, req.URL.Path, err.Error())
			return
		}
	}

	w.WriteHeader(r.Status)
	if payload != nil {
		w.Write(payload)
	}

	if r.IsErr {
		logger.Errorf("%s %s: HTTP-%d %s", req.Method, req.URL.Path, r.Status, r.InternalMsg)
	} else {
		logger.Infof("%s %s: HTTP-%d %s", req.Method, req.URL.Path, r.Status, r.InternalMsg)
	}
}
