package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dekarrin/fiberhost/internal/draft"
	"github.com/dekarrin/fiberhost/internal/runtime"
	"github.com/dekarrin/fiberhost/internal/scheduler"
	sqlitestore "github.com/dekarrin/fiberhost/internal/store/sqlite"
	"github.com/dekarrin/fiberhost/internal/util"
	"github.com/dekarrin/fiberhost/internal/version"
)

// parseJSON decodes req's body into v, requiring an application/json
// content type, grounded on server/api/api.go's parseJSON.
func parseJSON(req *http.Request, v interface{}) error {
	contentType := req.Header.Get("Content-Type")
	if !strings.EqualFold(contentType, "application/json") {
		return fmt.Errorf("request content-type is not application/json")
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return fmt.Errorf("could not read request body: %w", err)
	}
	defer func() {
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewBuffer(body))
	}()

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("malformed JSON in request: %w", err)
	}
	return nil
}

type tokenRequest struct {
	Name   string `json:"name"`
	Secret string `json:"secret"`
}

type tokenResponse struct {
	Token    string `json:"token"`
	ClientID string `json:"clientId"`
}

// POST /api/v1/tokens: authenticate a registered client and issue a
// bearer token, the bridge's equivalent of HTTPCreateLogin.
func (s *Server) epCreateToken(w http.ResponseWriter, req *http.Request) {
	var creds tokenRequest
	if err := parseJSON(req, &creds); err != nil {
		BadRequest(err.Error(), err.Error()).WriteResponse(w, req, s.logger)
		return
	}

	client, err := s.clients.Authenticate(creds.Name, creds.Secret)
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			time.Sleep(s.unauthDelay)
			Unauthorized(ErrBadCredentials.Error(), "client '%s': %s", creds.Name, err.Error()).WriteResponse(w, req, s.logger)
			return
		}
		InternalServerError(err.Error()).WriteResponse(w, req, s.logger)
		return
	}

	tok, err := generateJWT(s.secret, client)
	if err != nil {
		InternalServerError("could not generate JWT: %s", err.Error()).WriteResponse(w, req, s.logger)
		return
	}

	Created(tokenResponse{Token: tok, ClientID: client.ID.String()}, "client '%s' issued token", client.Name).
		WriteResponse(w, req, s.logger)
}

type infoResponse struct {
	Version  string `json:"version"`
	LoggedIn bool   `json:"loggedIn"`
}

// GET /api/v1/info: server info, the bridge's equivalent of
// server/api/info.go's version-reporting endpoint.
func (s *Server) epGetInfo(w http.ResponseWriter, req *http.Request) {
	loggedIn := loggedInFromContext(req.Context())
	OK(infoResponse{Version: version.DaemonCurrent, LoggedIn: loggedIn}, "served info").WriteResponse(w, req, s.logger)
}

type documentRequest struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Source string `json:"source"`
}

type createDraftRequest struct {
	Documents       []documentRequest `json:"documents"`
	EntryDocumentID string             `json:"entryDocumentId"`
}

// POST /api/v1/drafts: register a new draft's documents.
func (s *Server) epCreateDraft(w http.ResponseWriter, req *http.Request) {
	var body createDraftRequest
	if err := parseJSON(req, &body); err != nil {
		BadRequest(err.Error(), err.Error()).WriteResponse(w, req, s.logger)
		return
	}
	if len(body.Documents) == 0 {
		BadRequest("documents: must not be empty", "empty documents").WriteResponse(w, req, s.logger)
		return
	}
	if body.EntryDocumentID == "" {
		BadRequest("entryDocumentId: property is empty or missing", "empty entryDocumentId").WriteResponse(w, req, s.logger)
		return
	}

	seen := util.NewStringSet()
	var dupes []string
	for _, d := range body.Documents {
		if seen.Has(d.ID) {
			dupes = append(dupes, d.ID)
			continue
		}
		seen.Add(d.ID)
	}
	if len(dupes) > 0 {
		BadRequest(
			fmt.Sprintf("documents: duplicate id(s) %s", util.MakeTextList(dupes)),
			"duplicate document ids in draft request: %v", dupes,
		).WriteResponse(w, req, s.logger)
		return
	}

	docs := make([]draft.Document, len(body.Documents))
	for i, d := range body.Documents {
		docs[i] = draft.Document{ID: d.ID, Path: d.Path, Source: d.Source}
	}

	d := draft.Draft{ID: uuid.New(), Documents: docs, EntryDocumentID: body.EntryDocumentID}

	s.mu.Lock()
	s.drafts[d.ID] = d
	s.mu.Unlock()

	Created(d.Export(), "draft %s created", d.ID).WriteResponse(w, req, s.logger)
}

func (s *Server) lookupDraft(id uuid.UUID) (draft.Draft, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drafts[id]
	return d, ok
}

// GET /api/v1/drafts/{id}: fetch a draft's document references.
func (s *Server) epGetDraft(w http.ResponseWriter, req *http.Request) {
	id, err := requireIDParam(req, "id")
	if err != nil {
		BadRequest("id: not a valid draft id", err.Error()).WriteResponse(w, req, s.logger)
		return
	}

	d, ok := s.lookupDraft(id)
	if !ok {
		NotFound("draft %s not found", id).WriteResponse(w, req, s.logger)
		return
	}

	OK(d.Export(), "draft %s retrieved", id).WriteResponse(w, req, s.logger)
}

// POST /api/v1/drafts/{id}/compile: compile a draft and return the
// stable "Compilation result" JSON shape, persisting its metadata to
// the audit store regardless of outcome.
func (s *Server) epCompileDraft(w http.ResponseWriter, req *http.Request) {
	id, err := requireIDParam(req, "id")
	if err != nil {
		BadRequest("id: not a valid draft id", err.Error()).WriteResponse(w, req, s.logger)
		return
	}

	d, ok := s.lookupDraft(id)
	if !ok {
		NotFound("draft %s not found", id).WriteResponse(w, req, s.logger)
		return
	}

	compilation := draft.Compile(d, s.parser, s.globalEnv)

	if s.store != nil {
		rec := sqlitestore.DraftRecord{
			DraftID:         d.ID,
			Name:            compilation.Name,
			EntryDocumentID: d.EntryDocumentID,
			Valid:           compilation.Valid,
			CompiledAt:      time.Now(),
		}
		if err := s.store.Drafts.RecordCompilation(req.Context(), rec); err != nil {
			s.logger.Warnf("could not record compilation of draft %s: %s", d.ID, err.Error())
		}
	}

	out := compilation.Export(d.Export())
	OK(out, "draft %s compiled, valid=%t", id, compilation.Valid).WriteResponse(w, req, s.logger)
}

type startRunResponse struct {
	RunID string `json:"runId"`
}

// POST /api/v1/drafts/{id}/runs: compile a draft and, if valid, start
// executing its root block as a new run.
func (s *Server) epStartRun(w http.ResponseWriter, req *http.Request) {
	id, err := requireIDParam(req, "id")
	if err != nil {
		BadRequest("id: not a valid draft id", err.Error()).WriteResponse(w, req, s.logger)
		return
	}

	d, ok := s.lookupDraft(id)
	if !ok {
		NotFound("draft %s not found", id).WriteResponse(w, req, s.logger)
		return
	}

	compilation := draft.Compile(d, s.parser, s.globalEnv)
	if !compilation.Valid {
		Conflict("draft does not compile", "draft %s failed to compile, cannot start run").WriteResponse(w, req, s.logger)
		return
	}

	runID := uuid.New()
	run := scheduler.Start(context.Background(), runID, d.ID, compilation.Protocol, func(seq int, ev runtime.ProgramExecEvent) {
		if s.store == nil {
			return
		}
		if err := s.store.Runs.AppendEvent(context.Background(), runID, d.ID, seq, ev); err != nil {
			s.logger.Warnf("could not append run event: %s", err.Error())
		}
	})
	s.runs.Add(run)

	Created(startRunResponse{RunID: run.ID.String()}, "run %s started for draft %s", run.ID, d.ID).
		WriteResponse(w, req, s.logger)
}

// GET /api/v1/runs/{id}/events: stream ProgramExecEvents as
// server-sent `{type:"state", data:...}` frames, delivered over the
// bridge channel the same way any other state update is.
func (s *Server) epStreamRunEvents(w http.ResponseWriter, req *http.Request) {
	id, err := requireIDParam(req, "id")
	if err != nil {
		BadRequest("id: not a valid run id", err.Error()).WriteResponse(w, req, s.logger)
		return
	}

	run, ok := s.runs.Get(id)
	if !ok {
		NotFound("run %s not found", id).WriteResponse(w, req, s.logger)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		InternalServerError("response writer does not support streaming").WriteResponse(w, req, s.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := run.Subscribe()
	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				s.runs.Remove(id)
				return
			}
			frame := map[string]interface{}{"type": "state", "data": exportEvent(ev)}
			data, err := json.Marshal(frame)
			if err != nil {
				s.logger.Errorf("could not marshal run event: %s", err.Error())
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-req.Context().Done():
			return
		}
	}
}

// POST /api/v1/runs/{id}/commands: accept a client-driven
// pause/resume/halt command.
func (s *Server) epPostRunCommand(w http.ResponseWriter, req *http.Request) {
	id, err := requireIDParam(req, "id")
	if err != nil {
		BadRequest("id: not a valid run id", err.Error()).WriteResponse(w, req, s.logger)
		return
	}

	run, ok := s.runs.Get(id)
	if !ok {
		NotFound("run %s not found", id).WriteResponse(w, req, s.logger)
		return
	}

	var raw map[string]interface{}
	if err := parseJSON(req, &raw); err != nil {
		BadRequest(err.Error(), err.Error()).WriteResponse(w, req, s.logger)
		return
	}

	cmdType, _ := raw["type"].(string)
	if cmdType == "" {
		BadRequest("type: property is empty or missing from request", "empty command type").WriteResponse(w, req, s.logger)
		return
	}

	if err := run.ImportMessage(raw); err != nil {
		Conflict(err.Error(), "run %s rejected command %q: %s", id, cmdType, err.Error()).WriteResponse(w, req, s.logger)
		return
	}

	NoContent("run %s accepted command %q", id, cmdType).WriteResponse(w, req, s.logger)
}

// exportEvent renders a ProgramExecEvent as the outbound "Program
// events" JSON shape.
func exportEvent(ev runtime.ProgramExecEvent) map[string]interface{} {
	errMsgs := make([]string, len(ev.Errors))
	for i, e := range ev.Errors {
		errMsgs[i] = e.Error()
	}

	var location interface{}
	if exporter, ok := ev.Location.(interface{ Export() interface{} }); ok {
		location = exporter.Export()
	} else {
		location = ev.Location
	}

	return map[string]interface{}{
		"location":         location,
		"errors":           errMsgs,
		"stopped":          ev.Stopped,
		"terminated":       ev.Terminated,
		"state_terminated": ev.StateTerminated,
	}
}
