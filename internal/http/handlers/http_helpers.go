package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// readJSON tries to read the body of a request and converts it into JSON
func readJSON(w http.ResponseWriter, r *http.Request, data any) error {
	maxBytes := 1048576 // one megabyte
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	err := dec.Decode(data)
	if err != nil {
		return fmt.Errorf("failed to read JSON: %w", err)
	}

	err = dec.Decode(&struct{}{})
	if err != io.EOF {
		return errors.New("body must have only a single json value")
	}

	return nil
}

// writeJSON takes a response status code and arbitrary data and writes a json response to the client
func writeJSON(w http.ResponseWriter, status int, data any, headers ...http.Header) error {
	out, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if len(headers) > 0 {
		for key, value := range headers[0] {
			w.Header()[key] = value
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(out)
	if err != nil {
		return fmt.Errorf("failed to write to response: %w", err)
	}

	return nil
}

type ErrorResponse struct {
	Error     string                   `json:"error"`
	Details   string                   `json:"details,omitempty"`
	Retryable bool                     `json:"retryable,omitempty"`
	Errors    []ProductValidationError `json:"errors,omitempty"`
}

func (s *Server) respond(w http.ResponseWriter, status int, data any) {
	if err := writeJSON(w, status, data); err != nil {
		s.log.Error("failed to write JSON response", zap.Error(err))
	}
}

// fail classifies err and writes it as a JSON error payload.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	appErr := classify(err)
	if appErr.Status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", appErr.Status),
			zap.Error(err))
	}
	resp := ErrorResponse{Error: appErr.Message, Retryable: appErr.Retryable}
	if appErr.Status != http.StatusInternalServerError && appErr.Err != nil {
		resp.Details = appErr.Err.Error()
	}
	s.respond(w, appErr.Status, resp)
}

func (s *Server) badRequest(w http.ResponseWriter, message string) {
	s.respond(w, http.StatusBadRequest, ErrorResponse{Error: message})
}

func (s *Server) invalid(w http.ResponseWriter, errs []ProductValidationError) {
	s.respond(w, http.StatusBadRequest, ErrorResponse{Error: "invalid product", Errors: errs})
}

var errBadParam = errors.New("invalid query parameter")

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errBadParam, name)
	}
	return &v, nil
}

func boolParam(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// timeParam parses an optional RFC 3339 query parameter.
func timeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	// Query decoding turns the + of a zone offset into a space.
	if len(raw) == len(time.RFC3339) && raw[len(raw)-6] == ' ' {
		raw = raw[:len(raw)-6] + "+" + raw[len(raw)-5:]
	}
	if raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errBadParam, name)
	}
	return &ts, nil
}

// pageParams reads offset and limit, both optional, offset >= 0 and limit > 0.
func pageParams(r *http.Request) (offset, limit *int, err error) {
	if offset, err = intParam(r, "offset"); err != nil {
		return nil, nil, err
	}
	if offset != nil && *offset < 0 {
		return nil, nil, fmt.Errorf("%w: offset must be zero or positive", errBadParam)
	}
	if limit, err = intParam(r, "limit"); err != nil {
		return nil, nil, err
	}
	if limit != nil && *limit <= 0 {
		return nil, nil, fmt.Errorf("%w: limit must be greater than zero", errBadParam)
	}
	return offset, limit, nil
}
