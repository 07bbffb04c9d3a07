package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/agrisa/satellite-data-service/internal/apperr"
)

// maxBodyBytes caps request bodies. Farm polygons are small.
const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("Response not fully written")
	}
}

// httpError sends a JSON error response. clientMsg is returned to the
// caller; internalDetails are logged and never sent.
func httpError(w http.ResponseWriter, status int, clientMsg string, internalDetails ...string) {
	if len(internalDetails) > 0 {
		log.Error().
			Int("status", status).
			Str("clientMsg", clientMsg).
			Strs("internalDetails", internalDetails).
			Msg("HTTP error with internal details")
	}
	respondJSON(w, status, map[string]string{"error": clientMsg})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindNoCandidates, apperr.KindNoImagery, apperr.KindNoFieldAtPoint, apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindRemotePlatform:
		return http.StatusBadGateway
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with the status of its kind. Messages of typed
// errors are safe for clients; anything else is logged and replaced.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError || status == http.StatusBadGateway {
		httpError(w, status, apperr.MessageOf(err, "Internal server error"), err.Error(), r.URL.Path)
		return
	}
	log.Warn().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("Request rejected")
	httpError(w, status, apperr.MessageOf(err, http.StatusText(status)))
}

// envelope wraps a payload for callers that expect a status field and
// a coded error instead of a bare body.
type envelope struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Data    any            `json:"data,omitempty"`
	Error   *envelopeError `json:"error,omitempty"`
}

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondEnvelope(w http.ResponseWriter, message string, data any) {
	respondJSON(w, http.StatusOK, envelope{Status: "success", Message: message, Data: data})
}

// respondEnvelopeError is respondError in envelope form. The code is the
// upper-cased error kind, e.g. NO_CANDIDATES.
func respondEnvelopeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	msg := apperr.MessageOf(err, http.StatusText(status))
	if status == http.StatusInternalServerError || status == http.StatusBadGateway {
		msg = apperr.MessageOf(err, "Internal server error")
		log.Error().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("HTTP error with internal details")
	} else {
		log.Warn().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("Request rejected")
	}
	respondJSON(w, status, envelope{
		Status: "error",
		Error: &envelopeError{
			Code:    strings.ToUpper(apperr.KindOf(err).String()),
			Message: msg,
		},
	})
}

// decodeJSON reads a JSON body into v. Malformed bodies are
// KindInvalidInput.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apperr.Invalidf("request body exceeds %d bytes", tooLarge.Limit)
		case errors.Is(err, io.EOF):
			return apperr.Invalidf("request body is required")
		default:
			return apperr.Wrap(apperr.KindInvalidInput, "invalid JSON body", err)
		}
	}
	return nil
}

// query reads typed query parameters, keeping the first parse failure.
type query struct {
	r   *http.Request
	err error
}

func (q *query) str(name string) string {
	return q.r.URL.Query().Get(name)
}

func (q *query) float(name string, required bool) float64 {
	f := q.optFloat(name)
	if f == nil {
		if required && q.err == nil {
			q.err = apperr.Invalidf("query parameter %s is required", name)
		}
		return 0
	}
	return *f
}

// optFloat returns nil when name is absent so an explicit zero survives.
func (q *query) optFloat(name string) *float64 {
	v := q.r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		if q.err == nil {
			q.err = apperr.Invalidf("query parameter %s must be a finite number", name)
		}
		return nil
	}
	return &f
}

func (q *query) int(name string) int {
	v := q.r.URL.Query().Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil && q.err == nil {
		q.err = apperr.Invalidf("query parameter %s must be an integer", name)
	}
	return n
}

func (q *query) bool(name string) bool {
	v := q.r.URL.Query().Get(name)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil && q.err == nil {
		q.err = apperr.Invalidf("query parameter %s must be true or false", name)
	}
	return b
}

// ring reads a required JSON array of [lon, lat] pairs.
func (q *query) ring(name string) [][]float64 {
	v := q.r.URL.Query().Get(name)
	if v == "" {
		if q.err == nil {
			q.err = apperr.Invalidf("query parameter %s is required", name)
		}
		return nil
	}
	var ring [][]float64
	if err := json.Unmarshal([]byte(v), &ring); err != nil {
		if q.err == nil {
			q.err = apperr.Wrap(apperr.KindInvalidInput, "query parameter "+name+" must be a JSON array of [lon, lat] pairs", err)
		}
		return nil
	}
	return ring
}
