package gateway

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MikeDominic92/okta-sso-hub/errors"
	"github.com/MikeDominic92/okta-sso-hub/health"
)

// maxBodyBytes bounds request body reads.
const maxBodyBytes = 1 << 20

var errBodyTooLarge = stderrors.New("request body too large")

// requestID extracts the caller-supplied X-Request-ID or generates one
// so responses and log lines can be correlated.
func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// statusRecorder captures the response code and size for logging and
// metrics. Hijack passes through so the websocket upgrade keeps working
// behind the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, stderrors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// instrument wraps a route with request-ID propagation, request logging,
// and prometheus counters. The route label is the registered pattern,
// not the raw path, so metric cardinality stays fixed.
func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := requestID(r)
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			s.metrics.duration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		}
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.bytes,
			"duration_ms", elapsed.Milliseconds(),
			"remote", r.RemoteAddr,
			"request_id", id,
		)
	})
}

// readBody reads a bounded request body.
func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, errors.WrapInvalid(err, "gateway", "readBody", "read request body")
	}
	if len(data) > maxBodyBytes {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, maxBodyBytes),
			"gateway", "readBody", "read request body")
	}
	return data, nil
}

// statusForError maps the error taxonomy onto HTTP codes. Not-found
// sentinels are checked before the broader invalid class so a missing
// resource reads as 404, not 400.
func statusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusInternalServerError
	case stderrors.Is(err, errors.ErrFlowNotFound),
		stderrors.Is(err, errors.ErrExecutionNotFound),
		stderrors.Is(err, errors.ErrRuleNotFound),
		stderrors.Is(err, errors.ErrSubscriptionNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.IsInvalid(err):
		return http.StatusBadRequest
	case errors.IsTransient(err):
		if strings.Contains(err.Error(), "timed out") || strings.Contains(err.Error(), "timeout") {
			return http.StatusGatewayTimeout
		}
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage picks the client-facing message. Client errors carry the
// sanitized cause, since it derives from the caller's own input; server
// errors collapse to generic messages so internals never leak.
func errorMessage(err error, code int) string {
	switch {
	case code == http.StatusGatewayTimeout:
		return "request timed out"
	case code == http.StatusServiceUnavailable:
		return "service temporarily unavailable"
	case code >= http.StatusInternalServerError:
		return "internal server error"
	default:
		return health.Sanitize(err.Error())
	}
}

type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusForError(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method, "path", r.URL.Path, "status", code, "error", err)
	} else {
		s.logger.Debug("request rejected",
			"method", r.Method, "path", r.URL.Path, "status", code, "error", err)
	}
	writeJSON(w, code, errorBody{Error: errorMessage(err, code), Status: code})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{
		Error:  fmt.Sprintf("method %s not allowed", r.Method),
		Status: http.StatusMethodNotAllowed,
	})
}

func (s *Server) notFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{
		Error:  "resource not found",
		Status: http.StatusNotFound,
	})
}
