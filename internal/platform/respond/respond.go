// Package respond renders RFC 9457 problem details for failures that happen
// outside of Huma operations: unknown routes, wrong methods and panics.
package respond

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	applog "github.com/janisto/greeter-web/internal/platform/logging"
)

const (
	contentTypeProblemJSON = "application/problem+json"
	contentTypeProblemCBOR = "application/problem+cbor"

	schemaPath = "/schemas/ErrorModel.json"

	msgNotFound       = "resource not found"
	msgInternalServer = "internal server error"
)

// Problem is the problem-details body. It decodes into huma.ErrorModel.
type Problem struct {
	Schema   string `json:"$schema,omitempty"`
	Title    string `json:"title,omitempty"`
	Status   int    `json:"status,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// NotFoundHandler answers unknown paths with a 404 problem.
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteProblem(w, r, http.StatusNotFound, msgNotFound, nil)
	}
}

// MethodNotAllowedHandler answers a known path requested with an unsupported
// method. The Allow header lists the methods the router would accept.
func MethodNotAllowedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if allow := allowedMethods(r); len(allow) > 0 {
			w.Header().Set("Allow", strings.Join(allow, ", "))
		}
		WriteProblem(w, r, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method), nil)
	}
}

// Recoverer turns panics into 500 problems. http.ErrAbortHandler is re-raised
// so net/http can abort the connection, and nothing is written when the
// handler already sent a status line.
func Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &responseWriter{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				err := fmt.Errorf("panic: %v\n%s", rec, debug.Stack())
				if rw.wroteHeader {
					applog.LogError(r.Context(), "panic after response started", err)
					return
				}
				WriteProblem(rw, r, http.StatusInternalServerError, msgInternalServer, err)
			}()
			next.ServeHTTP(rw, r)
		})
	}
}

// WriteProblem negotiates JSON or CBOR from the Accept header and writes a
// problem body for status. cause is logged, never rendered.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string, cause error) {
	ctx := r.Context()
	schema := schemaURL(r)
	p := Problem{
		Schema:   schema,
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	}
	logProblem(ctx, p, cause)

	h := w.Header()
	h.Set("Link", "<"+schema+`>; rel="describedBy"`)
	ensureVary(h, "Accept")

	var (
		body []byte
		err  error
	)
	if preferCBOR(r.Header.Get("Accept")) {
		h.Set("Content-Type", contentTypeProblemCBOR)
		body, err = cbor.Marshal(p)
	} else {
		h.Set("Content-Type", contentTypeProblemJSON)
		body, err = marshalJSON(p)
	}
	if err != nil {
		applog.LogError(ctx, "failed to encode problem", err)
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		applog.LogWarn(ctx, "failed to write problem", zap.Error(err))
	}
}

func marshalJSON(v any) ([]byte, error) {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

func logProblem(ctx context.Context, p Problem, cause error) {
	fields := []zap.Field{
		zap.Int("status", p.Status),
		zap.String("path", p.Instance),
	}
	switch {
	case p.Status >= http.StatusInternalServerError:
		applog.LogError(ctx, p.Detail, cause, fields...)
	default:
		if cause != nil {
			fields = append(fields, zap.Error(cause))
		}
		applog.LogWarn(ctx, p.Detail, fields...)
	}
}

func schemaURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host + schemaPath
}

// ensureVary adds each value to the Vary header unless it is already listed.
func ensureVary(h http.Header, values ...string) {
	present := make(map[string]struct{})
	for _, line := range h.Values("Vary") {
		for part := range strings.SplitSeq(line, ",") {
			if v := strings.TrimSpace(part); v != "" {
				present[strings.ToLower(v)] = struct{}{}
			}
		}
	}
	for _, v := range values {
		key := strings.ToLower(v)
		if _, ok := present[key]; ok {
			continue
		}
		present[key] = struct{}{}
		h.Add("Vary", v)
	}
}

type mediaRange struct {
	typ     string
	subtype string
	q       float64
}

// parseAccept splits an Accept header into media ranges. Malformed or
// out-of-range q values fall back to 1.
func parseAccept(header string) []mediaRange {
	var ranges []mediaRange
	for part := range strings.SplitSeq(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		params := strings.Split(part, ";")
		mr := mediaRange{q: 1}
		mt := strings.ToLower(strings.TrimSpace(params[0]))
		if typ, sub, ok := strings.Cut(mt, "/"); ok {
			mr.typ, mr.subtype = typ, sub
		} else {
			mr.typ, mr.subtype = mt, "*"
		}
		for _, p := range params[1:] {
			k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
			if !ok || strings.TrimSpace(k) != "q" {
				continue
			}
			if q, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && q >= 0 && q <= 1 {
				mr.q = q
			}
		}
		ranges = append(ranges, mr)
	}
	return ranges
}

// quality returns the q value of the most specific range matching
// application/<suffix> or application/problem+<suffix>, or 0 if none match.
func quality(ranges []mediaRange, suffix string) float64 {
	best, bestRank := 0.0, 0
	for _, mr := range ranges {
		rank := 0
		switch {
		case mr.typ == "application" && (mr.subtype == suffix || mr.subtype == "problem+"+suffix):
			rank = 4
		case mr.typ == "application" && mr.subtype == "*+"+suffix:
			rank = 3
		case mr.typ == "application" && mr.subtype == "*":
			rank = 2
		case mr.typ == "*" && mr.subtype == "*":
			rank = 1
		}
		if rank > bestRank {
			best, bestRank = mr.q, rank
		}
	}
	return best
}

// preferCBOR reports whether the client ranks CBOR strictly above JSON.
// Ties and unmatched headers fall back to JSON.
func preferCBOR(accept string) bool {
	ranges := parseAccept(accept)
	cborQ := quality(ranges, "cbor")
	return cborQ > 0 && cborQ > quality(ranges, "json")
}

// allowedMethods asks chi which methods would match the request path.
func allowedMethods(r *http.Request) []string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.Routes == nil {
		return nil
	}
	path := rctx.RoutePath
	if path == "" {
		path = r.URL.RawPath
		if path == "" {
			path = r.URL.Path
		}
		if path == "" {
			path = "/"
		}
	}
	candidates := []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
	}
	var allowed []string
	for _, m := range candidates {
		if rctx.Routes.Match(chi.NewRouteContext(), m, path) {
			allowed = append(allowed, m)
		}
	}
	// GET routes also serve HEAD through chi's GetHead middleware.
	if slices.Contains(allowed, http.MethodGet) && !slices.Contains(allowed, http.MethodHead) {
		allowed = slices.Insert(allowed, 1, http.MethodHead)
	}
	return allowed
}

// responseWriter records whether the status line was sent.
type responseWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
