// Package api exposes plugin generation and raw completions over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"pluginright/internal/client"
	"pluginright/internal/config"
	"pluginright/internal/generator"
	"pluginright/internal/llm"
	"pluginright/internal/metrics"
)

// Route paths
const (
	RouteLive     = "/health/live"
	RouteReady    = "/health/ready"
	RouteComplete = "/v1/ai/complete"
	RouteGenerate = "/v1/plugins/generate"
	RouteMetrics  = "/metrics"
)

// APIKeyHeader carries the shared key checked on /v1 routes.
const APIKeyHeader = "X-Api-Key"

// Options configures a Handler
type Options struct {
	Generator   *generator.Generator
	Client      llm.Client
	APIKey      string
	Model       string // the only model served; requests naming another are rejected
	MaxBodySize int64
	// Ready reports whether a completion could be attempted, e.g. a key is set.
	Ready func() bool
}

// Handler serves the HTTP API
type Handler struct {
	opts Options
}

// NewHandler creates a new Handler
func NewHandler(opts Options) *Handler {
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = config.DefaultMaxBodySize
	}
	return &Handler{opts: opts}
}

// Routes returns the mux with every endpoint registered.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+RouteLive, h.live)
	mux.HandleFunc("GET "+RouteReady, h.ready)
	mux.HandleFunc("POST "+RouteComplete, h.requireKey(RouteComplete, h.complete))
	mux.HandleFunc("POST "+RouteGenerate, h.requireKey(RouteGenerate, h.generate))
	mux.Handle("GET "+RouteMetrics, promhttp.Handler())
	return mux
}

func (h *Handler) live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, RouteLive, http.StatusOK, []byte(`{"ok":true}`))
}

func (h *Handler) ready(w http.ResponseWriter, _ *http.Request) {
	ok := h.opts.Ready == nil || h.opts.Ready()
	body, _ := sjson.SetBytes([]byte(`{}`), "ok", ok)
	if !ok {
		slog.Warn("not ready: no api key for the completion endpoint")
		writeJSON(w, RouteReady, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, RouteReady, http.StatusOK, body)
}

func (h *Handler) requireKey(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(APIKeyHeader)
		if h.opts.APIKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(h.opts.APIKey)) != 1 {
			slog.Warn("rejected request", "route", route, "reason", "api key mismatch", "remote", r.RemoteAddr)
			writeError(w, route, http.StatusUnauthorized, "invalid or missing "+APIKeyHeader)
			return
		}
		next(w, r)
	}
}

// complete accepts {"model"?, "messages":[{"role","content"}]} and answers
// {"model","content"}. System messages are joined into the persona; the
// persona defaults to the Dynamics 365 developer prompt.
func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readObject(w, r, RouteComplete)
	if !ok {
		return
	}
	doc := gjson.ParseBytes(body)
	if !h.checkModel(w, RouteComplete, doc.Get("model").String()) {
		return
	}

	var system, user []string
	var badRole string
	doc.Get("messages").ForEach(func(_, msg gjson.Result) bool {
		content := msg.Get("content").String()
		switch role := msg.Get("role").String(); role {
		case "system":
			system = append(system, content)
		case "user":
			user = append(user, content)
		default:
			badRole = role
			return false
		}
		return true
	})
	if badRole != "" {
		writeError(w, RouteComplete, http.StatusBadRequest, fmt.Sprintf("unsupported message role %q", badRole))
		return
	}
	if len(user) == 0 {
		writeError(w, RouteComplete, http.StatusBadRequest, "at least one user message is required")
		return
	}
	systemPrompt := config.SystemPrompt
	if len(system) > 0 {
		systemPrompt = strings.Join(system, "\n\n")
	}

	slog.Info("ai request", "model", h.opts.Model, "messages", len(system)+len(user))
	start := time.Now()
	content, err := h.opts.Client.Complete(r.Context(), systemPrompt, strings.Join(user, "\n\n"))
	if err != nil {
		h.fail(w, RouteComplete, err)
		return
	}
	slog.Info("ai response", "chars", len(content), "duration", time.Since(start))

	resp, _ := sjson.SetBytes([]byte(`{}`), "model", h.opts.Model)
	resp, _ = sjson.SetBytes(resp, "content", content)
	writeJSON(w, RouteComplete, http.StatusOK, resp)
}

// generate accepts a job document ({"user_prompt","metadata_yaml"?,"name"?,
// registration fields}) and answers the generated code as text/plain.
func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readObject(w, r, RouteGenerate)
	if !ok {
		return
	}
	if !h.checkModel(w, RouteGenerate, gjson.GetBytes(body, "model").String()) {
		return
	}

	req, err := generator.ParseJob(body)
	if err != nil {
		msg := "invalid request"
		if errors.Is(err, generator.ErrMissingDescription) {
			msg = "user_prompt is required"
		}
		writeError(w, RouteGenerate, http.StatusBadRequest, msg)
		return
	}

	slog.Info("gen request", "name", req.Name, "metadata_chars", len(req.Metadata), "prompt_chars", len(req.Description))
	res, err := h.opts.Generator.Generate(r.Context(), req)
	if err != nil {
		if res == nil || !errors.Is(err, generator.ErrWriteOutput) {
			h.fail(w, RouteGenerate, err)
			return
		}
		// Code was generated; only the file copy is missing
		slog.Warn("serving output that was not written to disk", "id", res.ID, "error", err)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Generation-Id", res.ID)
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, res.Code)
	metrics.APIRequests.WithLabelValues(RouteGenerate, "200").Inc()
}

// readObject reads a bounded body and checks that it is a JSON object.
func (h *Handler) readObject(w http.ResponseWriter, r *http.Request, route string) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, route, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		slog.Warn("read body failed", "route", route, "error", err)
		writeError(w, route, http.StatusBadRequest, "error reading request body")
		return nil, false
	}
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		writeError(w, route, http.StatusBadRequest, "Invalid JSON body")
		return nil, false
	}
	return body, true
}

func (h *Handler) checkModel(w http.ResponseWriter, route, model string) bool {
	if model == "" || model == h.opts.Model {
		return true
	}
	writeError(w, route, http.StatusBadRequest,
		fmt.Sprintf("model %q is not served; this server uses %q", model, h.opts.Model))
	return false
}

func (h *Handler) fail(w http.ResponseWriter, route string, err error) {
	code := statusFor(err)
	slog.Warn("request failed", "route", route, "status", code, "error", err)
	writeError(w, route, code, http.StatusText(code))
}

// statusFor maps a generation error onto the response status. Upstream rate
// limits, auth and bad-request answers pass through; other upstream failures
// become 502 and timeouts 504.
func statusFor(err error) int {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return http.StatusGatewayTimeout
	}
	if code, ok := client.StatusCode(err); ok {
		switch code {
		case http.StatusTooManyRequests, http.StatusUnauthorized, http.StatusForbidden, http.StatusBadRequest:
			return code
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, route string, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
	metrics.APIRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func writeError(w http.ResponseWriter, route string, code int, msg string) {
	body, _ := sjson.SetBytes([]byte(`{}`), "error", msg)
	writeJSON(w, route, code, body)
}
