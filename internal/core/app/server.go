package app

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	cerrors "cobolscan/internal/core/errors"
	"cobolscan/internal/core/ports"
	"cobolscan/internal/engine/scanner"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed openapi.yaml
var openAPIDocument []byte

// LoadAPIDocument parses and validates the embedded query API document.
func LoadAPIDocument(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPIDocument)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return doc, nil
}

// Server serves /metrics, /health and the query API.
type Server struct {
	addr   string
	health *HealthService
	query  ports.QueryService
	router routers.Router
	server *http.Server
	ln     net.Listener
}

func NewServer(ctx context.Context, addr string, a *App) (*Server, error) {
	doc, err := LoadAPIDocument(ctx)
	if err != nil {
		return nil, err
	}
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}
	return &Server{
		addr:   addr,
		health: NewHealthService(a),
		query:  a.QueryService(),
		router: router,
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := s.health.Check(r.Context())
		code := http.StatusOK
		if status.Status != "up" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
	})
	mux.Handle("/api/", s.validated(http.HandlerFunc(s.serveAPI)))
	return mux
}

// validated rejects requests the API document does not allow.
func (s *Server) validated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, pathParams, err := s.router.FindRoute(r)
		if err != nil {
			status := http.StatusNotFound
			var routeErr *routers.RouteError
			if errors.As(err, &routeErr) && routeErr.Reason == routers.ErrMethodNotAllowed.Error() {
				status = http.StatusMethodNotAllowed
			}
			writeError(w, status, err)
			return
		}
		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: pathParams,
			Route:      route,
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			writeError(w, http.StatusBadRequest, cerrors.Wrap(err, cerrors.CodeValidationError, "invalid request"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) serveAPI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	var (
		body any
		err  error
	)
	switch r.URL.Path {
	case "/api/symbols":
		body, err = s.query.Symbols(ctx, q.Get("name"))
	case "/api/references":
		body, err = s.query.References(ctx, q.Get("name"))
	case "/api/files":
		body, err = s.query.Files(ctx)
	case "/api/outline":
		var toks []*scanner.Token
		toks, err = s.query.Outline(ctx, q.Get("path"))
		body = outlineJSON(toks)
	default:
		writeError(w, http.StatusNotFound, cerrors.New(cerrors.CodeNotFound, "unknown endpoint"))
		return
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

type outlineToken struct {
	Name    string `json:"name"`
	Style   string `json:"style"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	EndLine int    `json:"end_line"`
	Parent  int    `json:"parent"`
}

func outlineJSON(toks []*scanner.Token) []outlineToken {
	out := make([]outlineToken, 0, len(toks))
	for _, t := range toks {
		if t.IgnoreInOutlineView {
			continue
		}
		out = append(out, outlineToken{
			Name:    t.Name,
			Style:   t.Style.String(),
			Line:    t.StartLine,
			Column:  t.StartColumn,
			EndLine: t.RangeEndLine,
			Parent:  int(t.Parent),
		})
	}
	return out
}

func statusFor(err error) int {
	code, ok := cerrors.CodeOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch code {
	case cerrors.CodeValidationError:
		return http.StatusBadRequest
	case cerrors.CodeNotFound:
		return http.StatusNotFound
	case cerrors.CodePermissionDenied:
		return http.StatusForbidden
	case cerrors.CodeScanAborted:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	body := map[string]string{"error": err.Error()}
	if code, ok := cerrors.CodeOf(err); ok {
		body["code"] = string(code)
	}
	writeJSON(w, status, body)
}

// Start binds the listen address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.ln = ln
	s.server = &http.Server{
		Handler:     s.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	slog.Info("query server starting", "addr", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("query server failed", "error", err)
		}
	}()
	return nil
}

// Addr is the bound address once Start has returned.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
