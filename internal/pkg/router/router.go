// Package router is the HTTP transport: an httprouter based mux with a fixed
// middleware chain, JSON envelopes and a single authorization gate driven by
// each module's route table.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/konkurs/internal/pkg/config"
	"github.com/shandysiswandi/konkurs/internal/pkg/goerror"
	"github.com/shandysiswandi/konkurs/internal/pkg/instrument"
	"github.com/shandysiswandi/konkurs/internal/pkg/jwt"
	"github.com/shandysiswandi/konkurs/internal/pkg/uid"
	"github.com/shandysiswandi/konkurs/internal/pkg/validator"
)

type errorResponse struct {
	Message string            `json:"message"`
	Kind    string            `json:"kind,omitempty"`
	Error   map[string]string `json:"error,omitempty"`
}

type successResponse struct {
	Message string         `json:"message"`
	Data    any            `json:"data"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Handler returns the payload to encode or an error for the error codec.
type Handler func(r *Request) (any, error)

// Middleware wraps an http.Handler.
type Middleware func(next http.Handler) http.Handler

// Chain applies mws so the first one runs outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// RevocationChecker reports whether an access token was revoked on logout.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

type Config struct {
	Config     config.Config
	UUID       uid.StringID
	JWT        jwt.JWT
	Revocation RevocationChecker
	Instrument instrument.Instrumentation
	// ServiceName is echoed on the root endpoint.
	ServiceName string
}

// Router is an http.Handler.
type Router struct {
	hr       *httprouter.Router
	mws      []Middleware
	gate     *gate
	enforcer *casbin.Enforcer
}

// authModel grants p.act on p.obj to role p.sub; "*" means any signed in role.
const authModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (p.sub == "*" || r.sub == p.sub) && r.obj == p.obj && r.act == p.act
`

func NewRouter(cfg Config) (*Router, error) {
	m, err := model.NewModelFromString(authModel)
	if err != nil {
		return nil, fmt.Errorf("router: casbin model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("router: casbin enforcer: %w", err)
	}

	hr := &httprouter.Router{
		RedirectTrailingSlash:  true,
		RedirectFixedPath:      true,
		HandleMethodNotAllowed: true,
		HandleOPTIONS:          true,
		SaveMatchedRoutePath:   true,
		NotFound: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, errorResponse{Message: "endpoint not found"}, http.StatusNotFound)
		}),
		MethodNotAllowed: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, errorResponse{Message: "method not allowed"}, http.StatusMethodNotAllowed)
		}),
	}

	ins := cfg.Instrument
	if ins == nil {
		ins = instrument.NewNoop()
	}

	r := &Router{
		hr:       hr,
		enforcer: enforcer,
		gate:     &gate{verifier: cfg.JWT, revocation: cfg.Revocation, enforcer: enforcer},
		mws: []Middleware{
			middlewareRecoverer,
			middlewareIP,
			middlewareCorrelationID(cfg.UUID),
			middlewareObservability(ins),
			middlewareMaintenance(cfg.Config),
		},
	}

	r.Register(
		Route{Method: http.MethodGet, Path: "/", Handler: welcome(cfg.ServiceName)},
		Route{Method: http.MethodGet, Path: "/health", Handler: health},
	)

	return r, nil
}

// Register mounts a route table. Non public routes get the auth gate and a
// casbin policy per allowed role.
func (r *Router) Register(routes ...Route) {
	for _, rt := range routes {
		mws := append([]Middleware(nil), r.mws...)
		if rt.Access != AccessPublic {
			for _, sub := range rt.subjects() {
				if _, err := r.enforcer.AddPolicy(sub, rt.Path, rt.Method); err != nil {
					slog.Error("failed to add route policy", "path", rt.Path, "method", rt.Method, "error", err)
				}
			}
			mws = append(mws, r.gate.middleware)
		}

		r.hr.Handler(rt.Method, rt.Path, Chain(r.endpoint(rt), mws...))
	}
}

// Raw mounts a plain handler behind the common middleware only.
func (r *Router) Raw(method, path string, h http.Handler) {
	r.hr.Handler(method, path, Chain(h, r.mws...))
}

func (r *Router) endpoint(rt Route) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		resp, err := rt.Handler(&Request{Request: req})
		if err != nil {
			if setter, ok := w.(interface{ SetError(error) }); ok {
				setter.SetError(err)
			}
			writeError(w, err)
			return
		}
		writeOK(w, resp, rt.Status)
	})
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.hr.ServeHTTP(w, req)
}

func writeError(w http.ResponseWriter, err error) {
	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		writeJSON(w, errorResponse{Message: "Internal server error"}, http.StatusInternalServerError)
		return
	}

	resp := errorResponse{Message: gerr.Msg(), Kind: string(gerr.Kind())}

	var verr validator.V10ValidationError
	if errors.As(err, &verr) {
		resp.Error = verr.Values()
	} else if len(gerr.Fields()) > 0 {
		resp.Error = gerr.Fields()
	}

	writeJSON(w, resp, gerr.StatusCode())
}

func writeOK(w http.ResponseWriter, resp any, status int) {
	code := http.StatusOK
	if status != 0 {
		code = status
	}

	if resp == nil || code == http.StatusNoContent || code == http.StatusResetContent {
		w.WriteHeader(code)
		return
	}

	msg := "request has been successfully"
	if m, ok := resp.(interface{ Message() string }); ok {
		msg = m.Message()
	}

	var meta map[string]any
	if m, ok := resp.(interface{ Meta() map[string]any }); ok {
		meta = m.Meta()
	}

	writeJSON(w, successResponse{Message: msg, Data: resp, Meta: meta}, code)
}

func writeJSON(w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func welcome(name string) Handler {
	return func(*Request) (any, error) {
		return map[string]string{"service": name}, nil
	}
}

func health(*Request) (any, error) {
	return map[string]string{"status": "ok"}, nil
}
