package module

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/JaimeStill/ledger/pkg/middleware"
)

// Module mounts an inner router under a single-segment prefix such as
// "/api". Requests reach the router with the prefix removed. The middleware
// stack is composed on first use; later Use calls are ignored.
type Module struct {
	prefix string
	mw     middleware.System
	build  func() http.Handler
}

// New panics when prefix is not a single "/segment".
func New(prefix string, router http.Handler) *Module {
	if err := validatePrefix(prefix); err != nil {
		panic(err)
	}

	m := &Module{prefix: prefix, mw: middleware.New()}
	m.build = sync.OnceValue(func() http.Handler {
		return m.mw.Apply(router)
	})
	return m
}

func (m *Module) Prefix() string { return m.prefix }

// Handler returns the router wrapped in the module middleware.
func (m *Module) Handler() http.Handler { return m.build() }

func (m *Module) Use(mws ...middleware.Func) {
	m.mw.Use(mws...)
}

// Serve dispatches req to the inner router on a copy whose path is
// relative to the module prefix.
func (m *Module) Serve(w http.ResponseWriter, req *http.Request) {
	rel := strings.TrimPrefix(req.URL.Path, m.prefix)
	if rel == "" {
		rel = "/"
	}
	m.Handler().ServeHTTP(w, cloneRequest(req, rel))
}

// cloneRequest shallow-copies req with a new URL so the caller's request
// is never rewritten.
func cloneRequest(req *http.Request, path string) *http.Request {
	u := *req.URL
	u.Path = path
	u.RawPath = ""

	out := req.WithContext(req.Context())
	out.URL = &u
	return out
}

func validatePrefix(prefix string) error {
	rest, ok := strings.CutPrefix(prefix, "/")
	switch {
	case !ok:
		return fmt.Errorf("module prefix %q must start with /", prefix)
	case rest == "":
		return fmt.Errorf("module prefix %q must name a segment", prefix)
	case strings.Contains(rest, "/"):
		return fmt.Errorf("module prefix %q must be a single segment", prefix)
	}
	return nil
}

