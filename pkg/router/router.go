package router

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

// Router matches METHOD:PATH routes, where a "*" segment matches any single
// segment and a trailing "*" matches the rest of the path. Mounted handlers
// take every request under their prefix.
type Router struct {
	mux    *http.ServeMux
	routes map[string]HandlerFunc // key = METHOD:PATH
	paths  map[string]bool        // track registered paths
	logger *zap.Logger
}

func New(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		mux:    http.NewServeMux(),
		routes: make(map[string]HandlerFunc),
		paths:  make(map[string]bool),
		logger: logger,
	}
	r.mux.HandleFunc("/", r.dispatch)
	return r
}

func (r *Router) dispatch(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	if h := r.lookup(req.Method, req.URL.Path); h != nil {
		h(lrw, req)
	} else if r.pathExists(req.URL.Path) {
		http.Error(lrw, "Method Not Allowed", http.StatusMethodNotAllowed)
	} else {
		http.Error(lrw, "Not Found", http.StatusNotFound)
	}

	r.logger.Info("request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", lrw.statusCode),
		zap.Duration("duration", time.Since(start)),
	)
}

// lookup prefers an exact route, then the most specific wildcard route.
func (r *Router) lookup(method, path string) HandlerFunc {
	if h, ok := r.routes[method+":"+path]; ok {
		return h
	}
	var (
		best      HandlerFunc
		bestScore = -1
	)
	for routePath := range r.paths {
		if !strings.Contains(routePath, "*") || !matchWildcardRoute(path, routePath) {
			continue
		}
		h, ok := r.routes[method+":"+routePath]
		if !ok {
			continue
		}
		// literal segments make a route more specific
		score := len(strings.Split(routePath, "/")) - strings.Count(routePath, "*")
		if score > bestScore {
			best, bestScore = h, score
		}
	}
	return best
}

func (r *Router) pathExists(path string) bool {
	if r.paths[path] {
		return true
	}
	for routePath := range r.paths {
		if strings.Contains(routePath, "*") && matchWildcardRoute(path, routePath) {
			return true
		}
	}
	return false
}

// matchWildcardRoute checks if a request path matches a wildcard route pattern
func matchWildcardRoute(requestPath, routePattern string) bool {
	requestSegments := strings.Split(strings.Trim(requestPath, "/"), "/")
	routeSegments := strings.Split(strings.Trim(routePattern, "/"), "/")

	// trailing wildcard matches any number of remaining segments
	if len(routeSegments) > 0 && routeSegments[len(routeSegments)-1] == "*" {
		if len(requestSegments) < len(routeSegments)-1 {
			return false
		}
		for i := 0; i < len(routeSegments)-1; i++ {
			if routeSegments[i] != "*" && requestSegments[i] != routeSegments[i] {
				return false
			}
		}
		return true
	}

	if len(requestSegments) != len(routeSegments) {
		return false
	}
	for i, routeSegment := range routeSegments {
		if routeSegment == "*" {
			if requestSegments[i] == "" {
				return false
			}
			continue
		}
		if requestSegments[i] != routeSegment {
			return false
		}
	}
	return true
}

// Segment returns the i-th segment of a request path, or "" when it has
// fewer segments.
func Segment(req *http.Request, i int) string {
	segments := strings.Split(strings.Trim(req.URL.Path, "/"), "/")
	if i < 0 || i >= len(segments) {
		return ""
	}
	return segments[i]
}

// --- Register paths ---
func (r *Router) register(method, path string, handler HandlerFunc) {
	key := method + ":" + path
	r.routes[key] = handler
	r.paths[path] = true
}

func (r *Router) GET(path string, handler HandlerFunc)   { r.register(http.MethodGet, path, handler) }
func (r *Router) POST(path string, handler HandlerFunc)  { r.register(http.MethodPost, path, handler) }
func (r *Router) PUT(path string, handler HandlerFunc)   { r.register(http.MethodPut, path, handler) }
func (r *Router) PATCH(path string, handler HandlerFunc) { r.register(http.MethodPatch, path, handler) }
func (r *Router) DELETE(path string, handler HandlerFunc) {
	r.register(http.MethodDelete, path, handler)
}

// Mount serves h for every request under pattern, bypassing the route table.
func (r *Router) Mount(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

// Getter methods for testing
func (r *Router) Routes() map[string]HandlerFunc {
	return r.routes
}

func (r *Router) Paths() map[string]bool {
	return r.paths
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// --- Start server ---

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (r *Router) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("server started", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	r.logger.Info("shutting down server")
	return srv.Shutdown(shutdownCtx)
}

// --- Logging response writer to capture status codes ---
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}
