package server

import (
	"bytes"
	"sort"
	"sync"

	"github.com/valyala/fasthttp"
)

type Route struct {
	Method  string
	Path    string
	Handler fasthttp.RequestHandler
	Public  bool
}

// Router resolves exact method and path pairs. The admin API has no path
// parameters, so a map lookup is enough.
type Router struct {
	mu     sync.RWMutex
	routes map[string]*Route
	paths  map[string]struct{}
}

func NewRouter() *Router {
	return &Router{
		routes: make(map[string]*Route),
		paths:  make(map[string]struct{}),
	}
}

func (r *Router) Add(method, path string, handler fasthttp.RequestHandler) {
	r.add(&Route{Method: method, Path: path, Handler: handler})
}

// AddPublic registers a route that skips the API key check.
func (r *Router) AddPublic(method, path string, handler fasthttp.RequestHandler) {
	r.add(&Route{Method: method, Path: path, Handler: handler, Public: true})
}

func (r *Router) add(route *Route) {
	path := string(normalizePathBytes([]byte(route.Path)))
	route.Path = path

	r.mu.Lock()
	defer r.mu.Unlock()

	r.routes[routeKey(route.Method, path)] = route
	r.paths[path] = struct{}{}
}

// Lookup returns the matching route, or nil and the status to answer with.
func (r *Router) Lookup(method, path []byte) (*Route, int) {
	path = normalizePathBytes(path)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if route, ok := r.routes[routeKey(string(method), string(path))]; ok {
		return route, fasthttp.StatusOK
	}

	if _, ok := r.paths[string(path)]; ok {
		return nil, fasthttp.StatusMethodNotAllowed
	}
	return nil, fasthttp.StatusNotFound
}

func (r *Router) Routes() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make([]Route, 0, len(r.routes))
	for _, route := range r.routes {
		routes = append(routes, *route)
	}

	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	return routes
}

func routeKey(method, path string) string {
	return method + ":" + path
}

func normalizePathBytes(path []byte) []byte {
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = bytes.TrimRight(path, "/")
		if len(path) == 0 {
			return []byte("/")
		}
	}
	return path
}
