package web

// Group mounts a set of handlers under a shared path prefix and middleware
// chain, such as the admin-only invoice routes.
type Group struct {
	app         *App
	prefixPath  string
	middlewares []Middleware
}

// NewGroup initializes a group of http handlers sharing a prefix and middlewares.
func NewGroup(app *App, prefixPath string, mw ...Middleware) *Group {
	return &Group{
		app,
		prefixPath,
		mw,
	}
}

// Handle mounts the handler for the given HTTP verb and path under the group
// prefix, wrapped with the group middlewares plus any route-specific ones.
func (g *Group) Handle(verb string, path string, handler Handler, mw ...Middleware) {
	middlewares := append(g.middlewares, mw...)
	g.app.Handle(verb, g.prefixPath+path, handler, middlewares...)
}

// Post mounts the handler for POST requests within the group.
func (g *Group) Post(path string, handler Handler, mw ...Middleware) {
	middlewares := append(g.middlewares, mw...)
	g.app.Post(g.prefixPath+path, handler, middlewares...)
}

// Get mounts the handler for GET requests within the group.
func (g *Group) Get(path string, handler Handler, mw ...Middleware) {
	middlewares := append(g.middlewares, mw...)
	g.app.Get(g.prefixPath+path, handler, middlewares...)
}

// Put mounts the handler for PUT requests within the group.
func (g *Group) Put(path string, handler Handler, mw ...Middleware) {
	middlewares := append(g.middlewares, mw...)
	g.app.Put(g.prefixPath+path, handler, middlewares...)
}

// Delete mounts the handler for DELETE requests within the group.
func (g *Group) Delete(path string, handler Handler, mw ...Middleware) {
	middlewares := append(g.middlewares, mw...)
	g.app.Delete(g.prefixPath+path, handler, middlewares...)
}
