// Package server provides HTTP routing, middleware, and the JSON API over
// the canonical catalog.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally, so route
// patterns may carry method prefixes and path wildcards.
//
// # API Handler
//
// [APIHandler] exposes the engine's operations: starting a sync run for a
// connected platform, listing canonical playlists and their ordered tracks,
// reading the favorites summary, and listing connected accounts. It holds no
// session state; the acting user is a query parameter, and access tokens are
// never written to a response.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
