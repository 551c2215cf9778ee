// Package server runs the local HTTP callback used by direct-link providers.
//
// # Router
//
// [BasicRouter] wraps [http.ServeMux] with a [Middleware] stack. [Handler]
// implementations report their own routes so a handler can own several paths.
// [RequestLogger] logs each request at debug level.
//
// # Authorization Code Callback
//
// [OAuthHandler] validates the state parameter, exchanges the code and publishes
// a single [OAuthResult]. Repeat callbacks are rejected.
//
// [Authorize] drives the whole flow: it listens on the redirect URL's host,
// opens the browser, waits for the callback (two minutes by default) and shuts the
// server down. [Authorizer] adapts it to the func shape expected by
// services.SpotifyLinker.
package server
