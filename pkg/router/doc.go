// Package router maps request paths to handlers by longest matching prefix.
//
// Paths are split on "/" into segments and stored in a PathTree. Looking up
// a path walks the tree one segment at a time and returns the value bound at
// the deepest node reached, so a handler bound at "/" catches everything that
// nothing more specific claims.
//
// # Handler Variants
//
// Handle binds a handler that sees the request path unchanged. Mount binds a
// handler that sees the path with the matched prefix removed, which is what a
// file server mounted under a sub-path needs:
//
//	r := router.New()
//	r.Mount("/assets", static.New("WebContent"))
//	r.Handle("/api/v1", api)
//
//	// GET /assets/js/app.js reaches the file server as /js/app.js
//	// GET /api/v1/users reaches api as /api/v1/users
//
// Binding a path drops everything previously bound below it.
package router
