// Package server holds the HTTP server configuration.
//
// While the serve command handles the server startup, this package defines
// the listen port, the API key and the request timeouts.
//
// # Usage
//
// This package is primarily used by the core/config package to embed server
// settings and by the serve command to configure the fiber app.
package server
