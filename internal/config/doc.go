// Package config loads the corehttp configuration.
//
// Values are layered in this order, later layers winning:
//
//  1. Defaults from New.
//  2. A configuration file. Files ending in .yaml or .yml are read as YAML,
//     anything else as JSON.
//  3. COREHTTP_* environment variables, for example COREHTTP_SERVER_PORT or
//     COREHTTP_UPLOADS_S3_BUCKET.
//
// The result is checked with Validate before it is returned.
//
// # Example
//
//	server:
//	  host: 0.0.0.0
//	  port: 8080
//	  socket_timeout: 5s
//	static:
//	  enabled: true
//	  dir: WebContent
//	websocket:
//	  enabled: true
//	  paths: ["/ws"]
package config
