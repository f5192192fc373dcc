package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// Configuration (C001-C099)
	"C001": {
		Category:   CategoryConfig,
		Message:    "Configuration file not found",
		Detail:     "The file given with --config does not exist or cannot be opened.",
		Suggestion: "Check the path, or omit --config to run with defaults and COREHTTP_* environment variables.",
	},
	"C002": {
		Category:   CategoryConfig,
		Message:    "Configuration file is malformed",
		Detail:     "The configuration file could not be parsed. Files ending in .yaml or .yml are read as YAML, everything else as JSON.",
		Suggestion: "Fix the syntax near the reported line.",
	},
	"C003": {
		Category:   CategoryConfig,
		Message:    "Invalid configuration value",
		Detail:     "One or more configuration values are out of range or missing.",
		Suggestion: "See the field list below and the defaults in the README.",
	},
	"C004": {
		Category:   CategoryConfig,
		Message:    "Invalid environment override",
		Detail:     "A COREHTTP_* environment variable could not be converted to the type of its field.",
		Suggestion: "Durations take values like 5s or 1m, sizes are plain byte counts.",
	},

	// Startup (S001-S099)
	"S001": {
		Category:   CategoryStartup,
		Message:    "Cannot bind listen address",
		Detail:     "The server could not open its listening socket. Another process may be using the port, or the address is not local.",
		Suggestion: "Pick a free port with --port or server.port.",
	},
	"S002": {
		Category:   CategoryStartup,
		Message:    "Cannot load TLS credentials",
		Detail:     "The PKCS#12 keystore or PEM key pair could not be read or decoded.",
		Suggestion: "Check tls.keystore and tls.password, or tls.cert_file and tls.key_file.",
	},
	"S003": {
		Category:   CategoryStorage,
		Message:    "Upload store unavailable",
		Detail:     "The directory or bucket for multipart file parts could not be prepared.",
		Suggestion: "Make sure uploads.dir is writable, or that the S3 bucket and credentials are valid.",
	},
	"S004": {
		Category:   CategoryStartup,
		Message:    "Static content folder missing",
		Detail:     "The folder configured as static.dir does not exist.",
		Suggestion: "Create the folder or set static.enabled to false.",
	},
	"S005": {
		Category:   CategoryStartup,
		Message:    "Admin server failed",
		Detail:     "The admin HTTP server serving /metrics, /healthz and /connections stopped with an error.",
		Suggestion: "Check admin.address, or set admin.enabled to false.",
	},

	// Command line (X001-X099)
	"X001": {
		Category:   CategoryCLI,
		Message:    "Invalid command line",
		Detail:     "The command line arguments could not be parsed.",
		Suggestion: "Run corehttp --help for usage.",
	},
}

// GetAllCodes returns all registered error codes in order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
