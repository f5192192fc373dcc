// Package errors provides coded, actionable errors for the corehttp CLI.
//
// Configuration and startup failures are reported as *Error values that
// carry a stable code, a category, a plain-language explanation and a hint
// on how to fix the problem. When the failure points into a configuration
// file, the offending lines are shown.
//
// # Error Codes
//
// Each code maps to a registered template:
//   - C0xx: configuration loading and validation
//   - S0xx: server startup (bind, TLS, storage, static content)
//   - X0xx: command line usage
//
// # Usage
//
//	err := errors.New("C002").
//	    WithLocation("corehttp.yaml", 4, 0).
//	    Wrap(parseErr)
//
//	errors.PrintError(err)
package errors
