package config

import (
	stderrors "errors"
	"fmt"
	"net"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vango-dev/corehttp/internal/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their file names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(validateTLS, TLSConfig{})
	v.RegisterStructValidation(validateAdmin, AdminConfig{})
	v.RegisterStructValidation(validateRoutes, Config{})
	return v
}

// validateAdmin checks the admin address only when the admin server runs.
func validateAdmin(sl validator.StructLevel) {
	admin := sl.Current().Interface().(AdminConfig)
	if !admin.Enabled {
		return
	}
	if admin.Address == "" {
		sl.ReportError(admin.Address, "address", "Address", "required", "")
		return
	}
	if _, _, err := net.SplitHostPort(admin.Address); err != nil {
		sl.ReportError(admin.Address, "address", "Address", "hostname_port", "")
	}
}

// validateRoutes rejects WebSocket paths that would replace the static mount.
// Binding a path drops every route below it, so a WebSocket path may not be
// the static prefix or one of its ancestors.
func validateRoutes(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)
	if !cfg.Static.Enabled || !cfg.WebSocket.Enabled {
		return
	}
	prefix := segments(cfg.Static.Prefix)
	for _, p := range cfg.WebSocket.Paths {
		ws := segments(p)
		if len(ws) <= len(prefix) && slices.Equal(ws, prefix[:len(ws)]) {
			sl.ReportError(cfg.WebSocket.Paths, "websocket.paths", "Paths", "static_overlap", p)
		}
	}
}

func segments(path string) []string {
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// validateTLS requires a keystore or a PEM pair once TLS is enabled.
func validateTLS(sl validator.StructLevel) {
	tls := sl.Current().Interface().(TLSConfig)
	if tls.Enabled && tls.Keystore == "" && tls.CertFile == "" {
		sl.ReportError(tls.Keystore, "keystore", "Keystore", "tls_source", "")
	}
	if tls.Keystore != "" && tls.CertFile != "" {
		sl.ReportError(tls.Keystore, "keystore", "Keystore", "excluded_with", "cert_file")
	}
}

// Validate checks the configuration and reports every invalid field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.New("C003").Wrap(err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, describe(fe))
	}
	return errors.New("C003").
		WithDetail(strings.Join(fields, "; ")).
		Wrap(verrs)
}

// describe turns a field error into a readable sentence.
func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_if", "required_with":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "startswith":
		return fmt.Sprintf("%s must start with %q", field, fe.Param())
	case "hostname_port":
		return field + " must be host:port"
	case "url":
		return field + " must be a URL"
	case "tls_source":
		return "tls needs a keystore or cert_file and key_file"
	case "static_overlap":
		return fmt.Sprintf("websocket path %q would replace the static mount", fe.Param())
	case "excluded_with":
		return fmt.Sprintf("%s cannot be combined with %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
