package protocol

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// SameSite is the SameSite attribute of a cookie.
type SameSite uint8

const (
	SameSiteDefault SameSite = iota // attribute omitted
	SameSiteStrict
	SameSiteLax
	SameSiteNone
)

// String returns the attribute value as it appears on the wire.
func (s SameSite) String() string {
	switch s {
	case SameSiteStrict:
		return "Strict"
	case SameSiteLax:
		return "Lax"
	case SameSiteNone:
		return "None"
	default:
		return ""
	}
}

// Cookie is an immutable response cookie. Each cookie becomes one
// Set-Cookie line.
type Cookie struct {
	name      string
	value     string
	path      string
	maxAge    int64
	hasMaxAge bool
	expires   time.Time
	secure    bool
	httpOnly  bool
	sameSite  SameSite
}

// CookieOption configures a Cookie.
type CookieOption func(*Cookie)

// WithPath sets the Path attribute.
func WithPath(path string) CookieOption {
	return func(c *Cookie) { c.path = path }
}

// WithMaxAge sets the Max-Age attribute in seconds.
func WithMaxAge(seconds int64) CookieOption {
	return func(c *Cookie) {
		c.maxAge = seconds
		c.hasMaxAge = true
	}
}

// WithExpires sets the Expires attribute.
func WithExpires(t time.Time) CookieOption {
	return func(c *Cookie) { c.expires = t }
}

// WithSecure sets the Secure flag.
func WithSecure() CookieOption {
	return func(c *Cookie) { c.secure = true }
}

// WithHTTPOnly sets the HttpOnly flag.
func WithHTTPOnly() CookieOption {
	return func(c *Cookie) { c.httpOnly = true }
}

// WithSameSite sets the SameSite attribute.
func WithSameSite(s SameSite) CookieOption {
	return func(c *Cookie) { c.sameSite = s }
}

// NewCookie creates a cookie.
func NewCookie(name, value string, opts ...CookieOption) *Cookie {
	c := &Cookie{name: name, value: value}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cookie) Name() string  { return c.name }
func (c *Cookie) Value() string { return c.value }
func (c *Cookie) Path() string  { return c.path }

// MaxAge returns the Max-Age attribute and whether it is set.
func (c *Cookie) MaxAge() (int64, bool) { return c.maxAge, c.hasMaxAge }

// Expires returns the expiry time, zero if unset.
func (c *Cookie) Expires() time.Time { return c.expires }

func (c *Cookie) Secure() bool       { return c.secure }
func (c *Cookie) HTTPOnly() bool     { return c.httpOnly }
func (c *Cookie) SameSite() SameSite { return c.sameSite }

// String returns the Set-Cookie value:
//
//	name=value;Max-Age=n;Expires=date;Path=p;Secure;HttpOnly;SameSite=Lax;
func (c *Cookie) String() string {
	var b strings.Builder
	b.WriteString(c.name)
	b.WriteByte('=')
	b.WriteString(c.value)
	b.WriteByte(';')
	if c.hasMaxAge {
		b.WriteString("Max-Age=")
		b.WriteString(strconv.FormatInt(c.maxAge, 10))
		b.WriteByte(';')
	}
	if !c.expires.IsZero() {
		b.WriteString("Expires=")
		b.WriteString(c.expires.UTC().Format(http.TimeFormat))
		b.WriteByte(';')
	}
	if c.path != "" {
		b.WriteString("Path=")
		b.WriteString(c.path)
		b.WriteByte(';')
	}
	if c.secure {
		b.WriteString("Secure;")
	}
	if c.httpOnly {
		b.WriteString("HttpOnly;")
	}
	if c.sameSite != SameSiteDefault {
		b.WriteString("SameSite=")
		b.WriteString(c.sameSite.String())
		b.WriteByte(';')
	}
	return b.String()
}
