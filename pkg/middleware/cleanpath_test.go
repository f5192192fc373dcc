package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/corehttp/pkg/protocol"
	"github.com/vango-dev/corehttp/pkg/router"
)

func TestCleanPath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		err   error
	}{
		{"root", "/", "/", nil},
		{"empty", "", "/", nil},
		{"trailing slash", "/blog/", "/blog", nil},
		{"double slash", "/blog//post", "/blog/post", nil},
		{"dot", "/blog/./post", "/blog/post", nil},
		{"dot dot", "/blog/../about", "/about", nil},
		{"no leading slash", "blog", "/blog", nil},
		{"query kept", "/a//b?x=1&y=%20", "/a/b?x=1&y=%20", nil},
		{"valid escape", "/caf%C3%A9", "/caf%C3%A9", nil},
		{"backslash", "/a\\b", "", ErrBackslashInPath},
		{"nul", "/a%00b", "", ErrNullByteInPath},
		{"literal nul", "/a\x00b", "", ErrNullByteInPath},
		{"bad escape", "/a%GG", "", ErrInvalidPercentEscape},
		{"short escape", "/a%2", "", ErrInvalidPercentEscape},
		{"escapes root", "/../etc/passwd", "", ErrPathEscapesRoot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CleanPath(tt.input)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanPathsMiddleware(t *testing.T) {
	var seen string
	h := CleanPaths()(router.HandlerFunc(func(req *protocol.Request) (*protocol.Response, error) {
		seen = req.Path
		return protocol.NewResponse(protocol.StatusOK), nil
	}))

	resp, err := h.Serve(newRequest("GET", "/static//css/../app.css"))
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusOK, resp.Code)
	assert.Equal(t, "/static/app.css", seen)

	seen = ""
	resp, err = h.Serve(newRequest("GET", "/../secret"))
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusBadRequest, resp.Code)
	assert.Empty(t, seen)
}
