package httpclient

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURL(t *testing.T) {
	c := New(Options{})

	tests := []struct {
		name    string
		url     string
		wantErr string
	}{
		{"public https", "https://cdn.example.com/feed.xml", ""},
		{"public http", "http://93.184.216.34/img.jpg", ""},
		{"ftp scheme", "ftp://example.com/feed.xml", "not allowed"},
		{"user info", "http://evil.com@localhost/", "user info"},
		{"localhost", "http://localhost:8080/feed.xml", "localhost"},
		{"loopback ip", "http://127.0.0.1/feed.xml", "private IP"},
		{"private ip", "http://192.168.0.10/feed.xml", "private IP"},
		{"metadata ip", "http://169.254.169.254/latest", "private IP"},
		{"ipv6 loopback", "http://[::1]/feed.xml", "private IP"},
		{"missing host", "http:///feed.xml", "missing hostname"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.ValidateURL(tt.url)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAllowPrivate(t *testing.T) {
	c := New(Options{AllowPrivate: true})
	_, err := c.ValidateURL("http://127.0.0.1:9000/x")
	assert.NoError(t, err)
}

func TestIsPrivateAddr(t *testing.T) {
	for addr, want := range map[string]bool{
		"10.1.2.3":         true,
		"172.16.0.1":       true,
		"8.8.8.8":          false,
		"::ffff:127.0.0.1": true,
		"fd00::1":          true,
		"2606:4700::1111":  false,
		"0.0.0.0":          true,
	} {
		assert.Equal(t, want, isPrivateAddr(netip.MustParseAddr(addr)), addr)
	}
}

func TestGetSetsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(Options{AllowPrivate: true, UserAgent: "test-agent"})
	resp, err := c.Get(testContext(t), srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "test-agent", got)
}

func TestGetBlocksLoopbackByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	_, err := New(Options{}).Get(testContext(t), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private IP")
}

func TestMaxRedirects(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/again", http.StatusFound)
	}))
	defer srv.Close()

	_, err := New(Options{AllowPrivate: true, MaxRedirects: 2}).Get(testContext(t), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped after 2 redirects")
}
