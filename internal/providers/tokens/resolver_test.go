package tokens

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const address = "0x6B175474E89094C44Da98b954EedeAC495271d0F"

var png = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

type service struct {
	*httptest.Server
	failures atomic.Int32
	calls    atomic.Int32
	logo     string
}

func newService(t *testing.T) *service {
	t.Helper()
	s := &service{}
	mux := http.NewServeMux()
	mux.HandleFunc("/tokens/1/0x6b175474e89094c44da98b954eedeac495271d0f", func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		if s.failures.Load() > 0 {
			s.failures.Add(-1)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":      "Dai <script>alert(1)</script>Stablecoin",
			"symbol":    "<b>DAI</b>",
			"logo":      s.URL + s.logo,
			"isTestnet": true,
		})
	})
	mux.HandleFunc("/logo.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(png)
	})
	mux.HandleFunc("/logo.svg", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`))
	})
	mux.HandleFunc("/logo.html", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>not an image</body></html>"))
	})
	s.Server = httptest.NewServer(mux)
	s.logo = "/logo.png"
	t.Cleanup(s.Close)
	return s
}

func newResolver(t *testing.T, url string, retries int) *Resolver {
	t.Helper()
	r, err := New(Config{URL: url, Timeout: 2 * time.Second, RetryMax: retries})
	require.NoError(t, err)
	return r
}

func TestResolve(t *testing.T) {
	svc := newService(t)
	r := newResolver(t, svc.URL, 0)

	meta, err := r.Resolve(context.Background(), 1, address)
	require.NoError(t, err)
	assert.Equal(t, "Dai Stablecoin", meta.Name)
	assert.Equal(t, "DAI", meta.Symbol)
	assert.Equal(t, svc.URL+"/logo.png", meta.Logo)
	assert.True(t, meta.IsTestnet)
}

func TestResolveDropsNonImageLogos(t *testing.T) {
	for _, logo := range []string{"/logo.svg", "/logo.html", "/missing.png"} {
		t.Run(logo, func(t *testing.T) {
			svc := newService(t)
			svc.logo = logo
			r := newResolver(t, svc.URL, 0)

			meta, err := r.Resolve(context.Background(), 1, address)
			require.NoError(t, err)
			assert.Empty(t, meta.Logo)
			assert.Equal(t, "DAI", meta.Symbol)
		})
	}
}

func TestResolveUnknownToken(t *testing.T) {
	svc := newService(t)
	r := newResolver(t, svc.URL, 0)

	_, err := r.Resolve(context.Background(), 137, address)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveRetriesServerErrors(t *testing.T) {
	svc := newService(t)
	svc.failures.Store(1)
	r := newResolver(t, svc.URL, 2)

	meta, err := r.Resolve(context.Background(), 1, address)
	require.NoError(t, err)
	assert.Equal(t, "DAI", meta.Symbol)
	assert.Equal(t, int32(2), svc.calls.Load())
}

func TestResolveGivesUpAfterRetries(t *testing.T) {
	svc := newService(t)
	svc.failures.Store(10)
	r := newResolver(t, svc.URL, 1)

	_, err := r.Resolve(context.Background(), 1, address)
	assert.Error(t, err)
	assert.Equal(t, int32(2), svc.calls.Load())
}

func TestDisplay(t *testing.T) {
	r := newResolver(t, "http://tokens.invalid", 0)

	assert.Equal(t, "A & B", r.display("A &amp; <i>B</i>"))
	assert.Equal(t, "ab", r.display(" a\tb\n"))
	assert.Len(t, []rune(r.display(strings.Repeat("é", 100))), maxDisplayLen)
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
