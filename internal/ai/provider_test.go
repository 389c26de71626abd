package ai

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeProvider(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: ProviderXAI},
		{in: "grok", want: ProviderXAI},
		{in: "Claude", want: ProviderAnthropic},
		{in: "google", want: ProviderGemini},
		{in: "gpt", want: ProviderOpenAI},
		{in: "llama", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeProvider(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	key, err := ResolveAPIKey(ProviderGemini, "")
	require.NoError(t, err)
	assert.Equal(t, "google-key", key)

	key, err = ResolveAPIKey(ProviderGemini, "explicit")
	require.NoError(t, err)
	assert.Equal(t, "explicit", key)

	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err = ResolveAPIKey(ProviderAnthropic, "")
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")
}

func TestNewProviderMissingCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewProvider(context.Background(), ProviderConfig{Name: "openai"})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestNewProviderDefaults(t *testing.T) {
	p, err := NewProvider(context.Background(), ProviderConfig{Name: "openai", APIKey: "k"})
	require.NoError(t, err)
	chat, ok := p.(*ChatProvider)
	require.True(t, ok)
	assert.Equal(t, OpenAIBaseURL, chat.baseURL)
	assert.Equal(t, DefaultModels[ProviderOpenAI], chat.model)

	p, err = NewProvider(context.Background(), ProviderConfig{Name: "anthropic", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, p.Name())
}

func TestGzipTransport(t *testing.T) {
	const payload = `{"contents": [{"parts": [{"text": "hello"}]}]}`
	var gotEncoding, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEncoding = r.Header.Get("Content-Encoding")
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		raw, _ := io.ReadAll(zr)
		gotBody = string(raw)
	}))
	defer srv.Close()

	client := &http.Client{Transport: &gzipTransport{}}
	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(payload))
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "gzip", gotEncoding)
	assert.Equal(t, payload, gotBody)
	assert.Empty(t, req.Header.Get("Content-Encoding"), "caller's request is not modified")
}

func TestCompressRequestSkipsEncodedAndEmpty(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://example.invalid", nil)
	require.NoError(t, err)
	require.NoError(t, compressRequest(req))
	assert.Empty(t, req.Header.Get("Content-Encoding"))

	req, err = http.NewRequest(http.MethodPost, "http://example.invalid", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	req.Header.Set("Content-Encoding", "br")
	require.NoError(t, compressRequest(req))
	assert.Equal(t, "br", req.Header.Get("Content-Encoding"))
}

func TestStatusErrorRetriable(t *testing.T) {
	assert.True(t, (&StatusError{Code: 429}).Retriable())
	assert.True(t, (&StatusError{Code: 529}).Retriable())
	assert.False(t, (&StatusError{Code: 404}).Retriable())
	assert.Contains(t, (&StatusError{Provider: "xai", Code: 404, Body: "nope"}).Error(), "xai API returned 404")
}
