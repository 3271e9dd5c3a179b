package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emailgen-labs/emailgen-api/pkg/config"
)

func TestStubModeReturnsDeterministicAsset(t *testing.T) {
	client := NewClient(config.DeploymentsConfig{StubMode: true, RequestTimeout: time.Second})

	first, err := client.CreateEmailAsset(context.Background(), "spring-sale", "Spring!", "<p>hi</p>")
	require.NoError(t, err)
	second, err := client.CreateEmailAsset(context.Background(), "spring-sale", "Spring!", "<p>hi</p>")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Contains(t, first.ID, "stub-")
	assert.Equal(t, "spring-sale", first.Name)
}

func TestCreateEmailAssetExchangesTokenOnce(t *testing.T) {
	tokenCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/token":
			tokenCalls++
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok", "expires_in": 3600})
		case "/asset/v1/content/assets":
			require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(Asset{ID: "asset-1", Name: "spring-sale"})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := NewClient(config.DeploymentsConfig{
		PlatformBaseURL:  srv.URL,
		PlatformClientID: "id",
		PlatformSecret:   "secret",
		RequestTimeout:   time.Second,
	})

	asset, err := client.CreateEmailAsset(context.Background(), "spring-sale", "Spring!", "<p>hi</p>")
	require.NoError(t, err)
	assert.Equal(t, "asset-1", asset.ID)

	_, err = client.CreateEmailAsset(context.Background(), "spring-sale", "Spring!", "<p>hi</p>")
	require.NoError(t, err)
	assert.Equal(t, 1, tokenCalls, "token should be cached until expiry")
}

func TestCreateEmailAssetPlatformError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/token" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok", "expires_in": 3600})
			return
		}
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(config.DeploymentsConfig{
		PlatformBaseURL: srv.URL,
		RequestTimeout:  time.Second,
	})

	_, err := client.CreateEmailAsset(context.Background(), "x", "y", "<p>z</p>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
