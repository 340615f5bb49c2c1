package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apimages/pkg/config"
	apperrors "apimages/pkg/errors"
	"apimages/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server, *logger.TestLogger) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tl := logger.NewTestLogger()
	client := NewClient(&config.APIConfig{
		BaseURL: server.URL + "/api/v1/",
		Token:   "secret-token",
		Timeout: 5 * time.Second,
	}, tl)
	return client, server, tl
}

func TestListPrivileges(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/self", r.URL.Path)
		assert.Equal(t, "Token secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "apimages/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"email": "ops@example.com",
			"privileges": [
				{"scope": "org", "org_id": "o-1"},
				{"scope": "site", "name": "A", "site_id": "1"},
				"legacy-entry",
				{"scope": "site", "name": null, "site_id": "3"}
			]
		}`))
	})

	privileges, err := client.ListPrivileges(context.Background())
	require.NoError(t, err)
	require.Len(t, privileges, 4)

	assert.False(t, privileges[0].IsSite())
	assert.True(t, privileges[1].IsSite())
	assert.Equal(t, "A", *privileges[1].Site().Name)
	assert.Equal(t, "1", privileges[1].Site().SiteID)
	assert.False(t, privileges[2].Object)
	assert.True(t, privileges[3].IsSite())
	assert.Nil(t, privileges[3].Name)
}

func TestListPrivilegesMissingList(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"email": "ops@example.com"}`))
	})

	privileges, err := client.ListPrivileges(context.Background())
	require.NoError(t, err)
	assert.Empty(t, privileges)
}

func TestListPrivilegesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   apperrors.Kind
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"detail":"bad token"}`, kind: apperrors.KindHTTP},
		{name: "server error", status: http.StatusInternalServerError, body: ``, kind: apperrors.KindHTTP},
		{name: "not json", status: http.StatusOK, body: `<html>`, kind: apperrors.KindParse},
		{name: "array body", status: http.StatusOK, body: `[]`, kind: apperrors.KindParse},
		{name: "privileges not a list", status: http.StatusOK, body: `{"privileges": "all"}`, kind: apperrors.KindParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.ListPrivileges(context.Background())
			require.Error(t, err)
			assert.True(t, apperrors.IsKind(err, tt.kind))
			assert.Equal(t, server.URL+"/api/v1/self", apperrors.URL(err))
			if tt.kind == apperrors.KindHTTP {
				assert.Equal(t, tt.status, apperrors.StatusCode(err))
			}
		})
	}
}

func TestListPrivilegesAcceptsAny2xx(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"privileges": []}`))
	})

	_, err := client.ListPrivileges(context.Background())
	assert.NoError(t, err)
}

func TestListDevices(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sites/site-42/devices", r.URL.Path)
		assert.Equal(t, "Token secret-token", r.Header.Get("Authorization"))
		w.Write([]byte(`[
			{"name": "AP 1", "image1_url": "https://cdn/1.jpg", "image2_url": "https://cdn/2.jpg"},
			{"image1_url": "", "image2_url": null, "mac": "aa:bb"}
		]`))
	})

	devices, err := client.ListDevices(context.Background(), "site-42")
	require.NoError(t, err)
	require.Len(t, devices, 2)

	assert.Equal(t, "AP 1", *devices[0].Name)
	assert.Equal(t, []string{"https://cdn/1.jpg", "https://cdn/2.jpg"}, devices[0].ImageURLs())

	assert.Nil(t, devices[1].Name)
	_, ok := devices[1].ImageURL(1)
	assert.False(t, ok)
	assert.Nil(t, devices[1].Images[1])
}

func TestListDevicesNonStringSlotsAreGaps(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"name": "bool", "image1_url": "https://cdn/1.jpg", "image2_url": false, "image3_url": "https://cdn/3.jpg"},
			{"name": "zero", "image1_url": 0},
			{"name": "object", "image1_url": {"href": "https://cdn/x.jpg"}},
			{"name": 7, "image1_url": true}
		]`))
	})

	devices, err := client.ListDevices(context.Background(), "site-42")
	require.NoError(t, err)
	require.Len(t, devices, 4)

	assert.Equal(t, []string{"https://cdn/1.jpg"}, devices[0].ImageURLs())
	assert.Nil(t, devices[0].Images[1])
	for _, d := range devices[1:] {
		assert.Empty(t, d.ImageURLs())
	}
	assert.Equal(t, "7", *devices[3].Name)
}

func TestListDevicesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   apperrors.Kind
	}{
		{name: "not found", status: http.StatusNotFound, body: `{}`, kind: apperrors.KindHTTP},
		{name: "object body", status: http.StatusOK, body: `{"results": []}`, kind: apperrors.KindParse},
		{name: "non-object entry", status: http.StatusOK, body: `[{"name": "a"}, 7]`, kind: apperrors.KindParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			devices, err := client.ListDevices(context.Background(), "9")
			require.Error(t, err)
			assert.Nil(t, devices)
			assert.True(t, apperrors.IsKind(err, tt.kind))
		})
	}
}

func TestFetchImage(t *testing.T) {
	client, server, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token secret-token", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/img/ok.jpg":
			w.Write([]byte{0xff, 0xd8, 0xff})
		case "/img/created.jpg":
			w.WriteHeader(http.StatusCreated)
		default:
			http.NotFound(w, r)
		}
	})

	data, err := client.FetchImage(context.Background(), server.URL+"/img/ok.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, data)

	_, err = client.FetchImage(context.Background(), server.URL+"/img/missing.jpg")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindHTTP))
	assert.Equal(t, http.StatusNotFound, apperrors.StatusCode(err))
	assert.Equal(t, server.URL+"/img/missing.jpg", apperrors.URL(err))

	_, err = client.FetchImage(context.Background(), server.URL+"/img/created.jpg")
	require.Error(t, err, "image fetches accept only 200")
	assert.Equal(t, http.StatusCreated, apperrors.StatusCode(err))
}

func TestTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	tl := logger.NewTestLogger()
	client := NewClient(&config.APIConfig{BaseURL: baseURL, Token: "t", Timeout: time.Second}, tl)

	_, err := client.ListPrivileges(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindHTTP))
	assert.Equal(t, 0, apperrors.StatusCode(err))
	assert.True(t, tl.HasError())
}

func TestContextCancellation(t *testing.T) {
	client, server, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchImage(ctx, server.URL+"/img.jpg")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequestsAreLogged(t *testing.T) {
	client, server, tl := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "missing.jpg") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("x"))
	})

	_, _ = client.FetchImage(context.Background(), server.URL+"/ok.jpg")
	_, _ = client.FetchImage(context.Background(), server.URL+"/missing.jpg")

	debug := tl.GetMessagesByLevel("DEBUG")
	require.Len(t, debug, 1)
	assert.Equal(t, 200, debug[0].Fields["status_code"])

	warn := tl.GetMessagesByLevel("WARN")
	require.Len(t, warn, 1)
	assert.Equal(t, 403, warn[0].Fields["status_code"])
}
