package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qhosting/provisioning-service/internal/config"
)

// newTestPanel spins up a TLS server standing in for a node control plane
// and returns a client pointed at it
func newTestPanel(t *testing.T, handler http.HandlerFunc) (*PanelClient, string) {
	t.Helper()

	server := httptest.NewTLSServer(handler)
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	panel, err := NewPanelClient(config.PanelConfig{
		APIToken:        "test-token",
		Port:            port,
		ContactEmail:    "admin@qhosting.net",
		AllowSelfSigned: true,
		TimeoutSeconds:  5,
	})
	require.NoError(t, err)

	return panel, u.Hostname()
}

func TestNewPanelClientRequiresToken(t *testing.T) {
	_, err := NewPanelClient(config.PanelConfig{})
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestCreateAccountSuccess(t *testing.T) {
	var gotAuth string
	var gotQuery url.Values
	panel, host := newTestPanel(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query()
		assert.Equal(t, "/json-api/createacct", r.URL.Path)
		w.Write([]byte(`{"metadata":{"result":1,"reason":"OK"}}`))
	})

	result, err := panel.CreateAccount(context.Background(), AccountRequest{
		Username:     "mitiend",
		Domain:       "mitienda.mx",
		PanelPackage: "titan_pro_v2",
		ContactEmail: "cliente@mitienda.mx",
		Endpoint:     host,
	})
	require.NoError(t, err)
	assert.Equal(t, ResultSuccess, result.Status)

	assert.Equal(t, "whm root:test-token", gotAuth)
	assert.Equal(t, "mitiend", gotQuery.Get("username"))
	assert.Equal(t, "mitienda.mx", gotQuery.Get("domain"))
	assert.Equal(t, "titan_pro_v2", gotQuery.Get("plan"))
	assert.Equal(t, "cliente@mitienda.mx", gotQuery.Get("contactemail"))
}

func TestCreateAccountDefaultContactEmail(t *testing.T) {
	var gotQuery url.Values
	panel, host := newTestPanel(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`{"metadata":{"result":1}}`))
	})

	_, err := panel.CreateAccount(context.Background(), AccountRequest{
		Username: "mitiend",
		Domain:   "mitienda.mx",
		Endpoint: host,
	})
	require.NoError(t, err)
	assert.Equal(t, "admin@qhosting.net", gotQuery.Get("contactemail"))
}

func TestCreateAccountRejected(t *testing.T) {
	panel, host := newTestPanel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"metadata":{"result":0,"reason":"Invalid domain name"}}`))
	})

	result, err := panel.CreateAccount(context.Background(), AccountRequest{
		Username: "bad",
		Domain:   "not_a_domain",
		Endpoint: host,
	})
	require.NoError(t, err)
	assert.Equal(t, ResultRejected, result.Status)
	assert.Equal(t, "Invalid domain name", result.Reason)
}

func TestCreateAccountAlreadyExists(t *testing.T) {
	panel, host := newTestPanel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"metadata":{"result":0,"reason":"Account or domain already exists on this server"}}`))
	})

	result, err := panel.CreateAccount(context.Background(), AccountRequest{
		Username: "mitiend",
		Domain:   "mitienda.mx",
		Endpoint: host,
	})
	require.NoError(t, err)
	assert.Equal(t, ResultAlreadyExists, result.Status)
	assert.Contains(t, result.Reason, "already exists")
}

func TestCreateAccountServerError(t *testing.T) {
	panel, host := newTestPanel(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := panel.CreateAccount(context.Background(), AccountRequest{
		Username: "mitiend",
		Domain:   "mitienda.mx",
		Endpoint: host,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestCreateAccountMalformedBody(t *testing.T) {
	panel, host := newTestPanel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway error</html>`))
	})

	_, err := panel.CreateAccount(context.Background(), AccountRequest{
		Username: "mitiend",
		Domain:   "mitienda.mx",
		Endpoint: host,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestCreateAccountTransportError(t *testing.T) {
	panel, err := NewPanelClient(config.PanelConfig{
		APIToken:        "test-token",
		Port:            1, // nothing listens here
		AllowSelfSigned: true,
		TimeoutSeconds:  1,
	})
	require.NoError(t, err)

	_, err = panel.CreateAccount(context.Background(), AccountRequest{
		Username: "mitiend",
		Domain:   "mitienda.mx",
		Endpoint: "127.0.0.1",
	})
	require.Error(t, err)
}

func TestIsAlreadyExists(t *testing.T) {
	tests := []struct {
		reason string
		want   bool
	}{
		{reason: "Account already exists", want: true},
		{reason: "A domain ALREADY EXISTS on this server", want: true},
		{reason: "Invalid domain name", want: false},
		{reason: "", want: false},
	}

	for _, tt := range tests {
		if got := isAlreadyExists(tt.reason); got != tt.want {
			t.Fatalf("isAlreadyExists(%q) = %v, want %v", tt.reason, got, tt.want)
		}
	}
}
