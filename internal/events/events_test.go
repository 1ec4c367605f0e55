package events

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin_PostsCanonicalEnvelope(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := New(1, "tok", srv.URL, zerolog.Nop())
	e.Login("1.2.3.4", "alice", "a")

	event := got["event"].(map[string]any)
	assert.Equal(t, "login", event["type"])
	assert.Equal(t, float64(1), event["honeypotID"])
	content := event["content"].(map[string]any)
	assert.Equal(t, "ftp", content["service"])
	assert.Equal(t, "alice", content["user"])
}

func TestFile_Sha1FieldCarriesSha256(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := New(1, "tok", srv.URL, zerolog.Nop())
	e.File("1.2.3.4", "readme", "deadbeef | https://vt.example/x/details", 6)

	event := got["event"].(map[string]any)
	content := event["content"].(map[string]any)
	assert.Equal(t, "deadbeef | https://vt.example/x/details", content["sha1"])
	assert.Equal(t, "6", content["size"])
}

func TestPost_UnreachableCollectorDoesNotPanic(t *testing.T) {
	e := New(1, "tok", "https://127.0.0.1:0", zerolog.Nop())
	assert.NotPanics(t, func() {
		e.Login("1.2.3.4", "a", "b")
	})
}
