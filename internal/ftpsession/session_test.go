package ftpsession

import (
	"bufio"
	"math/rand"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelsec/ftphoney/internal/dataprovider"
	"github.com/kestrelsec/ftphoney/internal/events"
	"github.com/kestrelsec/ftphoney/internal/loginpolicy"
	"github.com/kestrelsec/ftphoney/internal/realfs"
	"github.com/kestrelsec/ftphoney/internal/vfs"
)

type harness struct {
	client net.Conn
	reader *bufio.Reader
}

func (h *harness) send(t *testing.T, line string) {
	t.Helper()
	_, err := h.client.Write([]byte(line))
	require.NoError(t, err)
}

func (h *harness) expect(t *testing.T) string {
	t.Helper()
	line, err := h.reader.ReadString('\n')
	require.NoError(t, err)
	return line
}

func newHarness(t *testing.T, realUpload bool) *harness {
	t.Helper()
	// Every net.Pipe session reports the same source IP, so each test gets
	// its own in-memory database.
	provider, err := dataprovider.OpenSQLite("file:" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)

	noSeeds := func() ([]vfs.SeedFile, error) { return nil, nil }
	policy := loginpolicy.New(provider, 1, noSeeds, rand.New(rand.NewSource(1)))

	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(collector.Close)
	emitter := events.New(1, "tok", collector.URL, zerolog.Nop())

	fsAdapter := realfs.New(t.TempDir())
	counter := NewCounter(10)

	cfg := Config{
		WelcomeMessage:  "Welcome",
		HelpMessage:     "Help text",
		RealUploadMode:  realUpload,
		CanBeDownloaded: false,
	}

	serverConn, clientConn := net.Pipe()
	s := New(serverConn, counter, cfg, provider, policy, emitter, fsAdapter, nil, rand.New(rand.NewSource(2)), zerolog.Nop())
	go s.Serve()

	return &harness{client: clientConn, reader: bufio.NewReader(clientConn)}
}

func TestSession_BannerThenUserPassAdmit(t *testing.T) {
	h := newHarness(t, false)

	assert.Contains(t, h.expect(t), "220")

	h.send(t, "USER alice\r\n")
	assert.Contains(t, h.expect(t), "331")

	// The first PASS from a new IP is never admitted.
	h.send(t, "PASS wrong\r\n")
	assert.Contains(t, h.expect(t), "530")

	h.send(t, "PASS a\r\n")
	assert.Contains(t, h.expect(t), "230")

	h.send(t, "PWD\r\n")
	assert.Contains(t, h.expect(t), "257")

	h.send(t, "QUIT\r\n")
	assert.Contains(t, h.expect(t), "221")
}

func TestSession_UnauthenticatedVerbRejected(t *testing.T) {
	h := newHarness(t, false)
	assert.Contains(t, h.expect(t), "220")

	h.send(t, "PWD\r\n")
	assert.Contains(t, h.expect(t), "530")
}

func TestSession_CDUPAlwaysRejected(t *testing.T) {
	h := newHarness(t, false)
	assert.Contains(t, h.expect(t), "220")
	h.send(t, "USER bob\r\n")
	h.expect(t)
	h.send(t, "PASS wrong\r\n")
	assert.Contains(t, h.expect(t), "530")
	h.send(t, "PASS b\r\n")
	assert.Contains(t, h.expect(t), "230")

	h.send(t, "CDUP\r\n")
	assert.Contains(t, h.expect(t), "550")

	h.send(t, "PWD\r\n")
	line := h.expect(t)
	assert.Contains(t, line, "257")
	assert.Contains(t, line, "/")
}

func TestSession_ConcurrencyCapRejects(t *testing.T) {
	provider, err := dataprovider.OpenSQLite("file::memory:?cache=shared")
	require.NoError(t, err)
	noSeeds := func() ([]vfs.SeedFile, error) { return nil, nil }
	policy := loginpolicy.New(provider, 1, noSeeds, rand.New(rand.NewSource(1)))
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()
	emitter := events.New(1, "tok", collector.URL, zerolog.Nop())
	fsAdapter := realfs.New(t.TempDir())
	counter := NewCounter(0)
	cfg := Config{WelcomeMessage: "hi"}

	serverConn, clientConn := net.Pipe()
	s := New(serverConn, counter, cfg, provider, policy, emitter, fsAdapter, nil, rand.New(rand.NewSource(3)), zerolog.Nop())
	go s.Serve()

	reader := bufio.NewReader(clientConn)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "421")
}
