// Package ftpsession implements the per-connection FTP state machine: it
// owns one control stream and an optional data stream, and drives the
// codec, virtual filesystem, physical filesystem, persistence, event
// emission, and login policy components on behalf of one attacker.
package ftpsession

import (
	"bufio"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kestrelsec/ftphoney/internal/dataprovider"
	"github.com/kestrelsec/ftphoney/internal/events"
	"github.com/kestrelsec/ftphoney/internal/ftpcodec"
	"github.com/kestrelsec/ftphoney/internal/loginpolicy"
	"github.com/kestrelsec/ftphoney/internal/metrics"
	"github.com/kestrelsec/ftphoney/internal/realfs"
	"github.com/kestrelsec/ftphoney/internal/vfs"
)

// Config carries the subset of the configuration surface a session needs.
type Config struct {
	WelcomeMessage  string
	HelpMessage     string
	RealUploadMode  bool
	CanBeDownloaded bool
	BasePath        string
}

// Session is one accepted control connection and its associated state.
type Session struct {
	conn    net.Conn
	reader  *bufio.Reader
	counter *Counter
	cfg     Config

	provider dataprovider.Provider
	policy   *loginpolicy.Policy
	emitter  *events.Emitter
	realfs   *realfs.Adapter
	metrics  *metrics.Registry
	rnd      *rand.Rand
	log      zerolog.Logger

	srcIP string

	username string
	password string

	authenticated bool
	attacker      *dataprovider.Attacker
	fs            *vfs.FileSystem

	dataTarget string // host:port staged by the most recent PORT
}

// New constructs a session for an already-accepted connection. It does not
// touch the network until Serve is called.
func New(
	conn net.Conn,
	counter *Counter,
	cfg Config,
	provider dataprovider.Provider,
	policy *loginpolicy.Policy,
	emitter *events.Emitter,
	fsAdapter *realfs.Adapter,
	reg *metrics.Registry,
	rnd *rand.Rand,
	log zerolog.Logger,
) *Session {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}
	return &Session{
		conn:     conn,
		reader:   bufio.NewReaderSize(conn, 4096),
		counter:  counter,
		cfg:      cfg,
		provider: provider,
		policy:   policy,
		emitter:  emitter,
		realfs:   fsAdapter,
		metrics:  reg,
		rnd:      rnd,
		log:      log.With().Str("ip", host).Logger(),
		srcIP:    host,
	}
}

// Serve runs the command loop to completion, closing the control
// connection before it returns.
func (s *Session) Serve() {
	defer s.conn.Close()

	if !s.counter.TryAcquire() {
		s.reply(421, "Please come back in 2040 seconds.")
		s.log.Info().Msg("rejected: concurrency cap reached")
		return
	}
	defer s.counter.Release()

	s.reply(220, s.cfg.WelcomeMessage)

	for {
		frame, err := s.readFrame()
		if err != nil {
			s.log.Info().Err(err).Msg("control connection closed")
			return
		}

		keepAlive, err := s.dispatch(frame)
		if err != nil {
			s.log.Error().Err(err).Str("verb", string(frame.Verb)).Msg("fatal error handling command")
			return
		}
		if !keepAlive {
			return
		}
	}
}

func (s *Session) readFrame() (ftpcodec.Frame, error) {
	buf := make([]byte, 4096)
	n, err := s.reader.Read(buf)
	if err != nil {
		return ftpcodec.Frame{}, err
	}
	frame, err := ftpcodec.Decode(buf[:n])
	if err != nil {
		return ftpcodec.Frame{}, err
	}
	return frame, nil
}

func (s *Session) reply(code int, message string) {
	_, err := s.conn.Write(ftpcodec.Encode(code, message))
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to write reply")
	}
}

// requireAuth replies 530 and reports "handled" (true, keep alive) when no
// attacker is bound yet.
func (s *Session) requireAuth() bool {
	if s.authenticated {
		return false
	}
	s.reply(530, "Please login with USER and PASS.")
	return true
}

func (s *Session) dispatch(frame ftpcodec.Frame) (bool, error) {
	handler, ok := verbTable[frame.Verb]
	if !ok {
		s.reply(502, "Command not implemented.")
		return true, nil
	}
	return handler(s, frame.Arg)
}

type handlerFunc func(s *Session, arg string) (bool, error)

var verbTable = map[ftpcodec.Verb]handlerFunc{
	ftpcodec.USER: (*Session).handleUSER,
	ftpcodec.PASS: (*Session).handlePASS,
	ftpcodec.ACCT: (*Session).handleACCT,
	ftpcodec.QUIT: (*Session).handleQUIT,
	ftpcodec.SYST: (*Session).handleSYST,
	ftpcodec.TYPE: (*Session).handleTYPE,
	ftpcodec.MODE: (*Session).handleMODE,
	ftpcodec.STRU: (*Session).handleSTRU,
	ftpcodec.NOOP: (*Session).handleNOOP,
	ftpcodec.HELP: (*Session).handleHELP,
	ftpcodec.PORT: (*Session).handlePORT,
	ftpcodec.CWD:  (*Session).handleCWD,
	ftpcodec.PWD:  (*Session).handlePWD,
	ftpcodec.LIST: (*Session).handleLIST,
	ftpcodec.STOR: (*Session).handleSTOR,
	ftpcodec.RETR: (*Session).handleRETR,
	ftpcodec.MKD:  (*Session).handleMKD,
	ftpcodec.RMD:  (*Session).handleRMD,
	ftpcodec.DELE: (*Session).handleDELE,
	ftpcodec.CDUP: (*Session).handleCDUP,
	ftpcodec.ALLO: (*Session).handleALLO,
	ftpcodec.STAT: (*Session).handleSTAT,
}

func (s *Session) saveFileSystem() error {
	if s.attacker == nil || s.fs == nil {
		return nil
	}
	return s.provider.SaveFileSystem(s.attacker.ID, *s.fs)
}

func parsePortArg(arg string) (string, error) {
	parts := strings.Split(arg, ",")
	if len(parts) != 6 {
		return "", fmt.Errorf("ftpsession: malformed PORT argument %q", arg)
	}
	var nums [6]int
	for i, p := range parts {
		var v int
		if _, err := fmt.Sscanf(p, "%d", &v); err != nil {
			return "", fmt.Errorf("ftpsession: malformed PORT octet %q: %w", p, err)
		}
		nums[i] = v
	}
	ip := fmt.Sprintf("%d.%d.%d.%d", nums[0], nums[1], nums[2], nums[3])
	port := nums[4]*256 + nums[5]
	return fmt.Sprintf("%s:%d", ip, port), nil
}

func (s *Session) dialData() (net.Conn, error) {
	return net.DialTimeout("tcp", s.dataTarget, 10*time.Second)
}
