// Package events builds the two canonical JSON documents the honeypot
// reports to the external collector, and posts them fire-and-forget.
package events

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Emitter POSTs login and file events to a configured collector URL. TLS
// verification is disabled because the collector may be self-signed in
// deployment — this is a deliberate, dangerous default carried over
// unchanged; see DESIGN.md.
type Emitter struct {
	HoneypotID int
	Token      string
	URL        string

	log    zerolog.Logger
	client *http.Client
}

func New(honeypotID int, token, url string, log zerolog.Logger) *Emitter {
	return &Emitter{
		HoneypotID: honeypotID,
		Token:      token,
		URL:        url,
		log:        log.With().Str("component", "events").Logger(),
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				// FIXME: the collector is frequently self-signed in the
				// field; verification is off until deployments carry real
				// certs.
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			},
		},
	}
}

type envelope struct {
	HoneypotID int    `json:"honeypotID"`
	Token      string `json:"token"`
	Timestamp  string `json:"timestamp"`
	Type       string `json:"type"`
	Content    any    `json:"content"`
}

type loginContent struct {
	SrcIP   string `json:"srcIP"`
	Service string `json:"service"`
	User    string `json:"user"`
	Pass    string `json:"pass"`
}

// fileContent's SHA1 field is misnamed for wire compatibility: it carries
// the SHA-256 digest, optionally concatenated with the reputation verdict.
// See DESIGN.md Open Question decision #2.
type fileContent struct {
	SrcIP   string `json:"srcIP"`
	Service string `json:"service"`
	FName   string `json:"fname"`
	SHA1    string `json:"sha1"`
	Size    string `json:"size"`
}

func (e *Emitter) timestamp() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05")
}

func (e *Emitter) post(body envelope) {
	payload, err := json.Marshal(struct {
		Event envelope `json:"event"`
	}{Event: body})
	if err != nil {
		e.log.Error().Err(err).Msg("failed to marshal event")
		return
	}

	req, err := http.NewRequest(http.MethodPost, e.URL, bytes.NewReader(payload))
	if err != nil {
		e.log.Error().Err(err).Msg("failed to build collector request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		e.log.Warn().Err(err).Msg("collector post failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		e.log.Warn().Int("status", resp.StatusCode).Msg("collector rejected event")
	}
}

// Login builds and fire-and-forget POSTs a login event.
func (e *Emitter) Login(srcIP, user, pass string) {
	e.post(envelope{
		HoneypotID: e.HoneypotID,
		Token:      e.Token,
		Timestamp:  e.timestamp(),
		Type:       "login",
		Content: loginContent{
			SrcIP:   srcIP,
			Service: "ftp",
			User:    user,
			Pass:    pass,
		},
	})
}

// File builds and fire-and-forget POSTs a file event. sha1Field carries the
// SHA-256 hex digest, optionally " | "-joined with the reputation verdict.
func (e *Emitter) File(srcIP, filename, sha1Field string, size int64) {
	e.post(envelope{
		HoneypotID: e.HoneypotID,
		Token:      e.Token,
		Timestamp:  e.timestamp(),
		Type:       "file",
		Content: fileContent{
			SrcIP:   srcIP,
			Service: "ftp",
			FName:   filename,
			SHA1:    sha1Field,
			Size:    fmt.Sprintf("%d", size),
		},
	})
}
