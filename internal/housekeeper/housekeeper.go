// Package housekeeper runs a cron-scheduled background loop that enriches
// uploaded-file reputation data and purges attackers that have gone stale.
package housekeeper

import (
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/kestrelsec/ftphoney/internal/dataprovider"
	"github.com/kestrelsec/ftphoney/internal/events"
	"github.com/kestrelsec/ftphoney/internal/metrics"
	"github.com/kestrelsec/ftphoney/internal/realfs"
)

// Config carries the housekeeper's slice of the configuration surface.
type Config struct {
	VirusTotalToken     string
	VirusTotalHashURL   string
	VirusTotalResultURL string
	RealUploadMode      bool
	StaleAfter          time.Duration // default 7 * 24h
}

// Housekeeper runs Config's reputation-enrichment and stale-purge passes
// on a cron schedule.
type Housekeeper struct {
	provider  dataprovider.Provider
	emitter   *events.Emitter
	fsAdapter *realfs.Adapter
	cfg       Config
	client    *http.Client
	metrics   *metrics.Registry
	log       zerolog.Logger

	cron *cron.Cron
}

func New(provider dataprovider.Provider, emitter *events.Emitter, fsAdapter *realfs.Adapter, cfg Config, reg *metrics.Registry, log zerolog.Logger) *Housekeeper {
	if cfg.StaleAfter == 0 {
		cfg.StaleAfter = 7 * 24 * time.Hour
	}
	return &Housekeeper{
		provider:  provider,
		emitter:   emitter,
		fsAdapter: fsAdapter,
		cfg:       cfg,
		client:    &http.Client{Timeout: 10 * time.Second},
		metrics:   reg,
		log:       log.With().Str("component", "housekeeper").Logger(),
		cron:      cron.New(),
	}
}

// Start schedules Tick to run every intervalMinutes and begins the cron
// scheduler's own goroutine.
func (h *Housekeeper) Start(intervalMinutes int) error {
	spec := fmt.Sprintf("@every %dm", intervalMinutes)
	if _, err := h.cron.AddFunc(spec, h.Tick); err != nil {
		return fmt.Errorf("housekeeper: schedule tick: %w", err)
	}
	h.cron.Start()
	return nil
}

// Stop ends the cron scheduler. A tick in flight runs to completion; it
// simply is not invoked again.
func (h *Housekeeper) Stop() {
	ctx := h.cron.Stop()
	<-ctx.Done()
}

// Tick runs one pass: reputation enrichment, then stale purge. Exported so
// tests can invoke it outside the cron schedule.
func (h *Housekeeper) Tick() {
	h.enrichReputation()
	h.stalePurge()
	if h.metrics != nil {
		h.metrics.HousekeeperRan()
	}
}

func (h *Housekeeper) enrichReputation() {
	pending, err := h.provider.ListFilesPendingReputation()
	if err != nil {
		h.log.Error().Err(err).Msg("list files pending reputation failed")
		return
	}

	for _, f := range pending {
		result, rateLimited, err := h.lookupReputation(f.Hash)
		if err != nil {
			h.log.Warn().Err(err).Str("hash", f.Hash).Msg("reputation lookup failed")
			continue
		}
		if rateLimited {
			h.log.Info().Msg("reputation service rate-limited; stopping this pass")
			return
		}

		if err := h.provider.UpdateFileReputation(f.ID, result); err != nil {
			h.log.Error().Err(err).Uint("file_id", f.ID).Msg("persist reputation result failed")
			continue
		}

		srcIP := "IP not found!"
		if attacker, err := h.provider.FindAttackerByID(f.AttackerID); err == nil {
			srcIP = attacker.SourceIP
		}
		h.emitter.File(srcIP, f.Filename, f.Hash+" | "+result, f.Size)
	}
}

// lookupReputation returns the virustotal_result value to persist, or
// rateLimited=true if the service answered 429 (abort this pass only).
func (h *Housekeeper) lookupReputation(hash string) (result string, rateLimited bool, err error) {
	req, err := http.NewRequest(http.MethodGet, h.cfg.VirusTotalHashURL+hash, nil)
	if err != nil {
		return "", false, fmt.Errorf("housekeeper: build reputation request: %w", err)
	}
	req.Header.Set("x-apikey", h.cfg.VirusTotalToken)

	resp, err := h.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("housekeeper: reputation request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return fmt.Sprintf("%s/%s/details", h.cfg.VirusTotalResultURL, hash), false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", true, nil
	default:
		return "Hash not found on VT.", false, nil
	}
}

func (h *Housekeeper) stalePurge() {
	cutoff := time.Now().Add(-h.cfg.StaleAfter)

	if h.cfg.RealUploadMode {
		stale, err := h.provider.ListStaleAttackers(cutoff)
		if err != nil {
			h.log.Error().Err(err).Msg("list stale attackers failed")
			return
		}
		for _, a := range stale {
			files, err := h.provider.FindFilesByAttacker(a.ID)
			if err != nil {
				h.log.Error().Err(err).Uint("attacker_id", a.ID).Msg("list files for stale attacker failed")
				continue
			}
			for _, f := range files {
				if f.Location == nil {
					continue
				}
				if err := h.fsAdapter.Delete(*f.Location); err != nil {
					h.log.Warn().Err(err).Str("path", *f.Location).Msg("delete stale upload failed")
				}
			}
		}
	}

	if err := h.provider.DeleteStaleAttackers(cutoff); err != nil {
		h.log.Error().Err(err).Msg("delete stale attackers failed")
	}
}
