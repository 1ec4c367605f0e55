// Package realfs adapts the honeypot's virtual filesystem operations onto
// real files on host disk, scoped under a per-attacker root directory.
// STOR always drains uploads through it; with real-upload mode off the
// stored file is deleted after hashing and RETR synthesizes throwaway files.
package realfs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/rs/xid"

	"github.com/kestrelsec/ftphoney/internal/vfs"
)

const randomNameLength = 7

const randomNameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Adapter creates and removes real files under BasePath, one subdirectory
// per attacker.
type Adapter struct {
	BasePath string
}

func New(basePath string) *Adapter {
	return &Adapter{BasePath: basePath}
}

func (a *Adapter) attackerDir(attackerID uint) string {
	return filepath.Join(a.BasePath, fmt.Sprintf("%d", attackerID))
}

// RandomName returns a random alphanumeric name of the length STOR uses for
// on-disk upload filenames.
func RandomName(r *rand.Rand) string {
	b := make([]byte, randomNameLength)
	for i := range b {
		b[i] = randomNameAlphabet[r.Intn(len(randomNameAlphabet))]
	}
	return string(b)
}

// Store drains body into a freshly named random file under the attacker's
// directory, computing its SHA-256 digest as it writes. It returns the
// path (under BasePath), the digest hex string, and the byte count.
func (a *Adapter) Store(attackerID uint, r *rand.Rand, body io.Reader) (path, hashHex string, size int64, err error) {
	dir := a.attackerDir(attackerID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", 0, fmt.Errorf("realfs: create attacker dir: %w", err)
	}

	name := RandomName(r)
	path = filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", "", 0, fmt.Errorf("realfs: create upload file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), body)
	if err != nil {
		return "", "", 0, fmt.Errorf("realfs: write upload file: %w", err)
	}
	return path, hex.EncodeToString(h.Sum(nil)), n, nil
}

// Delete removes a file previously created by Store or MkdirP. Absence is
// not an error: the session may be cleaning up a file that was already
// removed by the housekeeper.
func (a *Adapter) Delete(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("realfs: delete %q: %w", path, err)
	}
	return nil
}

// MkdirP mirrors a virtual MKD onto disk when real-upload mode is on.
func (a *Adapter) MkdirP(attackerID uint, virtualPath string) error {
	dir := filepath.Join(a.attackerDir(attackerID), filepath.FromSlash(virtualPath))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("realfs: mkdir -p %q: %w", dir, err)
	}
	return nil
}

// Synthesize writes size bytes of pseudo-random content to a throwaway
// file and returns its path, for RETR of a file whose real bytes were
// never kept (real-upload mode off).
func (a *Adapter) Synthesize(r *rand.Rand, size int64) (string, error) {
	path := filepath.Join(os.TempDir(), "honeypot-"+xid.New().String())
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("realfs: create synthetic file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, 32*1024)
	remaining := size
	for remaining > 0 {
		n := int64(len(buf))
		if remaining < n {
			n = remaining
		}
		chunk := buf[:int(n)]
		r.Read(chunk)
		if _, err := f.Write(chunk); err != nil {
			return "", fmt.Errorf("realfs: write synthetic file: %w", err)
		}
		remaining -= n
	}
	return path, nil
}

// SeedFiles lists the decoy source files available in dir, creating a
// small, plausible starter set if the directory is empty or absent so the
// honeypot is runnable without operator-provided bait.
func SeedFiles(dir string) ([]vfs.SeedFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("realfs: read seed dir: %w", err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("realfs: create seed dir: %w", err)
		}
		entries = nil
	}

	if len(entries) == 0 {
		if err := writeDefaultSeeds(dir); err != nil {
			return nil, err
		}
		entries, err = os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("realfs: re-read seed dir: %w", err)
		}
	}

	seeds := make([]vfs.SeedFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		seeds = append(seeds, vfs.SeedFile{
			Name:         e.Name(),
			Size:         info.Size(),
			PhysicalPath: filepath.Join(dir, e.Name()),
		})
	}
	return seeds, nil
}

var defaultSeedContents = map[string]string{
	"invoice.pdf":           "%PDF-1.4 placeholder invoice content\n",
	"passwords.txt":         "admin:hunter2\nroot:toor\n",
	"vacation.jpg":          "JFIFplaceholder binary-ish content\n",
	"quarterly_report.docx": "placeholder office document content\n",
	"notes.txt":             "remember to rotate the backup keys\n",
	"family_photo.png":      "PNGplaceholder binary-ish content\n",
	"budget.xlsx":           "placeholder spreadsheet content\n",
	"ssh_config.txt":        "Host *\n  StrictHostKeyChecking no\n",
	"resume.pdf":            "%PDF-1.4 placeholder resume content\n",
	"contract.pdf":          "%PDF-1.4 placeholder contract content\n",
	"wedding.jpg":           "JFIFplaceholder binary-ish content\n",
	"credentials.txt":       "db_user=svc\ndb_pass=changeme\n",
	"screenshot.png":        "PNGplaceholder binary-ish content\n",
	"taxes_2023.pdf":        "%PDF-1.4 placeholder tax content\n",
	"backup_codes.txt":      "1: 1234-5678\n2: 2345-6789\n",
}

func writeDefaultSeeds(dir string) error {
	for name, content := range defaultSeedContents {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("realfs: write default seed %q: %w", name, err)
		}
	}
	return nil
}
