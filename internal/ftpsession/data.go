package ftpsession

import (
	"fmt"
	"os"

	"github.com/kestrelsec/ftphoney/internal/vfs"
)

// resolvePhysical resolves a vfs.File entry to a readable path for the RETR
// path: decoys resolve to their seed copy, real uploads resolve to their
// persisted location when real-upload mode is on, and otherwise a fresh
// random-content file of the recorded size is synthesized.
func (s *Session) resolvePhysical(f vfs.File) (path string, synthesized bool, err error) {
	if f.DefaultFile != nil {
		return *f.DefaultFile, false, nil
	}

	if f.FileID == nil {
		return "", false, fmt.Errorf("ftpsession: file entry has neither file_id nor default_file")
	}

	if s.cfg.RealUploadMode {
		row, err := s.provider.FindFileByID(*f.FileID)
		if err != nil {
			return "", false, fmt.Errorf("ftpsession: load uploaded file row: %w", err)
		}
		if row.Location == nil {
			return "", false, fmt.Errorf("ftpsession: uploaded file row has no location")
		}
		return *row.Location, false, nil
	}

	path, err = s.realfs.Synthesize(s.rnd, f.Size)
	if err != nil {
		return "", false, fmt.Errorf("ftpsession: synthesize decoy bytes: %w", err)
	}
	return path, true, nil
}

func openReadable(path string) (*os.File, error) {
	return os.Open(path)
}
