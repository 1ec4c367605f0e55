package dataprovider

import (
	"errors"
	"time"

	"github.com/kestrelsec/ftphoney/internal/vfs"
)

// ErrNotFound is returned by lookup methods when no row matches.
var ErrNotFound = errors.New("dataprovider: not found")

// Provider is the persistence surface consumed by the login policy, the
// FTP session, and the housekeeper. It is implemented by gormProvider; the
// interface exists only so tests can substitute a double.
type Provider interface {
	// FindAttackerByIP returns ErrNotFound if no attacker has that source IP.
	FindAttackerByIP(ip string) (*Attacker, error)
	// FindAttackerByID returns ErrNotFound if the attacker has been purged.
	FindAttackerByID(id uint) (*Attacker, error)
	// CreateAttacker inserts a brand-new attacker row with login_count=1
	// and an empty filesystem.
	CreateAttacker(ip string) (*Attacker, error)
	// IncrementLoginCount bumps login_count by exactly 1.
	IncrementLoginCount(attackerID uint) error
	// BindCredentials sets accepted_credentials_id and, if fs is non-nil,
	// initializes file_system. Also increments login_count.
	BindCredentials(attackerID, credentialsID uint, fs *vfs.FileSystem) error
	// SaveFileSystem writes back the entire tree; this is the durability
	// boundary for every virtual-FS mutation.
	SaveFileSystem(attackerID uint, fs vfs.FileSystem) error

	// UpsertCredentials finds or creates the (username, password) pair and
	// increments its global count.
	UpsertCredentials(username, password string) (*Credentials, error)

	// LinkExists reports whether this attacker has already tried this
	// credential pair.
	LinkExists(attackerID, credentialsID uint) (bool, error)
	// InsertLink records that this attacker tried this credential pair.
	InsertLink(attackerID, credentialsID uint) error

	// InsertUploadedFile persists a new UploadedFile row and returns its id.
	InsertUploadedFile(f *UploadedFile) (uint, error)
	// FindFileByID returns ErrNotFound if no such row exists.
	FindFileByID(id uint) (*UploadedFile, error)
	// ListFilesPendingReputation returns every UploadedFile with a NULL
	// virustotal_result.
	ListFilesPendingReputation() ([]UploadedFile, error)
	// UpdateFileReputation sets virustotal_result on an existing row.
	UpdateFileReputation(id uint, result string) error

	// ListStaleAttackers returns every attacker not updated since cutoff.
	ListStaleAttackers(cutoff time.Time) ([]Attacker, error)
	// FindFilesByAttacker returns every UploadedFile row owned by attackerID.
	FindFilesByAttacker(attackerID uint) ([]UploadedFile, error)
	// DeleteStaleAttackers removes every attacker not updated since
	// cutoff; the schema cascades link rows and uploaded-file rows.
	DeleteStaleAttackers(cutoff time.Time) error
}
