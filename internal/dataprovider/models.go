// Package dataprovider is the persistence gateway: four GORM-backed
// entities (Attacker, Credentials, AttackerToCredentials, UploadedFile)
// behind a single Provider interface, consumed by the login policy, the
// FTP session, and the housekeeper.
package dataprovider

import (
	"time"

	"github.com/kestrelsec/ftphoney/internal/vfs"
)

// Attacker identifies a remote client by source IP and carries its entire
// virtual filesystem.
type Attacker struct {
	ID                    uint           `gorm:"primaryKey"`
	SourceIP              string         `gorm:"column:source_ip;uniqueIndex"`
	LoginCount            int64          `gorm:"column:login_count;not null;default:0"`
	AcceptedCredentialsID *uint          `gorm:"column:accepted_credentials_id"`
	FileSystem            vfs.FileSystem `gorm:"column:file_system;type:text"`
	UpdatedAt             time.Time      `gorm:"column:updated;autoUpdateTime"`
	CreatedAt             time.Time

	Credentials *Credentials `gorm:"foreignKey:AcceptedCredentialsID"`
}

// Credentials is a (username, password) pair ever seen from any attacker.
type Credentials struct {
	ID       uint   `gorm:"primaryKey"`
	Username string `gorm:"column:username;uniqueIndex:idx_creds_pair"`
	Password string `gorm:"column:password;uniqueIndex:idx_creds_pair"`
	Count    int64  `gorm:"column:count;not null;default:0"`
}

// AttackerToCredentials records which credential pairs a specific attacker
// has tried. It is the link table in the many-to-many relationship.
type AttackerToCredentials struct {
	AttackerID    uint `gorm:"primaryKey;column:attacker_id"`
	CredentialsID uint `gorm:"primaryKey;column:credentials_id"`

	Attacker    Attacker    `gorm:"foreignKey:AttackerID;constraint:OnDelete:CASCADE"`
	Credentials Credentials `gorm:"foreignKey:CredentialsID"`
}

// UploadedFile is a file body received via STOR.
type UploadedFile struct {
	ID               uint    `gorm:"primaryKey"`
	Filename         string  `gorm:"column:filename"`
	Location         *string `gorm:"column:location"`
	Hash             string  `gorm:"column:hash"`
	VirusTotalResult *string `gorm:"column:virustotal_result"`
	AttackerID       uint    `gorm:"column:attacker_id"`
	Size             int64   `gorm:"column:size"`

	Attacker Attacker `gorm:"foreignKey:AttackerID;constraint:OnDelete:CASCADE"`
}

// TableName pins the table names to fixed, singular-ish names regardless of
// GORM's pluralization rules.
func (Attacker) TableName() string              { return "attackers" }
func (Credentials) TableName() string           { return "credentials" }
func (AttackerToCredentials) TableName() string { return "attacker_to_credentials" }
func (UploadedFile) TableName() string          { return "uploaded_files" }
