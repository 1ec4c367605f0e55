package dataprovider

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kestrelsec/ftphoney/internal/vfs"
)

// gormProvider is the only concrete implementation of Provider.
type gormProvider struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if necessary) a SQLite-backed provider and
// runs AutoMigrate. SQLite is the default storage engine.
func OpenSQLite(path string) (Provider, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("dataprovider: open sqlite: %w", err)
	}
	return newGormProvider(db)
}

// OpenMySQL opens a MySQL-backed provider using dsn, the opt-in backend.
func OpenMySQL(dsn string) (Provider, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("dataprovider: open mysql: %w", err)
	}
	return newGormProvider(db)
}

func newGormProvider(db *gorm.DB) (Provider, error) {
	if err := db.AutoMigrate(&Credentials{}, &Attacker{}, &AttackerToCredentials{}, &UploadedFile{}); err != nil {
		return nil, fmt.Errorf("dataprovider: automigrate: %w", err)
	}
	return &gormProvider{db: db}, nil
}

func (p *gormProvider) FindAttackerByIP(ip string) (*Attacker, error) {
	var a Attacker
	err := p.db.Preload("Credentials").Where("source_ip = ?", ip).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (p *gormProvider) FindAttackerByID(id uint) (*Attacker, error) {
	var a Attacker
	err := p.db.First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (p *gormProvider) CreateAttacker(ip string) (*Attacker, error) {
	a := &Attacker{
		SourceIP:   ip,
		LoginCount: 1,
		FileSystem: vfs.FileSystem{},
	}
	if err := p.db.Create(a).Error; err != nil {
		return nil, fmt.Errorf("dataprovider: create attacker: %w", err)
	}
	return a, nil
}

func (p *gormProvider) IncrementLoginCount(attackerID uint) error {
	return p.db.Model(&Attacker{}).Where("id = ?", attackerID).
		UpdateColumn("login_count", gorm.Expr("login_count + 1")).Error
}

func (p *gormProvider) BindCredentials(attackerID, credentialsID uint, fs *vfs.FileSystem) error {
	updates := map[string]any{
		"accepted_credentials_id": credentialsID,
		"login_count":             gorm.Expr("login_count + 1"),
	}
	if fs != nil {
		updates["file_system"] = *fs
	}
	return p.db.Model(&Attacker{}).Where("id = ?", attackerID).Updates(updates).Error
}

func (p *gormProvider) SaveFileSystem(attackerID uint, fs vfs.FileSystem) error {
	return p.db.Model(&Attacker{}).Where("id = ?", attackerID).Update("file_system", fs).Error
}

func (p *gormProvider) UpsertCredentials(username, password string) (*Credentials, error) {
	var c Credentials
	err := p.db.Where("username = ? AND password = ?", username, password).First(&c).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c = Credentials{Username: username, Password: password, Count: 1}
		if err := p.db.Create(&c).Error; err != nil {
			return nil, fmt.Errorf("dataprovider: create credentials: %w", err)
		}
		return &c, nil
	case err != nil:
		return nil, err
	default:
		if err := p.db.Model(&c).UpdateColumn("count", gorm.Expr("count + 1")).Error; err != nil {
			return nil, fmt.Errorf("dataprovider: bump credentials count: %w", err)
		}
		c.Count++
		return &c, nil
	}
}

func (p *gormProvider) LinkExists(attackerID, credentialsID uint) (bool, error) {
	var count int64
	err := p.db.Model(&AttackerToCredentials{}).
		Where("attacker_id = ? AND credentials_id = ?", attackerID, credentialsID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (p *gormProvider) InsertLink(attackerID, credentialsID uint) error {
	link := AttackerToCredentials{AttackerID: attackerID, CredentialsID: credentialsID}
	return p.db.Create(&link).Error
}

func (p *gormProvider) InsertUploadedFile(f *UploadedFile) (uint, error) {
	if err := p.db.Create(f).Error; err != nil {
		return 0, fmt.Errorf("dataprovider: insert uploaded file: %w", err)
	}
	return f.ID, nil
}

func (p *gormProvider) FindFileByID(id uint) (*UploadedFile, error) {
	var f UploadedFile
	err := p.db.First(&f, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (p *gormProvider) ListFilesPendingReputation() ([]UploadedFile, error) {
	var files []UploadedFile
	err := p.db.Where("virustotal_result IS NULL").Find(&files).Error
	return files, err
}

func (p *gormProvider) UpdateFileReputation(id uint, result string) error {
	return p.db.Model(&UploadedFile{}).Where("id = ?", id).Update("virustotal_result", result).Error
}

func (p *gormProvider) ListStaleAttackers(cutoff time.Time) ([]Attacker, error) {
	var attackers []Attacker
	err := p.db.Where("updated < ?", cutoff).Find(&attackers).Error
	return attackers, err
}

// FindFilesByAttacker returns every UploadedFile row owned by attackerID,
// used by the housekeeper's stale-purge pass to locate on-disk locations
// before the cascading delete removes the rows.
func (p *gormProvider) FindFilesByAttacker(attackerID uint) ([]UploadedFile, error) {
	var files []UploadedFile
	err := p.db.Where("attacker_id = ?", attackerID).Find(&files).Error
	return files, err
}

func (p *gormProvider) DeleteStaleAttackers(cutoff time.Time) error {
	return p.db.Where("updated < ?", cutoff).Delete(&Attacker{}).Error
}
