package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/classpulse/presence-monitor/internal/models"
)

// DirectoryRepository resolves the last-known network address for a batch of
// user ids from the Moodle user table.
type DirectoryRepository interface {
	LastAddresses(ctx context.Context, ids []int64) (map[int64]string, error)
}

type directoryRepository struct {
	db    *gorm.DB
	table string
}

// NewDirectoryRepository constructs a directory repository bound to the
// site's prefixed user table.
func NewDirectoryRepository(db *gorm.DB, tablePrefix string) DirectoryRepository {
	return &directoryRepository{db: db, table: tablePrefix + "user"}
}

// LastAddresses runs a single IN query for the whole batch. An empty batch
// returns an empty map without touching the database. Empty or NULL lastip
// values map to the "N/A" sentinel.
func (r *directoryRepository) LastAddresses(ctx context.Context, ids []int64) (map[int64]string, error) {
	addresses := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return addresses, nil
	}

	var rows []models.DirectoryUser
	if err := r.db.WithContext(ctx).Table(r.table).Select("id", "lastip").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		addr := row.LastIP
		if addr == "" {
			addr = "N/A"
		}
		addresses[row.ID] = addr
	}

	return addresses, nil
}
