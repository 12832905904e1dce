package repository

import (
	"context"

	"github.com/Fi44er/otp_store/utils"
	"gorm.io/gorm"
)

type Repository struct {
	db     *gorm.DB
	logger *utils.Logger
}

func NewRepository(db *gorm.DB, logger *utils.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// conn picks the open transaction when there is one.
func (r *Repository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db.WithContext(ctx)
	}
	return tx.WithContext(ctx)
}

func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
