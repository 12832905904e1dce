package db

import (
	"context"
	"fmt"
	"time"

	"github.com/Fi44er/otp_store/internal/models"
	"github.com/Fi44er/otp_store/utils"
	"gorm.io/driver/postgres"

	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const (
	maxIdleConns    = 10
	maxOpenConns    = 50
	connMaxLifetime = 30 * time.Minute
	pingTimeout     = 5 * time.Second
)

// Индексы под выборки истории (newest first), которые AutoMigrate не создаёт.
var historyIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_transactions_user_created ON transactions (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_purchases_user_created ON purchases (user_id, created_at DESC)`,
}

// ConnectDb opens the store. TranslateError turns unique violations into gorm.ErrDuplicatedKey.
func ConnectDb(url string, log *utils.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  url,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Error),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	log.Info("📦 Setting database connection pool...")
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("✅ Database connection successfully")
	return db, nil
}

func Migrate(db *gorm.DB, trigger bool, log *utils.Logger) error {
	if !trigger {
		log.Info("⏭ Auto-migration disabled")
		return nil
	}

	log.Info("📦 Migrating ledger schema...")
	if err := db.AutoMigrate(
		&models.User{},
		&models.Transaction{},
		&models.Purchase{},
		&models.Hold{},
		&models.Payment{},
	); err != nil {
		log.Errorf("✖ Failed to migrate database: %v", err)
		return err
	}

	for _, stmt := range historyIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			log.Errorf("✖ Failed to create index: %v", err)
			return err
		}
	}

	log.Info("✅ Database schema is up to date")
	return nil
}

func Close(db *gorm.DB, log *utils.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Errorf("Failed to get sql.DB for close: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Errorf("Failed to close database: %v", err)
		return
	}
	log.Info("Database connection closed")
}
