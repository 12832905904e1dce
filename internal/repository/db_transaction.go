package repository

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
)

// InTransaction runs fn inside one database transaction. fn receives the
// transaction handle to pass to the other repository methods; any error
// returned by fn rolls everything back.
func (r *Repository) InTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := r.db.WithContext(ctx).Transaction(fn)
	if err != nil {
		r.logger.Debugf("Transaction rolled back: %v", err)
	}
	return err
}

// InSnapshot runs read-only fn against a single REPEATABLE READ snapshot.
func (r *Repository) InSnapshot(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	})
}
