// Package seed installs reference data required before the engine can
// accept traffic.
package seed

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	totalizerdomain "github.com/stationops/pims/internal/totalizer/domain"
)

// EnsureTotalizerMaster mirrors the in-memory totalizer master into the
// totalizer_definitions table so reports and ad-hoc queries can join on it.
// The ids are stable, so rows are upserted by primary key.
func EnsureTotalizerMaster(db *gorm.DB, master *totalizerdomain.Master) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if master == nil {
		return errors.New("seed totalizer master is required")
	}

	ctx := context.Background()
	now := time.Now().UTC()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range master.IDs() {
			def, ok := master.Lookup(id)
			if !ok {
				continue
			}
			err := tx.Exec(`
				INSERT INTO totalizer_definitions (id, name, scope, created_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET name = excluded.name, scope = excluded.scope
			`, def.ID, def.Name, string(def.Scope), now).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
