package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"fourwcycle/internal/middleware"

	"gorm.io/gorm"
)

// migrationLog is one row of migration_logs.
type migrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"autoCreateTime;index"`
}

func (migrationLog) TableName() string {
	return "migration_logs"
}

// Migrator applies and reverts versioned SQL scripts, recording each in migration_logs.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
	// dialect, when set, is the only driver the scripts may run against.
	dialect string
}

// NewMigrator returns a migrator for the embedded Postgres scripts.
func NewMigrator(db *gorm.DB) *Migrator {
	return &Migrator{db: db, migrations: migrations, dialect: DriverPostgres}
}

func (m *Migrator) checkDialect() error {
	if m.dialect != "" && m.db.Name() != m.dialect {
		return fmt.Errorf("sql migrations target %s, not %s", m.dialect, m.db.Name())
	}
	return nil
}

// Applied returns the recorded versions in ascending order. A missing log table means none.
func (m *Migrator) Applied(ctx context.Context) ([]int, error) {
	var versions []int
	err := m.db.WithContext(ctx).Model(&migrationLog{}).Order("version").Pluck("version", &versions).Error
	switch {
	case err == nil:
		return versions, nil
	case errors.Is(err, gorm.ErrRecordNotFound), isMissingTableError(err):
		return []int{}, nil
	default:
		return nil, fmt.Errorf("read migration_logs: %w", err)
	}
}

func isMissingTableError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no such table") ||
		(strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist"))
}

// Pending returns the registered migrations not yet applied. Applied versions the binary does
// not know about are an error: the database is ahead of this build.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	if unknown := unknownVersions(applied, m.migrations); len(unknown) > 0 {
		labels := make([]string, len(unknown))
		for i, v := range unknown {
			labels[i] = fmt.Sprintf("%06d", v)
		}
		return nil, fmt.Errorf("migration_logs has versions this build does not ship: %s", strings.Join(labels, ", "))
	}

	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}
	var pending []Migration
	for _, mig := range m.migrations {
		if !done[mig.Version] {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

func unknownVersions(applied []int, registered []Migration) []int {
	known := make(map[int]bool, len(registered))
	for _, mig := range registered {
		known[mig.Version] = true
	}
	var unknown []int
	for _, v := range applied {
		if !known[v] {
			unknown = append(unknown, v)
		}
	}
	sort.Ints(unknown)
	return unknown
}

// Up applies every pending migration in version order and returns the ones it ran.
// Each script commits together with its log row.
func (m *Migrator) Up(ctx context.Context) ([]Migration, error) {
	if err := m.checkDialect(); err != nil {
		return nil, err
	}
	if err := m.db.WithContext(ctx).AutoMigrate(&migrationLog{}); err != nil {
		return nil, fmt.Errorf("create migration_logs: %w", err)
	}

	pending, err := m.Pending(ctx)
	if err != nil {
		return nil, err
	}

	ran := make([]Migration, 0, len(pending))
	for _, mig := range pending {
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(mig.UpScript).Error; err != nil {
				return err
			}
			return tx.Create(&migrationLog{Version: mig.Version, Name: mig.Name}).Error
		})
		if err != nil {
			return ran, fmt.Errorf("apply %s: %w", mig.String(), err)
		}
		middleware.Logger.Info("Migration applied", slog.Int("version", mig.Version), slog.String("name", mig.Name))
		ran = append(ran, mig)
	}
	return ran, nil
}

// Down reverts one applied migration. A zero version selects the most recently applied one.
func (m *Migrator) Down(ctx context.Context, version int) (*Migration, error) {
	if err := m.checkDialect(); err != nil {
		return nil, err
	}
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	if len(applied) == 0 {
		return nil, errors.New("no migrations have been applied")
	}
	if version == 0 {
		version = applied[len(applied)-1]
	} else if !containsVersion(applied, version) {
		return nil, fmt.Errorf("migration %06d has not been applied", version)
	}

	var target *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == version {
			target = &m.migrations[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("migration %06d is not shipped with this build", version)
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(target.DownScript).Error; err != nil {
			return err
		}
		return tx.Where("version = ?", version).Delete(&migrationLog{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("revert %s: %w", target.String(), err)
	}
	middleware.Logger.Info("Migration reverted", slog.Int("version", version), slog.String("name", target.Name))
	return target, nil
}

func containsVersion(versions []int, v int) bool {
	for _, x := range versions {
		if x == v {
			return true
		}
	}
	return false
}
