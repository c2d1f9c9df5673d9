package database

import (
	"context"
	"testing"
	"testing/fstest"

	"fourwcycle/internal/config"
	"fourwcycle/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

func TestEmbeddedMigrations(t *testing.T) {
	all := GetMigrations()
	require.Len(t, all, 2)
	assert.Equal(t, "000001_create_submissions", all[0].String())
	assert.Equal(t, "000002_create_submission_photos", all[1].String())
	assert.Contains(t, all[0].UpScript, "chk_submissions_status")
	assert.Contains(t, all[1].UpScript, "ON DELETE CASCADE")
	assert.NotEmpty(t, all[1].DownScript)

	assert.NotNil(t, GetMigrationByVersion(2))
	assert.Nil(t, GetMigrationByVersion(99))
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/000002_second.up.sql":   {Data: []byte("SELECT 2;")},
		"migrations/000002_second.down.sql": {Data: []byte("SELECT -2;")},
		"migrations/000001_first.up.sql":    {Data: []byte("SELECT 1;")},
		"migrations/000001_first.down.sql":  {Data: []byte("SELECT -1;")},
		"migrations/README.md":              {Data: []byte("ignored")},
		"migrations/bad.up.sql":             {Data: []byte("ignored")},
	}

	loaded, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, 1, loaded[0].Version)
	assert.Equal(t, "first", loaded[0].Name)
	assert.Equal(t, "SELECT -2;", loaded[1].DownScript)

	_, err = LoadMigrations(fstest.MapFS{
		"migrations/000001_orphan.up.sql": {Data: []byte("SELECT 1;")},
	})
	assert.Error(t, err, "an up script without its down script is rejected")
}

func TestUnknownVersions(t *testing.T) {
	registered := []Migration{{Version: 1}, {Version: 2}}

	assert.Empty(t, unknownVersions(nil, registered))
	assert.Empty(t, unknownVersions([]int{1, 2}, registered))
	assert.Equal(t, []int{5, 7}, unknownVersions([]int{1, 7, 5}, registered))
}

func TestMigrator_UpAndDown(t *testing.T) {
	ctx := context.Background()
	scripts, err := LoadMigrations(fstest.MapFS{
		"migrations/000001_routes.up.sql":   {Data: []byte("CREATE TABLE routes (id INTEGER PRIMARY KEY);")},
		"migrations/000001_routes.down.sql": {Data: []byte("DROP TABLE routes;")},
		"migrations/000002_stops.up.sql":    {Data: []byte("CREATE TABLE stops (id INTEGER PRIMARY KEY);")},
		"migrations/000002_stops.down.sql":  {Data: []byte("DROP TABLE stops;")},
	})
	require.NoError(t, err)

	db, err := Open(sqlite.Open(":memory:"))
	require.NoError(t, err)
	require.NoError(t, configurePool(db, &config.Config{DBDriver: DriverSQLite, DBPath: ":memory:"}))
	m := &Migrator{db: db, migrations: scripts}

	applied, err := m.Applied(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)

	ran, err := m.Up(ctx)
	require.NoError(t, err)
	require.Len(t, ran, 2)
	assert.True(t, db.Migrator().HasTable("routes"))
	assert.True(t, db.Migrator().HasTable("stops"))

	ran, err = m.Up(ctx)
	require.NoError(t, err)
	assert.Empty(t, ran)

	reverted, err := m.Down(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, reverted.Version)
	assert.False(t, db.Migrator().HasTable("stops"))

	_, err = m.Down(ctx, 2)
	assert.Error(t, err)

	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "stops", pending[0].Name)

	// A database migrated by a newer build is refused.
	older := &Migrator{db: db, migrations: scripts[1:]}
	_, err = older.Pending(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000001")
}

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		env      string
		driver   string
		wantSQL  bool
		wantAuto bool
		wantErr  bool
	}{
		{"sqlite always auto", "sql", "production", DriverSQLite, false, true, false},
		{"hybrid dev postgres", "hybrid", "development", DriverPostgres, true, true, false},
		{"hybrid prod postgres", "", "production", DriverPostgres, true, false, false},
		{"sql postgres", "sql", "development", DriverPostgres, true, false, false},
		{"auto dev postgres", "auto", "development", DriverPostgres, false, true, false},
		{"auto prod refused", "auto", "prod", DriverPostgres, false, false, true},
		{"unknown mode", "yolo", "development", DriverSQLite, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{DBSchemaMode: tt.mode, Env: tt.env}
			runSQL, runAuto, err := schemaPolicy(cfg, tt.driver)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, runSQL)
			assert.Equal(t, tt.wantAuto, runAuto)
		})
	}
}

func TestApplySchema_SQLite(t *testing.T) {
	db, err := Open(sqlite.Open(":memory:"))
	require.NoError(t, err)
	cfg := &config.Config{Env: "test", DBDriver: DriverSQLite, DBPath: ":memory:"}
	require.NoError(t, configurePool(db, cfg))

	require.NoError(t, ApplySchema(context.Background(), db, cfg))
	assert.True(t, db.Migrator().HasTable(&models.Submission{}))
	assert.True(t, db.Migrator().HasTable(&models.SubmissionPhoto{}))

	status, err := GetSchemaStatus(context.Background(), db, cfg)
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, status.Driver)
	assert.False(t, status.WillRunSQL)
	assert.True(t, status.WillRunAutoMigrate)

	// The status check constraint rejects unknown states.
	err = db.Exec(`INSERT INTO submissions (name, email, title, route, experience, status, admin_note, created_at, updated_at)
		VALUES ('a', 'b', 'c', 'd', 'e', 'archived', '', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`).Error
	assert.Error(t, err)

	_, err = NewMigrator(db).Up(context.Background())
	assert.Error(t, err, "sql scripts are postgres-only")
}

func TestConnect_SQLiteFile(t *testing.T) {
	cfg := &config.Config{
		Env:      "test",
		DBDriver: DriverSQLite,
		DBPath:   t.TempDir() + "/nested/app.db",
	}

	db, err := Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	assert.Same(t, db, DB)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	assert.True(t, db.Migrator().HasTable("submissions"))
}

func TestDialector_UnknownDriver(t *testing.T) {
	_, err := Dialector(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}
