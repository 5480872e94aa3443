package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/statecraft/internal/config"
	"github.com/wfunc/statecraft/internal/models"
	gormlogger "gorm.io/gorm/logger"
)

func TestOpen_SQLiteFileMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	db, err := Open(&config.DatabaseConfig{
		Driver:      "sqlite",
		DSN:         path,
		LogLevel:    "silent",
		AutoMigrate: true,
	})
	require.NoError(t, err)
	defer Close(db)

	assert.True(t, IsConnected(db))
	assert.True(t, db.Migrator().HasTable(&models.GameArchive{}))

	// 迁移结束后锁文件已释放
	_, err = os.Stat(path + ".migration.lock")
	assert.True(t, os.IsNotExist(err))
}

func TestOpen_Memory(t *testing.T) {
	db, err := Open(&config.DatabaseConfig{Driver: "sqlite3", DSN: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	defer Close(db)

	require.NoError(t, AutoMigrate(db, ":memory:"))
	assert.True(t, db.Migrator().HasTable("game_archives"))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(&config.DatabaseConfig{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestAutoMigrate_NilDB(t *testing.T) {
	assert.Error(t, AutoMigrate(nil, ""))
	assert.False(t, IsConnected(nil))
	assert.NoError(t, Close(nil))
}

func TestMigrationLock(t *testing.T) {
	oldAttempts, oldDelay := lockAttempts, lockRetryDelay
	lockAttempts, lockRetryDelay = 2, 10*time.Millisecond
	defer func() { lockAttempts, lockRetryDelay = oldAttempts, oldDelay }()

	path := filepath.Join(t.TempDir(), "game.db")
	first, err := acquireMigrationLock(path)
	require.NoError(t, err)

	_, err = acquireMigrationLock(path)
	assert.Error(t, err, "锁被占用时应失败")

	releaseMigrationLock(first)
	second, err := acquireMigrationLock(path)
	require.NoError(t, err)
	releaseMigrationLock(second)
}

func TestMigrationLock_Stale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.db")
	lockPath := path + ".migration.lock"
	require.NoError(t, os.WriteFile(lockPath, nil, 0644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(lockPath, old, old))

	lock, err := acquireMigrationLock(path)
	require.NoError(t, err)
	releaseMigrationLock(lock)
}

func TestSqliteFilePath(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"普通路径", "./data/statecraft.db", "./data/statecraft.db"},
		{"带参数", "file:./data/a.db?cache=shared", "./data/a.db"},
		{"内存库", ":memory:", ""},
		{"共享内存库", "file:x?mode=memory&cache=shared", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sqliteFilePath(tt.dsn))
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, parseLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, parseLogLevel("error"))
	assert.Equal(t, gormlogger.Info, parseLogLevel("info"))
	assert.Equal(t, gormlogger.Warn, parseLogLevel(""))
}
