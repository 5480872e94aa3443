package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/statecraft/internal/game"
	"github.com/wfunc/statecraft/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB 创建内存数据库并迁移归档表
func SetupTestDB(t testing.TB) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// 内存库只能有一个连接，否则各连接看到的是不同的库
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.GameArchive{}))

	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// CreateTestRoomState 创建一个已结束的对局状态
func CreateTestRoomState(t testing.TB, code string, status game.Status, at time.Time) *game.RoomState {
	s := game.NewRoomState(code, game.DefaultSettings(), at)
	var err error
	var alice game.Player
	s, alice, err = game.AddPlayerToRoom(s, "p-alice", "Alice", at)
	require.NoError(t, err)
	s, _, err = game.AddPlayerToRoom(s, "p-bob", "Bob", at)
	require.NoError(t, err)

	s.Status = status
	s.CurrentTurn = 7
	if status == game.StatusFinished {
		s.Winner = alice.ID
	}
	return s
}

// AssertArchive 验证归档的关键字段
func AssertArchive(t *testing.T, expected, actual *models.GameArchive) {
	assert.Equal(t, expected.RoomCode, actual.RoomCode)
	assert.Equal(t, expected.Status, actual.Status)
	assert.Equal(t, expected.WinnerID, actual.WinnerID)
	assert.Equal(t, expected.TurnsPlayed, actual.TurnsPlayed)
}
