package database

import (
	"fmt"

	"github.com/wfunc/statecraft/internal/logger"
	"github.com/wfunc/statecraft/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB, dsn string) error {
	if db == nil {
		return fmt.Errorf("数据库未初始化")
	}

	if db.Dialector.Name() == "sqlite" {
		if path := sqliteFilePath(dsn); path != "" {
			lockFile, err := acquireMigrationLock(path)
			if err != nil {
				logger.Error("无法获取迁移锁", zap.Error(err))
				return fmt.Errorf("获取迁移锁失败: %w", err)
			}
			defer releaseMigrationLock(lockFile)
		}
	}

	logger.Info("开始数据库迁移...")

	migrationModels := []interface{}{
		&models.GameArchive{},
	}
	for _, model := range migrationModels {
		if err := db.AutoMigrate(model); err != nil {
			logger.Error("迁移失败",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err),
			)
			return err
		}
		logger.Debug("迁移成功", zap.String("model", fmt.Sprintf("%T", model)))
	}

	createIndexes(db)

	logger.Info("数据库迁移完成")
	return nil
}

// createIndexes 创建列表查询用的组合索引
func createIndexes(db *gorm.DB) {
	stmts := map[string]string{
		"idx_game_archives_status_ended": "CREATE INDEX IF NOT EXISTS idx_game_archives_status_ended ON game_archives(status, ended_at)",
	}
	for name, stmt := range stmts {
		if db.Migrator().HasIndex(&models.GameArchive{}, name) {
			continue
		}
		if err := db.Exec(stmt).Error; err != nil {
			logger.Warn("创建索引失败", zap.String("index", name), zap.Error(err))
		}
	}
}
