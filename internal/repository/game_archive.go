package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/wfunc/statecraft/internal/errors"
	"github.com/wfunc/statecraft/internal/game"
	"github.com/wfunc/statecraft/internal/logger"
	"github.com/wfunc/statecraft/internal/models"
	"gorm.io/gorm"
)

// GameArchiveRepository 对局归档仓储接口
type GameArchiveRepository interface {
	Create(ctx context.Context, archive *models.GameArchive) error
	ArchiveGame(ctx context.Context, state *game.RoomState, debrief game.Debrief) error
	FindByID(ctx context.Context, id uint) (*models.GameArchive, error)
	FindByRoomCode(ctx context.Context, code string) ([]*models.GameArchive, error)
	List(ctx context.Context, filter ArchiveFilter, p *ArchivePage) ([]*models.GameArchive, error)
	LoadDebrief(archive *models.GameArchive) (game.Debrief, error)
}

// ArchiveFilter 归档列表筛选条件
type ArchiveFilter struct {
	Status   string
	RoomCode string
}

func (f ArchiveFilter) scope(db *gorm.DB) *gorm.DB {
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.RoomCode != "" {
		db = db.Where("room_code = ?", f.RoomCode)
	}
	return db
}

// gameArchiveRepo 对局归档仓储实现
type gameArchiveRepo struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGameArchiveRepository 创建对局归档仓储
func NewGameArchiveRepository(db *gorm.DB) GameArchiveRepository {
	return &gameArchiveRepo{
		db:  db,
		now: time.Now,
	}
}

// Create 写入归档记录
func (r *gameArchiveRepo) Create(ctx context.Context, archive *models.GameArchive) error {
	start := time.Now()
	err := r.db.WithContext(ctx).Create(archive).Error
	logger.LogDatabaseOperation("insert", archive.TableName(), time.Since(start), err)
	if err != nil {
		return errors.Wrap(err, dbErrorCode(err, errors.ErrDatabaseInsert))
	}
	return nil
}

// ArchiveGame 把终局状态和复盘写成一条归档
func (r *gameArchiveRepo) ArchiveGame(ctx context.Context, state *game.RoomState, debrief game.Debrief) error {
	if state == nil {
		return errors.New(errors.ErrInvalidParam, "state")
	}
	payload, err := json.Marshal(debrief)
	if err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "序列化复盘失败")
	}

	archive := &models.GameArchive{
		RoomCode:       state.Code,
		Status:         string(state.Status),
		WinnerID:       state.Winner,
		CollapseReason: string(state.CollapseReason),
		TurnsPlayed:    debrief.TurnsPlayed,
		PlayerCount:    len(state.Players),
		FinalBudget:    debrief.FinalNation.Budget,
		FinalStability: debrief.FinalNation.Stability,
		Debrief:        string(payload),
		StartedAt:      state.CreatedAt,
		EndedAt:        r.now(),
	}
	if p, ok := state.Player(state.Winner); ok {
		archive.WinnerName = p.Name
	}
	return r.Create(ctx, archive)
}

// FindByID 根据ID查找
func (r *gameArchiveRepo) FindByID(ctx context.Context, id uint) (*models.GameArchive, error) {
	var archive models.GameArchive
	start := time.Now()
	err := r.db.WithContext(ctx).First(&archive, id).Error
	logger.LogDatabaseOperation("select", archive.TableName(), time.Since(start), ignoreNotFound(err))
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.ErrNotFound, "归档不存在")
		}
		return nil, errors.Wrap(err, dbErrorCode(err, errors.ErrDatabaseQuery))
	}
	return &archive, nil
}

// FindByRoomCode 同一房间码下的全部归档，最近结束的在前
func (r *gameArchiveRepo) FindByRoomCode(ctx context.Context, code string) ([]*models.GameArchive, error) {
	var archives []*models.GameArchive
	err := r.db.WithContext(ctx).
		Where("room_code = ?", code).
		Order("ended_at desc").
		Find(&archives).Error
	if err != nil {
		return nil, errors.Wrap(err, dbErrorCode(err, errors.ErrDatabaseQuery))
	}
	return archives, nil
}

// List 分页查询归档，最近结束的在前
func (r *gameArchiveRepo) List(ctx context.Context, filter ArchiveFilter, p *ArchivePage) ([]*models.GameArchive, error) {
	var archives []*models.GameArchive
	start := time.Now()

	if err := r.db.WithContext(ctx).
		Model(&models.GameArchive{}).
		Scopes(filter.scope).
		Count(&p.Total).Error; err != nil {
		return nil, errors.Wrap(err, dbErrorCode(err, errors.ErrDatabaseQuery))
	}

	err := r.db.WithContext(ctx).
		Scopes(filter.scope, p.scope).
		Find(&archives).Error
	logger.LogDatabaseOperation("list", "game_archives", time.Since(start), err)
	if err != nil {
		return nil, errors.Wrap(err, dbErrorCode(err, errors.ErrDatabaseQuery))
	}
	return archives, nil
}

// LoadDebrief 解析归档中的复盘
func (r *gameArchiveRepo) LoadDebrief(archive *models.GameArchive) (game.Debrief, error) {
	var d game.Debrief
	if archive == nil || archive.Debrief == "" {
		return d, nil
	}
	if err := json.Unmarshal([]byte(archive.Debrief), &d); err != nil {
		return d, errors.Wrap(err, errors.ErrUnknown, "解析复盘失败")
	}
	return d, nil
}

// dbErrorCode 连接失效归为可重试的连接错误，其余按操作归类
func dbErrorCode(err error, fallback errors.ErrorCode) errors.ErrorCode {
	if stderrors.Is(err, driver.ErrBadConn) || stderrors.Is(err, sql.ErrConnDone) {
		return errors.ErrDatabaseConnect
	}
	return fallback
}

func ignoreNotFound(err error) error {
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
