package models

import (
	"time"
)

// 归档对局的终局状态
const (
	ArchiveStatusFinished  = "finished"
	ArchiveStatusCollapsed = "collapsed"
)

// GameArchive 已结束对局的归档记录（每局只写一次，仅供查询）
type GameArchive struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	RoomCode       string    `gorm:"index;size:16;not null" json:"room_code"`
	Status         string    `gorm:"size:20;not null;index" json:"status"` // finished, collapsed
	WinnerID       string    `gorm:"size:64" json:"winner_id,omitempty"`
	WinnerName     string    `gorm:"size:64" json:"winner_name,omitempty"`
	CollapseReason string    `gorm:"size:32" json:"collapse_reason,omitempty"`
	TurnsPlayed    int       `gorm:"default:0" json:"turns_played"`
	PlayerCount    int       `gorm:"default:0" json:"player_count"`
	FinalBudget    int       `json:"final_budget"`
	FinalStability int       `json:"final_stability"`
	Debrief        string    `gorm:"type:text" json:"-"` // JSON格式的复盘数据
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `gorm:"index" json:"ended_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName 指定表名
func (GameArchive) TableName() string {
	return "game_archives"
}
