package repository

import (
	"gorm.io/gorm"
)

// 归档列表分页
const (
	DefaultArchivePageSize = 20
	MaxArchivePageSize     = 100
)

// ArchivePage 归档列表的一页，Total 由 List 回填
type ArchivePage struct {
	Number int   `json:"page"`
	Size   int   `json:"page_size"`
	Total  int64 `json:"total"`
}

// NewArchivePage 页码从 1 开始，页大小缺省取默认值并截断到上限
func NewArchivePage(number, size int) *ArchivePage {
	if number < 1 {
		number = 1
	}
	switch {
	case size <= 0:
		size = DefaultArchivePageSize
	case size > MaxArchivePageSize:
		size = MaxArchivePageSize
	}
	return &ArchivePage{Number: number, Size: size}
}

// Offset 本页第一条记录的偏移
func (p *ArchivePage) Offset() int {
	return (p.Number - 1) * p.Size
}

// Pages 按 Total 计算的总页数
func (p *ArchivePage) Pages() int {
	if p.Size == 0 {
		return 0
	}
	return int((p.Total + int64(p.Size) - 1) / int64(p.Size))
}

// scope 最近结束的对局在前，同一时刻按 id 倒序
func (p *ArchivePage) scope(db *gorm.DB) *gorm.DB {
	return db.Order("ended_at desc").
		Order("id desc").
		Offset(p.Offset()).
		Limit(p.Size)
}
