package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/statecraft/internal/errors"
	"github.com/wfunc/statecraft/internal/game"
	"github.com/wfunc/statecraft/internal/models"
	"github.com/wfunc/statecraft/internal/repository"
)

// ArchiveListRequest 归档列表查询参数
type ArchiveListRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Status   string `form:"status" binding:"omitempty,oneof=finished collapsed"`
	Room     string `form:"room"`
}

// ArchiveListResponse 归档列表
type ArchiveListResponse struct {
	Games      []*models.GameArchive `json:"games"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	Total      int64                 `json:"total"`
	TotalPages int                   `json:"total_pages"`
}

// ArchiveDetailResponse 单局归档与复盘
type ArchiveDetailResponse struct {
	*models.GameArchive
	Debrief game.Debrief `json:"debrief"`
}

// listGames 分页查询已结束对局
func (r *Router) listGames(c *gin.Context) {
	if r.archives == nil {
		respondError(c, errors.New(errors.ErrNotImplemented, "对局归档未开启"))
		return
	}

	var req ArchiveListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrInvalidParam))
		return
	}

	p := repository.NewArchivePage(req.Page, req.PageSize)
	games, err := r.archives.List(c.Request.Context(), repository.ArchiveFilter{
		Status:   req.Status,
		RoomCode: req.Room,
	}, p)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ArchiveListResponse{
		Games:      games,
		Page:       p.Number,
		PageSize:   p.Size,
		Total:      p.Total,
		TotalPages: p.Pages(),
	})
}

// getGame 单局归档详情
func (r *Router) getGame(c *gin.Context) {
	if r.archives == nil {
		respondError(c, errors.New(errors.ErrNotImplemented, "对局归档未开启"))
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, errors.New(errors.ErrInvalidParam, "id"))
		return
	}

	archive, err := r.archives.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		respondError(c, err)
		return
	}
	debrief, err := r.archives.LoadDebrief(archive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ArchiveDetailResponse{GameArchive: archive, Debrief: debrief})
}
