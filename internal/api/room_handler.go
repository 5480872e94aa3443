package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/statecraft/internal/errors"
	"github.com/wfunc/statecraft/internal/room"
)

// RoomListResponse 房间列表
type RoomListResponse struct {
	Rooms []room.Summary `json:"rooms"`
	Total int            `json:"total"`
}

// listRooms 列出内存中的全部房间
func (r *Router) listRooms(c *gin.Context) {
	rooms := r.rooms.List()
	c.JSON(http.StatusOK, RoomListResponse{Rooms: rooms, Total: len(rooms)})
}

// createRoom 以随机房间码创建房间
func (r *Router) createRoom(c *gin.Context) {
	created, err := r.rooms.Create()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created.Summary())
}

// getRoom 房间概况
func (r *Router) getRoom(c *gin.Context) {
	code, err := room.NormalizeCode(c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	found, ok := r.rooms.Get(code)
	if !ok {
		respondError(c, errors.New(errors.ErrRoomNotFound, code))
		return
	}
	c.JSON(http.StatusOK, found.Summary())
}
