package game

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/statecraft/internal/errors"
	"github.com/wfunc/statecraft/internal/game/rules"
)

// AddPlayerToRoom 加入房间；第一名玩家成为房主
// 重连与重复加入的区分由会话层负责
func AddPlayerToRoom(s *RoomState, playerID, name string, now time.Time) (*RoomState, Player, error) {
	name = strings.TrimSpace(name)
	switch {
	case playerID == "" || name == "":
		return s, Player{}, errors.New(errors.ErrInvalidParam, "玩家ID和名称不能为空")
	case s.Status != StatusLobby:
		return s, Player{}, errors.New(errors.ErrGameAlreadyStarted)
	case s.indexOf(playerID) >= 0:
		return s, Player{}, errors.New(errors.ErrDuplicatePlayer, playerID)
	case len(s.Players) >= s.Settings.MaxPlayers:
		return s, Player{}, errors.Newf(errors.ErrRoomFull, "最多 %d 人", s.Settings.MaxPlayers)
	}

	next := s.next()
	p := Player{
		ID:             playerID,
		Name:           name,
		Influence:      s.Settings.StartingInfluence,
		IsConnected:    true,
		IsHost:         next.HostID() == "",
		LastActivityAt: now,
		JoinOrder:      next.nextJoinOrder,
	}
	next.nextJoinOrder++
	next.Players = append(next.Players, p)
	return next, p, nil
}

// RemovePlayer 大厅阶段离开房间，房主移交给下一位玩家
func RemovePlayer(s *RoomState, playerID string) (*RoomState, string, error) {
	idx := s.indexOf(playerID)
	if idx < 0 {
		return s, "", errors.New(errors.ErrPlayerNotFound, playerID)
	}
	if s.Status != StatusLobby {
		return s, "", errors.New(errors.ErrGameAlreadyStarted)
	}

	next := s.next()
	wasHost := next.Players[idx].IsHost
	next.Players = append(next.Players[:idx], next.Players[idx+1:]...)

	newHost := ""
	if wasHost && len(next.Players) > 0 {
		next.Players[0].IsHost = true
		newHost = next.Players[0].ID
	}
	return next, newHost, nil
}

// SetPlayerConnected 更新在线状态
// 断线时撤销该玩家未揭晓的选票和待确认状态
func SetPlayerConnected(s *RoomState, playerID string, connected bool, now time.Time) (*RoomState, error) {
	p := s.player(playerID)
	if p == nil {
		return s, errors.New(errors.ErrPlayerNotFound, playerID)
	}
	if p.IsConnected == connected {
		return s, nil
	}

	next := s.next()
	np := next.player(playerID)
	np.IsConnected = connected
	if connected {
		np.LastActivityAt = now
		delete(next.AFKPlayers, playerID)
	} else {
		delete(next.PendingVotes, playerID)
		delete(next.PendingAcknowledgments, playerID)
	}
	return next, nil
}

// SelectIdeology 选择意识形态；同一玩家重复选择同一意识形态为幂等操作
func SelectIdeology(s *RoomState, playerID string, ideology rules.Ideology) (*RoomState, error) {
	p := s.player(playerID)
	if p == nil {
		return s, errors.New(errors.ErrPlayerNotFound, playerID)
	}
	if s.Status != StatusLobby {
		return s, errors.New(errors.ErrGameAlreadyStarted)
	}
	if !ideology.Valid() {
		return s, errors.New(errors.ErrInvalidIdeology, string(ideology))
	}
	if p.Ideology == ideology {
		return s, nil
	}
	for _, other := range s.Players {
		if other.ID != playerID && other.IsConnected && other.Ideology == ideology {
			return s, errors.New(errors.ErrIdeologyTaken, string(ideology))
		}
	}

	next := s.next()
	next.player(playerID).Ideology = ideology
	return next, nil
}

// StartGame 房主开始游戏：人数达标且所有人已选择意识形态
func StartGame(s *RoomState, playerID string, now time.Time) (*RoomState, string, error) {
	if s.Status != StatusLobby {
		return s, "", errors.New(errors.ErrGameAlreadyStarted)
	}
	p := s.player(playerID)
	if p == nil {
		return s, "", errors.New(errors.ErrPlayerNotFound, playerID)
	}
	if !p.IsHost {
		return s, "", errors.New(errors.ErrNotHost)
	}
	if len(s.Players) < s.Settings.MinPlayers {
		return s, "", errors.Newf(errors.ErrNotEnoughPlayers, "至少 %d 人", s.Settings.MinPlayers)
	}
	for _, other := range s.Players {
		if other.Ideology == "" {
			return s, "", errors.New(errors.ErrIdeologyMissing, other.Name)
		}
	}

	next := s.next()
	next.Status = StatusPlaying
	next.Phase = PhaseWaiting
	next.CurrentTurn = 1
	next.ActivePlayerID = next.Players[0].ID

	next.Tokens = next.Tokens[:0]
	for i := range next.Players {
		next.Players[i].LastActivityAt = now
		for n := 0; n < next.Settings.TokensPerPlayer; n++ {
			next.Tokens = append(next.Tokens, SupportToken{
				ID:       uuid.NewString(),
				OwnerID:  next.Players[i].ID,
				HeldByID: next.Players[i].ID,
				Status:   TokenActive,
			})
		}
	}
	next.refreshOwnTokens()
	return next, next.ActivePlayerID, nil
}
