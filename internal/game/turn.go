package game

import (
	"time"

	"github.com/wfunc/statecraft/internal/content"
	"github.com/wfunc/statecraft/internal/errors"
	"github.com/wfunc/statecraft/internal/game/rules"
)

func requireActive(s *RoomState, playerID string, phases ...Phase) error {
	if !s.Playing() {
		if s.Over() {
			return errors.New(errors.ErrGameOver)
		}
		return errors.New(errors.ErrGameNotStarted)
	}
	if s.player(playerID) == nil {
		return errors.New(errors.ErrPlayerNotFound, playerID)
	}
	if !phaseIn(s.Phase, phases) {
		return errors.Newf(errors.ErrWrongPhase, "当前阶段 %s", s.Phase)
	}
	if playerID != s.ActivePlayerID {
		return errors.New(errors.ErrNotActivePlayer)
	}
	return nil
}

func phaseIn(p Phase, phases []Phase) bool {
	for _, want := range phases {
		if p == want {
			return true
		}
	}
	return false
}

// PerformDiceRoll 行动玩家掷骰，waiting -> rolling -> drawing
func PerformDiceRoll(s *RoomState, playerID string, roller rules.Roller) (*RoomState, DiceRoll, error) {
	if err := requireActive(s, playerID, PhaseWaiting); err != nil {
		return s, DiceRoll{}, err
	}

	next := s.next()
	next.Phase = PhaseRolling

	roll := roller.Roll(next.Settings.DieSides)
	result := DiceRoll{
		PlayerID:     playerID,
		Roll:         roll,
		Modifier:     rules.DiceModifier(next.Nation, next.Settings.Thresholds),
		ModifiedRoll: rules.ModifiedRoll(roll, next.Nation, next.Settings.Thresholds),
	}
	next.LastRoll = &result
	next.Phase = PhaseDrawing
	return next, result, nil
}

// SetCurrentCard 放入抽到的决策卡并开启讨论窗口
func SetCurrentCard(s *RoomState, card content.DecisionCard, now time.Time) (*RoomState, time.Time, error) {
	if !s.Playing() {
		return s, time.Time{}, errors.New(errors.ErrGameNotStarted)
	}
	if s.Phase != PhaseDrawing {
		return s, time.Time{}, errors.Newf(errors.ErrWrongPhase, "当前阶段 %s", s.Phase)
	}

	next := s.next()
	next.CurrentCard = card.Clone()
	next.Phase = PhaseReviewing

	endsAt := now.Add(next.Settings.DeliberationDuration)
	next.TimerEndAt = timePtr(endsAt)
	next.Phase = PhaseDeliberating
	return next, endsAt, nil
}

// EndDeliberation 讨论时间结束，进入提案阶段
func EndDeliberation(s *RoomState) (*RoomState, error) {
	if !s.Playing() || s.Phase != PhaseDeliberating {
		return s, errors.Newf(errors.ErrWrongPhase, "当前阶段 %s", s.Phase)
	}
	next := s.next()
	next.Phase = PhaseProposing
	next.TimerEndAt = nil
	return next, nil
}

// ProposeOption 行动玩家提出选项，进入投票
func ProposeOption(s *RoomState, playerID, optionID string) (*RoomState, content.Option, error) {
	if err := requireActive(s, playerID, PhaseReviewing, PhaseDeliberating, PhaseProposing); err != nil {
		return s, content.Option{}, err
	}
	if s.CurrentCard == nil {
		return s, content.Option{}, errors.New(errors.ErrNoCurrentCard)
	}
	option, ok := s.CurrentCard.Option(optionID)
	if !ok {
		return s, content.Option{}, errors.New(errors.ErrInvalidOption, optionID)
	}

	next := s.next()
	next.CurrentProposal = optionID
	next.Phase = PhaseVoting
	next.TimerEndAt = nil
	next.PendingVotes = make(map[string]rules.Vote)
	return next, option, nil
}

// CastVote 投票；返回是否所有应投票玩家都已投票
func CastVote(s *RoomState, vote rules.Vote) (*RoomState, bool, error) {
	if !s.Playing() {
		return s, false, errors.New(errors.ErrGameNotStarted)
	}
	if s.Phase != PhaseVoting {
		return s, false, errors.Newf(errors.ErrWrongPhase, "当前阶段 %s", s.Phase)
	}
	p := s.player(vote.PlayerID)
	if p == nil || !p.IsConnected {
		return s, false, errors.New(errors.ErrPlayerNotFound, vote.PlayerID)
	}
	if _, voted := s.PendingVotes[vote.PlayerID]; voted {
		return s, false, errors.New(errors.ErrAlreadyVoted)
	}
	if !vote.Choice.Valid() || vote.InfluenceSpent < 0 {
		return s, false, errors.Newf(errors.ErrInvalidVote, "choice=%s spent=%d", vote.Choice, vote.InfluenceSpent)
	}
	if vote.InfluenceSpent > p.Influence {
		return s, false, errors.Newf(errors.ErrInsufficientInfluence, "需要 %d，当前 %d", vote.InfluenceSpent, p.Influence)
	}

	next := s.next()
	next.PendingVotes[vote.PlayerID] = vote
	return next, AllVotesIn(next), nil
}

// AllVotesIn 所有在线且未挂机的玩家都已投票
func AllVotesIn(s *RoomState) bool {
	if s.Phase != PhaseVoting {
		return false
	}
	for _, p := range s.Players {
		if !p.IsConnected || s.AFKPlayers[p.ID] {
			continue
		}
		if _, ok := s.PendingVotes[p.ID]; !ok {
			return false
		}
	}
	return true
}

// ResolveVotes 揭晓并结算投票
// 通过时应用选项的国家变化；计算每名玩家的移动；扣除投入的影响力。
// PendingVotes 不在这里清空。
func ResolveVotes(s *RoomState) (*RoomState, *TurnResolution, error) {
	if !s.Playing() {
		return s, nil, errors.New(errors.ErrGameNotStarted)
	}
	if s.Phase != PhaseVoting {
		return s, nil, errors.Newf(errors.ErrWrongPhase, "当前阶段 %s", s.Phase)
	}
	if s.CurrentCard == nil {
		return s, nil, errors.New(errors.ErrNoCurrentCard)
	}
	option, ok := s.CurrentCard.Option(s.CurrentProposal)
	if !ok {
		return s, nil, errors.New(errors.ErrInvalidOption, s.CurrentProposal)
	}

	next := s.next()
	next.Phase = PhaseRevealing

	votes := next.orderedVotes()
	tally := rules.Tally(votes)
	before := next.Nation
	if tally.Passed {
		next.Nation = next.Nation.Apply(option.Effect)
	}

	roll := 0
	if next.LastRoll != nil && next.LastRoll.PlayerID == next.ActivePlayerID {
		roll = next.LastRoll.Roll
	}

	resolution := &TurnResolution{
		Turn:             next.CurrentTurn,
		ActivePlayerID:   next.ActivePlayerID,
		OptionID:         option.ID,
		Votes:            votes,
		Tally:            tally,
		NationBefore:     before,
		NationAfter:      next.Nation,
		Movements:        make(map[string]rules.Movement, len(next.Players)),
		InfluenceChanges: make(map[string]int, len(next.Players)),
	}

	next.Phase = PhaseResolving
	for i := range next.Players {
		p := &next.Players[i]
		m := rules.CalculateMovement(rules.MovementInput{
			IsActive:       p.ID == next.ActivePlayerID,
			Roll:           roll,
			Ideology:       p.Ideology,
			Influence:      p.Influence,
			Aligned:        option.Aligned,
			Opposed:        option.Opposed,
			ProposalPassed: tally.Passed,
			Nation:         before,
		}, next.Settings.Thresholds)
		p.Position = rules.ApplyMovement(p.Position, m.Total, next.Settings.PathLength)
		resolution.Movements[p.ID] = m

		delta := 0
		if v, ok := next.PendingVotes[p.ID]; ok {
			delta -= v.InfluenceSpent
		}
		if tally.Passed && p.ID == next.ActivePlayerID {
			delta += next.Settings.ProposerPassBonus
		}
		if delta != 0 {
			resolution.InfluenceChanges[p.ID] += adjustInfluence(p, delta)
		}
	}

	next.LastResolution = resolution
	return next, resolution.clone(), nil
}

// adjustInfluence 调整影响力（不低于0），返回实际变化量
func adjustInfluence(p *Player, delta int) int {
	before := p.Influence
	p.Influence += delta
	if p.Influence < 0 {
		p.Influence = 0
	}
	return p.Influence - before
}
