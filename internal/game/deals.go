package game

import (
	"github.com/wfunc/statecraft/internal/errors"
	"github.com/wfunc/statecraft/internal/game/rules"
)

// DealResolution 一个令牌的结算结果
type DealResolution struct {
	TokenID        string           `json:"tokenId"`
	Status         TokenStatus      `json:"status"`
	OwnerID        string           `json:"ownerId"`
	HolderID       string           `json:"holderId"`
	HolderChoice   rules.VoteChoice `json:"holderChoice"`
	ProposalPassed bool             `json:"proposalPassed"`
}

// GiveToken 把一枚未赠出的令牌交给其他玩家
func GiveToken(s *RoomState, ownerID, targetID string) (*RoomState, SupportToken, error) {
	if !s.Playing() {
		return s, SupportToken{}, errors.New(errors.ErrGameNotStarted)
	}
	if s.player(ownerID) == nil {
		return s, SupportToken{}, errors.New(errors.ErrPlayerNotFound, ownerID)
	}
	if targetID == ownerID || s.player(targetID) == nil {
		return s, SupportToken{}, errors.New(errors.ErrInvalidTarget, targetID)
	}

	idx := -1
	for i, t := range s.Tokens {
		if t.OwnerID == ownerID && t.Status == TokenActive && !t.Assigned() {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s, SupportToken{}, errors.New(errors.ErrNoTokenAvailable)
	}

	next := s.next()
	next.Tokens[idx].HeldByID = targetID
	next.refreshOwnTokens()
	return next, next.Tokens[idx], nil
}

// ownerInterest 令牌主人的立场：行动玩家支持自己的提案，其余看本人的赞成或反对票
func ownerInterest(ownerID, activePlayerID string, votes map[string]rules.Vote) (rules.VoteChoice, bool) {
	if ownerID == activePlayerID {
		return rules.VoteYes, true
	}
	v, ok := votes[ownerID]
	if !ok || v.Choice == rules.VoteAbstain {
		return "", false
	}
	return v.Choice, true
}

// ResolveDeals 结算本轮持有者已投票的有效令牌
// 持有者投出与主人立场相反的票即违约：主人+1，持有者-1（不低于0）；否则守约。
// 已结算的令牌不再变化。
func ResolveDeals(s *RoomState, votes []rules.Vote, activePlayerID string, proposalPassed bool) (*RoomState, []DealResolution, error) {
	byPlayer := make(map[string]rules.Vote, len(votes))
	for _, v := range votes {
		byPlayer[v.PlayerID] = v
	}

	var results []DealResolution
	next := s.next()
	for i := range next.Tokens {
		t := &next.Tokens[i]
		if t.Status != TokenActive || !t.Assigned() {
			continue
		}
		hv, voted := byPlayer[t.HeldByID]
		if !voted {
			continue
		}

		t.Status = TokenHonored
		if interest, known := ownerInterest(t.OwnerID, activePlayerID, byPlayer); known &&
			hv.Choice != rules.VoteAbstain && hv.Choice != interest {
			t.Status = TokenBroken
			owner, holder := next.player(t.OwnerID), next.player(t.HeldByID)
			var ownerDelta, holderDelta int
			if owner != nil {
				ownerDelta = adjustInfluence(owner, 1)
			}
			if holder != nil {
				holderDelta = adjustInfluence(holder, -1)
			}
			if next.LastResolution != nil {
				next.LastResolution.InfluenceChanges[t.OwnerID] += ownerDelta
				next.LastResolution.InfluenceChanges[t.HeldByID] += holderDelta
			}
		}

		results = append(results, DealResolution{
			TokenID:        t.ID,
			Status:         t.Status,
			OwnerID:        t.OwnerID,
			HolderID:       t.HeldByID,
			HolderChoice:   hv.Choice,
			ProposalPassed: proposalPassed,
		})
	}

	if len(results) == 0 {
		return s, nil, nil
	}
	if next.LastResolution != nil {
		next.LastResolution.Deals = append(next.LastResolution.Deals, results...)
	}
	return next, results, nil
}
