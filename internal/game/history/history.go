// Package history 回合历史记录，按回合号追加或覆盖
package history

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/wfunc/statecraft/internal/game/rules"
)

// Outcome 回合结果
type Outcome string

const (
	OutcomePassed Outcome = "passed"
	OutcomeFailed Outcome = "failed"
)

// VoteRecord 单张选票记录
type VoteRecord struct {
	PlayerID       string           `json:"playerId"`
	Choice         rules.VoteChoice `json:"choice"`
	InfluenceSpent int              `json:"influenceSpent"`
	Weight         int              `json:"weight"`
}

// Input 构造历史记录所需的输入
type Input struct {
	Turn             int
	ActivePlayerID   string
	CardID           string
	CardTitle        string
	OptionID         string
	OptionLabel      string
	Votes            []rules.Vote
	NationBefore     rules.Nation
	NationAfter      rules.Nation
	Movements        map[string]rules.Movement
	InfluenceChanges map[string]int
	RecordedAt       time.Time
}

// Entry 一个回合的不可变快照
type Entry struct {
	Turn             int                       `json:"turn"`
	ActivePlayerID   string                    `json:"activePlayerId"`
	CardID           string                    `json:"cardId"`
	CardTitle        string                    `json:"cardTitle"`
	OptionID         string                    `json:"optionId"`
	OptionLabel      string                    `json:"optionLabel"`
	Votes            []VoteRecord              `json:"votes"`
	TotalYes         int                       `json:"totalYes"`
	TotalNo          int                       `json:"totalNo"`
	TotalAbstain     int                       `json:"totalAbstain"`
	Outcome          Outcome                   `json:"outcome"`
	Margin           string                    `json:"margin"`
	NationBefore     rules.Nation              `json:"nationBefore"`
	NationAfter      rules.Nation              `json:"nationAfter"`
	NationDelta      rules.Delta               `json:"nationDelta"`
	Movements        map[string]rules.Movement `json:"movements"`
	InfluenceChanges map[string]int            `json:"influenceChanges"`
	RecordedAt       time.Time                 `json:"recordedAt"`
}

// Passed 提案是否通过
func (e Entry) Passed() bool {
	return e.Outcome == OutcomePassed
}

// NewEntry 由输入构造记录，所有集合都会被复制
func NewEntry(in Input) Entry {
	tally := rules.Tally(in.Votes)

	votes := make([]VoteRecord, 0, len(in.Votes))
	for _, v := range in.Votes {
		votes = append(votes, VoteRecord{
			PlayerID:       v.PlayerID,
			Choice:         v.Choice,
			InfluenceSpent: v.InfluenceSpent,
			Weight:         v.Weight(),
		})
	}

	movements := make(map[string]rules.Movement, len(in.Movements))
	for id, m := range in.Movements {
		movements[id] = m
	}
	influence := make(map[string]int, len(in.InfluenceChanges))
	for id, d := range in.InfluenceChanges {
		influence[id] = d
	}

	outcome := OutcomeFailed
	if tally.Passed {
		outcome = OutcomePassed
	}

	return Entry{
		Turn:             in.Turn,
		ActivePlayerID:   in.ActivePlayerID,
		CardID:           in.CardID,
		CardTitle:        in.CardTitle,
		OptionID:         in.OptionID,
		OptionLabel:      in.OptionLabel,
		Votes:            votes,
		TotalYes:         tally.TotalYes,
		TotalNo:          tally.TotalNo,
		TotalAbstain:     tally.TotalAbstain,
		Outcome:          outcome,
		Margin:           tally.Margin(),
		NationBefore:     in.NationBefore,
		NationAfter:      in.NationAfter,
		NationDelta:      rules.Diff(in.NationBefore, in.NationAfter),
		Movements:        movements,
		InfluenceChanges: influence,
		RecordedAt:       in.RecordedAt,
	}
}

// Log 按回合号排序的历史记录
// 值语义：Upsert 返回新 Log，旧 Log 不变
type Log struct {
	entries []Entry
}

// Upsert 写入记录，同一回合号覆盖旧记录
func (l Log) Upsert(e Entry) Log {
	out := make([]Entry, 0, len(l.entries)+1)
	replaced := false
	for _, existing := range l.entries {
		if existing.Turn == e.Turn {
			out = append(out, e)
			replaced = true
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, e)
		sort.SliceStable(out, func(i, j int) bool { return out[i].Turn < out[j].Turn })
	}
	return Log{entries: out}
}

// Get 按回合号查询
func (l Log) Get(turn int) (Entry, bool) {
	for _, e := range l.entries {
		if e.Turn == turn {
			return e, true
		}
	}
	return Entry{}, false
}

// Entries 全部记录（副本）
func (l Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len 记录数
func (l Log) Len() int {
	return len(l.entries)
}

// MarshalJSON 序列化为记录数组
func (l Log) MarshalJSON() ([]byte, error) {
	if l.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.entries)
}

// UnmarshalJSON 从记录数组恢复，客户端快照解码时使用
func (l *Log) UnmarshalJSON(data []byte) error {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	l.entries = entries
	return nil
}
