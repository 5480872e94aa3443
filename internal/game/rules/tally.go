package rules

import "fmt"

// TallyResult 计票结果
type TallyResult struct {
	TotalYes     int  `json:"totalYes"`
	TotalNo      int  `json:"totalNo"`
	TotalAbstain int  `json:"totalAbstain"`
	Passed       bool `json:"passed"`
}

// Tally 按票权计票，弃权不计入赞成与反对；平票不通过
func Tally(votes []Vote) TallyResult {
	var r TallyResult
	for _, v := range votes {
		switch v.Choice {
		case VoteYes:
			r.TotalYes += v.Weight()
		case VoteNo:
			r.TotalNo += v.Weight()
		case VoteAbstain:
			r.TotalAbstain += v.Weight()
		}
	}
	r.Passed = r.TotalYes > r.TotalNo
	return r
}

// Margin 票差字符串，如 "3-1"
func (r TallyResult) Margin() string {
	return fmt.Sprintf("%d-%d", r.TotalYes, r.TotalNo)
}
