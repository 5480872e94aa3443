package crisis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/statecraft/internal/errors"
	"github.com/wfunc/statecraft/internal/game/rules"
)

func testDefinition() Definition {
	return Definition{
		ID:                       "budget-shortfall",
		Title:                    "财政缺口",
		Severity:                 SeverityMajor,
		Dimension:                DimensionBudget,
		ContributionThreshold:    5,
		MaxContributionPerPlayer: 3,
		SuccessEffect:            rules.Delta{Budget: 3},
		FailureEffect:            rules.Delta{Budget: -2, Stability: -1},
		IdeologyBonus:            map[rules.Ideology]float64{rules.IdeologyLibertarian: 2},
	}
}

func TestShouldTrigger(t *testing.T) {
	assert.True(t, ShouldTrigger(rules.Nation{Budget: -2, Stability: 4}, -2, nil))
	assert.True(t, ShouldTrigger(rules.Nation{Budget: 4, Stability: -3}, -2, nil))
	assert.False(t, ShouldTrigger(rules.Nation{Budget: -1, Stability: 0}, -2, nil))

	active := New("c1", testDefinition(), 1, 3)
	assert.False(t, ShouldTrigger(rules.Nation{Budget: -4}, -2, active))
	active.Resolved = true
	assert.True(t, ShouldTrigger(rules.Nation{Budget: -4}, -2, active))
}

func TestSelect(t *testing.T) {
	catalog := []Definition{
		{ID: "b1", Dimension: DimensionBudget},
		{ID: "s1", Dimension: DimensionStability},
		{ID: "s2", Dimension: DimensionStability},
	}

	def, ok := Select(rules.Nation{Budget: -3, Stability: 2}, catalog, 4)
	require.True(t, ok)
	assert.Equal(t, "b1", def.ID)

	def, _ = Select(rules.Nation{Budget: 2, Stability: -3}, catalog, 1)
	assert.Equal(t, "s2", def.ID)

	_, ok = Select(rules.Nation{}, nil, 0)
	assert.False(t, ok)
}

// 贡献 {p1:2, p2:3} 恰好达到阈值 5，结算成功
func TestContributeAndResolve_Success(t *testing.T) {
	c := New("c1", testDefinition(), 3, 3)

	r, err := Contribute(c, "p1", rules.IdeologyProgressive, 5, 2)
	require.NoError(t, err)
	assert.False(t, r.ThresholdMet)
	assert.Equal(t, 2, r.EffectiveTotal)

	r, err = Contribute(c, "p2", rules.IdeologyPopulist, 5, 3)
	require.NoError(t, err)
	assert.True(t, r.ThresholdMet)
	assert.Equal(t, 5, r.EffectiveTotal)
	assert.True(t, NeedsResolution(c))

	out, err := Resolve(c, 4)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "success", out.Result)
	assert.Equal(t, rules.Delta{Budget: 3}, out.Effect)
	assert.Equal(t, map[string]int{"p1": 2, "p2": 3}, out.Contributions)
	assert.True(t, c.Resolved)

	_, err = Resolve(c, 4)
	assert.True(t, errors.Is(err, errors.ErrCrisisResolved))
}

func TestContribute_IdeologyBonus(t *testing.T) {
	c := New("c1", testDefinition(), 1, 3)
	r, err := Contribute(c, "p1", rules.IdeologyLibertarian, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, 6, r.Effective)
	assert.Equal(t, 3, r.PlayerTotal)
	assert.Equal(t, 3, c.RawTotal())
	assert.True(t, r.ThresholdMet)
}

func TestContribute_Rejections(t *testing.T) {
	c := New("c1", testDefinition(), 1, 3)

	tests := []struct {
		name      string
		influence int
		amount    int
		code      errors.ErrorCode
	}{
		{"零贡献", 5, 0, errors.ErrInvalidContribution},
		{"负数贡献", 5, -1, errors.ErrInvalidContribution},
		{"超过上限", 5, 4, errors.ErrContributionCap},
		{"影响力不足", 1, 2, errors.ErrInsufficientInfluence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Contribute(c, "p1", rules.IdeologyPopulist, tt.influence, tt.amount)
			assert.True(t, errors.Is(err, tt.code))
			assert.Empty(t, c.Contributions)
			assert.Zero(t, c.EffectiveTotal)
		})
	}

	_, err := Contribute(c, "p1", rules.IdeologyPopulist, 5, 2)
	require.NoError(t, err)
	_, err = Contribute(c, "p1", rules.IdeologyPopulist, 5, 2)
	assert.True(t, errors.Is(err, errors.ErrContributionCap))
	assert.Equal(t, 2, c.Contributions["p1"])
}

func TestAdvanceTurnAndFailure(t *testing.T) {
	c := New("c1", testDefinition(), 1, 2)
	assert.Equal(t, 1, AdvanceTurn(c))
	assert.False(t, NeedsResolution(c))
	assert.Equal(t, 0, AdvanceTurn(c))
	assert.True(t, NeedsResolution(c))
	assert.Equal(t, 0, AdvanceTurn(c))

	out, err := Resolve(c, 3)
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, "failure", out.Result)
	assert.Equal(t, rules.Delta{Budget: -2, Stability: -1}, out.Effect)
}

func TestResolve_NoCrisis(t *testing.T) {
	_, err := Resolve(nil, 1)
	assert.True(t, errors.Is(err, errors.ErrNoActiveCrisis))
	_, err = Contribute(nil, "p1", "", 1, 1)
	assert.True(t, errors.Is(err, errors.ErrNoActiveCrisis))
}

func TestClone(t *testing.T) {
	c := New("c1", testDefinition(), 1, 3)
	c.Contributions["p1"] = 1
	cp := c.Clone()
	cp.Contributions["p1"] = 3
	cp.Definition.IdeologyBonus[rules.IdeologyPopulist] = 5
	assert.Equal(t, 1, c.Contributions["p1"])
	assert.NotContains(t, c.Definition.IdeologyBonus, rules.IdeologyPopulist)
	assert.Nil(t, (*Crisis)(nil).Clone())
}
