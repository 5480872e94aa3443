package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/statecraft/internal/errors"
)

func TestZoneFor(t *testing.T) {
	tests := []struct {
		position int
		want     Zone
	}{
		{0, ZoneFoundation},
		{6, ZoneFoundation},
		{7, ZoneDevelopment},
		{13, ZoneDevelopment},
		{14, ZoneReform},
		{20, ZoneReform},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ZoneFor(tt.position, 20), "position %d", tt.position)
	}
	assert.Equal(t, ZoneFoundation, ZoneFor(5, 0))
}

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)
	assert.NotEmpty(t, c.Cards)
	assert.NotEmpty(t, c.Crises)

	for _, card := range c.Cards {
		assert.True(t, card.Zone.Valid(), card.ID)
		assert.GreaterOrEqual(t, len(card.Options), 2, card.ID)
		assert.LessOrEqual(t, len(card.Options), 3, card.ID)
	}
}

func TestDeck_DrawCyclesWithoutRepeats(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)
	deck := c.NewDeck(42)

	n := len(c.byZone[ZoneDevelopment])
	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		card, err := deck.Draw(ZoneDevelopment)
		require.NoError(t, err)
		assert.Equal(t, ZoneDevelopment, card.Zone)
		assert.False(t, seen[card.ID], "一轮内重复: %s", card.ID)
		seen[card.ID] = true
	}

	// 抽完后重新洗牌
	card, err := deck.Draw(ZoneDevelopment)
	require.NoError(t, err)
	assert.True(t, seen[card.ID])
}

func TestDeck_DrawReturnsCopy(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)
	deck := c.NewDeck(1)

	card, err := deck.Draw(ZoneFoundation)
	require.NoError(t, err)
	card.Options[0].Label = "changed"

	for _, original := range c.Cards {
		if original.ID == card.ID {
			assert.NotEqual(t, "changed", original.Options[0].Label)
		}
	}
}

func TestDeck_UnknownZone(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)
	_, err = c.NewDeck(1).Draw(Zone("nowhere"))
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestParseCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"单选项", `
cards:
  - id: a
    zone: foundation
    options:
      - id: x
`},
		{"未知字段", `
cards: []
bogus: 1
`},
		{"无效意识形态", `
cards:
  - id: a
    zone: foundation
    options:
      - id: x
        aligned: [anarchist]
      - id: y
`},
		{"缺少区域", `
cards:
  - id: a
    zone: foundation
    options: [{id: x}, {id: y}]
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalogFile(t *testing.T) {
	c, err := LoadCatalogFile("")
	require.NoError(t, err)
	assert.NotEmpty(t, c.Cards)

	path := filepath.Join(t.TempDir(), "deck.yaml")
	require.NoError(t, os.WriteFile(path, defaultDeck, 0o644))
	c, err = LoadCatalogFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, c.Crises)

	_, err = LoadCatalogFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, errors.ErrConfigLoad))
}

func TestDecisionCard_Option(t *testing.T) {
	card := &DecisionCard{Options: []Option{{ID: "a"}, {ID: "b"}}}
	o, ok := card.Option("b")
	assert.True(t, ok)
	assert.Equal(t, "b", o.ID)
	_, ok = card.Option("z")
	assert.False(t, ok)
	_, ok = (*DecisionCard)(nil).Option("a")
	assert.False(t, ok)
}
