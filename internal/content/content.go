// Package content 决策卡与危机目录
package content

import (
	"bytes"
	_ "embed"
	"fmt"
	"math/rand"
	"os"
	"sync"

	"github.com/wfunc/statecraft/internal/errors"
	"github.com/wfunc/statecraft/internal/game/crisis"
	"github.com/wfunc/statecraft/internal/game/rules"
	"gopkg.in/yaml.v3"
)

//go:embed data/deck.yaml
var defaultDeck []byte

// Zone 棋盘区域
type Zone string

const (
	ZoneFoundation  Zone = "foundation"  // 建国期
	ZoneDevelopment Zone = "development" // 发展期
	ZoneReform      Zone = "reform"      // 改革期
)

var zones = []Zone{ZoneFoundation, ZoneDevelopment, ZoneReform}

// Valid 是否为已知区域
func (z Zone) Valid() bool {
	for _, known := range zones {
		if z == known {
			return true
		}
	}
	return false
}

// ZoneFor 按位置把路径均分为三段
func ZoneFor(position, pathLength int) Zone {
	if pathLength <= 0 {
		return ZoneFoundation
	}
	switch third := position * 3 / pathLength; {
	case third <= 0:
		return ZoneFoundation
	case third == 1:
		return ZoneDevelopment
	default:
		return ZoneReform
	}
}

// Option 决策选项
type Option struct {
	ID          string           `json:"id" yaml:"id"`
	Label       string           `json:"label" yaml:"label"`
	Description string           `json:"description,omitempty" yaml:"description"`
	Effect      rules.Delta      `json:"effect" yaml:"effect"`
	Aligned     []rules.Ideology `json:"aligned" yaml:"aligned"`
	Opposed     []rules.Ideology `json:"opposed" yaml:"opposed"`
}

// Perspective 某意识形态对卡牌的看法
type Perspective struct {
	Ideology rules.Ideology `json:"ideology" yaml:"ideology"`
	Text     string         `json:"text" yaml:"text"`
}

// DecisionCard 决策卡
type DecisionCard struct {
	ID             string        `json:"id" yaml:"id"`
	Zone           Zone          `json:"zone" yaml:"zone"`
	Category       string        `json:"category" yaml:"category"`
	Title          string        `json:"title" yaml:"title"`
	Description    string        `json:"description" yaml:"description"`
	Options        []Option      `json:"options" yaml:"options"`
	HistoricalNote string        `json:"historicalNote,omitempty" yaml:"historical_note"`
	Perspectives   []Perspective `json:"perspectives,omitempty" yaml:"perspectives"`
}

// Option 按ID查找选项
func (c *DecisionCard) Option(id string) (Option, bool) {
	if c == nil {
		return Option{}, false
	}
	for _, o := range c.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// Clone 深拷贝
func (c *DecisionCard) Clone() *DecisionCard {
	if c == nil {
		return nil
	}
	out := *c
	out.Options = make([]Option, len(c.Options))
	for i, o := range c.Options {
		o.Aligned = append([]rules.Ideology(nil), o.Aligned...)
		o.Opposed = append([]rules.Ideology(nil), o.Opposed...)
		out.Options[i] = o
	}
	out.Perspectives = append([]Perspective(nil), c.Perspectives...)
	return &out
}

// Provider 内容提供者
type Provider interface {
	Draw(zone Zone) (DecisionCard, error)
}

// Catalog 不可变的卡牌与危机目录
type Catalog struct {
	Cards  []DecisionCard      `yaml:"cards"`
	Crises []crisis.Definition `yaml:"crises"`

	byZone map[Zone][]int
}

// DefaultCatalog 加载内置目录
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultDeck)
}

// LoadCatalogFile 从文件加载目录，path 为空时使用内置目录
func LoadCatalogFile(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "读取卡组文件 %s", path)
	}
	return ParseCatalog(data)
}

// ParseCatalog 解析并校验 YAML 目录
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "解析卡组失败")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	c.index()
	return &c, nil
}

func (c *Catalog) validate() error {
	seen := make(map[string]bool)
	for _, card := range c.Cards {
		if card.ID == "" || seen[card.ID] {
			return errors.Newf(errors.ErrConfigValidate, "卡牌ID为空或重复: %q", card.ID)
		}
		seen[card.ID] = true
		if !card.Zone.Valid() {
			return errors.Newf(errors.ErrConfigValidate, "卡牌 %s 区域无效: %s", card.ID, card.Zone)
		}
		if n := len(card.Options); n < 2 || n > 3 {
			return errors.Newf(errors.ErrConfigValidate, "卡牌 %s 需要2-3个选项，实际 %d", card.ID, n)
		}
		optionIDs := make(map[string]bool)
		for _, o := range card.Options {
			if o.ID == "" || optionIDs[o.ID] {
				return errors.Newf(errors.ErrConfigValidate, "卡牌 %s 选项ID为空或重复", card.ID)
			}
			optionIDs[o.ID] = true
			for _, i := range append(append([]rules.Ideology(nil), o.Aligned...), o.Opposed...) {
				if !i.Valid() {
					return errors.Newf(errors.ErrConfigValidate, "卡牌 %s 意识形态无效: %s", card.ID, i)
				}
			}
		}
	}
	for _, z := range zones {
		found := false
		for _, card := range c.Cards {
			if card.Zone == z {
				found = true
				break
			}
		}
		if !found {
			return errors.Newf(errors.ErrConfigValidate, "区域 %s 没有卡牌", z)
		}
	}
	for _, def := range c.Crises {
		if def.ID == "" || def.ContributionThreshold <= 0 || def.MaxContributionPerPlayer <= 0 {
			return errors.Newf(errors.ErrConfigValidate, "危机定义无效: %q", def.ID)
		}
		if def.Dimension != crisis.DimensionBudget && def.Dimension != crisis.DimensionStability {
			return errors.Newf(errors.ErrConfigValidate, "危机 %s 维度无效: %s", def.ID, def.Dimension)
		}
	}
	return nil
}

func (c *Catalog) index() {
	c.byZone = make(map[Zone][]int)
	for i, card := range c.Cards {
		c.byZone[card.Zone] = append(c.byZone[card.Zone], i)
	}
}

// NewDeck 为一个房间创建独立的抽牌状态
func (c *Catalog) NewDeck(seed int64) *Deck {
	return &Deck{
		catalog: c,
		rng:     rand.New(rand.NewSource(seed)),
		piles:   make(map[Zone][]int),
	}
}

// Deck 按区域洗牌抽取，一轮抽完前不重复
type Deck struct {
	mu      sync.Mutex
	catalog *Catalog
	rng     *rand.Rand
	piles   map[Zone][]int
}

// Draw 从指定区域抽一张牌
func (d *Deck) Draw(zone Zone) (DecisionCard, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pile := d.piles[zone]
	if len(pile) == 0 {
		all := d.catalog.byZone[zone]
		if len(all) == 0 {
			return DecisionCard{}, errors.New(errors.ErrNotFound, fmt.Sprintf("区域 %s 没有卡牌", zone))
		}
		pile = append([]int(nil), all...)
		d.rng.Shuffle(len(pile), func(i, j int) { pile[i], pile[j] = pile[j], pile[i] })
	}

	idx := pile[0]
	d.piles[zone] = pile[1:]
	return *d.catalog.Cards[idx].Clone(), nil
}
