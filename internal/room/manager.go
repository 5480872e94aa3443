package room

import (
	"crypto/rand"
	"math/big"
	"sort"
	"strings"
	"sync"

	"github.com/wfunc/statecraft/internal/errors"
	"go.uber.org/zap"
)

// CodeLength 房间码长度
const CodeLength = 6

// codeAlphabet 去掉了容易混淆的 0/O/1/I
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Manager 按房间码管理房间
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	opts  Options
	log   *zap.Logger
}

// NewManager 创建管理器
func NewManager(opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		rooms: make(map[string]*Room),
		opts:  opts,
		log:   opts.Logger,
	}
}

// NormalizeCode 统一为大写；格式不合法时返回错误
func NormalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != CodeLength {
		return "", errors.Newf(errors.ErrInvalidParam, "房间码必须为%d位", CodeLength)
	}
	for _, ch := range code {
		if !strings.ContainsRune(codeAlphabet, ch) {
			return "", errors.Newf(errors.ErrInvalidParam, "房间码包含非法字符 %q", ch)
		}
	}
	return code, nil
}

// Create 用随机房间码创建房间
func (m *Manager) Create() (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for attempt := 0; attempt < 16; attempt++ {
		code, err := randomCode()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrUnknown, "生成房间码失败")
		}
		if _, exists := m.rooms[code]; !exists {
			return m.startLocked(code), nil
		}
	}
	return nil, errors.New(errors.ErrAlreadyExists, "房间码冲突")
}

// GetOrCreate 按房间码取房间，不存在时创建
func (m *Manager) GetOrCreate(code string) (*Room, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	r, ok := m.rooms[code]
	m.mu.RUnlock()
	if ok {
		return r, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[code]; ok {
		return r, nil
	}
	return m.startLocked(code), nil
}

// Get 按房间码取房间
func (m *Manager) Get(code string) (*Room, bool) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[code]
	return r, ok
}

// List 所有房间的概况，按创建时间排序
func (m *Manager) List() []Summary {
	m.mu.RLock()
	out := make([]Summary, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r.Summary())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Code < out[j].Code
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Count 房间数量
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Shutdown 关闭全部房间并等待结束
func (m *Manager) Shutdown() {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	for _, r := range rooms {
		r.Stop()
	}
	for _, r := range rooms {
		<-r.Done()
	}
	m.log.Info("所有房间已关闭", zap.Int("count", len(rooms)))
}

// startLocked 创建并启动房间，调用方持有写锁
func (m *Manager) startLocked(code string) *Room {
	r := New(code, m.opts)
	r.onClose = m.remove
	m.rooms[code] = r
	go r.Run()
	m.log.Info("房间已创建", zap.String("room", code))
	return r
}

// remove 房间关闭回调；只删除同一个实例
func (m *Manager) remove(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[code]; ok && r.closed.Load() {
		delete(m.rooms, code)
	}
}

func randomCode() (string, error) {
	buf := make([]byte, CodeLength)
	limit := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
