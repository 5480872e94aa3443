package room

import (
	"sync"
	"time"
)

// TimerKind 房间计时器类型，同一类型同时只有一个有效计时器
type TimerKind string

const (
	TimerResultsTimeout TimerKind = "resultsTimeout"
	TimerAFKPoll        TimerKind = "afkPoll"
	TimerCrisisResolve  TimerKind = "crisisResolve"
	TimerCrisisContinue TimerKind = "crisisContinue"
	TimerCrisisWindow   TimerKind = "crisisWindow"
	TimerDeliberation   TimerKind = "deliberation"
	TimerRoomExpiry     TimerKind = "roomExpiry"
)

// FireFunc 计时器到期回调，在计时器自己的 goroutine 中调用
type FireFunc func(kind TimerKind, token uint64)

// Scheduler 房间计时器
//
// Arm 覆盖同类型的旧计时器并返回新令牌；到期时以令牌回调。
// Claim 只对当前令牌返回 true 且只返回一次，过期令牌一律返回 false。
type Scheduler interface {
	Arm(kind TimerKind, d time.Duration) uint64
	Disarm(kind TimerKind)
	Claim(kind TimerKind, token uint64) bool
	Armed(kind TimerKind) bool
	Stop()
}

type armedTimer struct {
	token uint64
	timer *time.Timer
}

// TimerScheduler 基于 time.AfterFunc 的调度器
type TimerScheduler struct {
	mu      sync.Mutex
	fire    FireFunc
	seq     uint64
	timers  map[TimerKind]armedTimer
	stopped bool
}

// NewTimerScheduler 创建调度器
func NewTimerScheduler(fire FireFunc) Scheduler {
	return &TimerScheduler{
		fire:   fire,
		timers: make(map[TimerKind]armedTimer),
	}
}

// Arm 启动计时器
func (s *TimerScheduler) Arm(kind TimerKind, d time.Duration) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return 0
	}
	if old, ok := s.timers[kind]; ok {
		old.timer.Stop()
	}
	s.seq++
	token := s.seq
	s.timers[kind] = armedTimer{
		token: token,
		timer: time.AfterFunc(d, func() { s.fire(kind, token) }),
	}
	return token
}

// Disarm 取消计时器
func (s *TimerScheduler) Disarm(kind TimerKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[kind]; ok {
		t.timer.Stop()
		delete(s.timers, kind)
	}
}

// Claim 认领到期事件
func (s *TimerScheduler) Claim(kind TimerKind, token uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.timers[kind]
	if !ok || t.token != token {
		return false
	}
	delete(s.timers, kind)
	return true
}

// Armed 是否有有效计时器
func (s *TimerScheduler) Armed(kind TimerKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[kind]
	return ok
}

// Stop 取消全部计时器，之后的 Arm 无效
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for kind, t := range s.timers {
		t.timer.Stop()
		delete(s.timers, kind)
	}
	s.stopped = true
}
