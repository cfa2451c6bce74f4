// internal/services/progress_service.go
package services

import (
	"fmt"
	"sync"
	"time"
)

// 任务状态
const (
	ProgressIdle      = "idle"
	ProgressRunning   = "running"
	ProgressCompleted = "completed"
	ProgressFailed    = "failed"
)

// ProgressUpdate 推送给页面的进度更新
type ProgressUpdate struct {
	Progress int    `json:"progress"` // 进度百分比 (0-100)
	Message  string `json:"message"`  // 描述性消息
	Status   string `json:"status"`   // idle, running, completed, failed
	Stage    string `json:"stage,omitempty"`
	Topic    string `json:"topic,omitempty"`
	Turn     int    `json:"turn,omitempty"`
	Total    int    `json:"total,omitempty"`
	Speaker  string `json:"speaker,omitempty"`
}

// ProgressTracker 跟踪一个会话的生成进度
type ProgressTracker struct {
	SessionID   string
	current     ProgressUpdate
	StartTime   time.Time
	UpdateTime  time.Time
	subscribers map[chan ProgressUpdate]bool
	mutex       sync.Mutex
}

// ProgressService 管理所有会话的进度跟踪器
type ProgressService struct {
	trackers map[string]*ProgressTracker
	mutex    sync.RWMutex
}

// NewProgressService 创建进度服务实例
func NewProgressService() *ProgressService {
	return &ProgressService{
		trackers: make(map[string]*ProgressTracker),
	}
}

// Tracker 获取会话的跟踪器，不存在时创建
func (s *ProgressService) Tracker(sessionID string) *ProgressTracker {
	s.mutex.RLock()
	tracker, exists := s.trackers[sessionID]
	s.mutex.RUnlock()
	if exists {
		return tracker
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if tracker, exists := s.trackers[sessionID]; exists {
		return tracker
	}

	now := time.Now()
	tracker = &ProgressTracker{
		SessionID:   sessionID,
		current:     ProgressUpdate{Status: ProgressIdle, Message: "Waiting..."},
		StartTime:   now,
		UpdateTime:  now,
		subscribers: make(map[chan ProgressUpdate]bool),
	}
	s.trackers[sessionID] = tracker
	return tracker
}

// Reporter 开始一次新的生成并返回对话引擎使用的进度回调
func (s *ProgressService) Reporter(sessionID string) func(ProgressEvent) {
	tracker := s.Tracker(sessionID)
	tracker.Start()
	return tracker.Publish
}

// Start 重置为运行状态
func (t *ProgressTracker) Start() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.StartTime = time.Now()
	t.UpdateTime = t.StartTime
	t.current = ProgressUpdate{Status: ProgressRunning, Message: "Mining real-world comedy..."}
	t.broadcast()
}

// Publish 把引擎事件转换为进度更新并通知订阅者
func (t *ProgressTracker) Publish(ev ProgressEvent) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	update := ProgressUpdate{
		Progress: t.current.Progress,
		Status:   ProgressRunning,
		Stage:    ev.Stage,
		Topic:    ev.Topic,
		Turn:     ev.Turn,
		Total:    ev.Total,
		Speaker:  ev.Speaker,
	}
	if update.Topic == "" {
		update.Topic = t.current.Topic
	}

	switch ev.Stage {
	case StageTopic:
		update.Message = fmt.Sprintf("Topic: %s", ev.Topic)
	case StageTyping:
		update.Message = fmt.Sprintf("%s is typing...", ev.Speaker)
	case StageTurn:
		if ev.Total > 0 {
			update.Progress = ev.Turn * 100 / ev.Total
		}
		update.Message = fmt.Sprintf("%s replied", ev.Speaker)
	case StageDone:
		update.Progress = 100
		update.Status = ProgressCompleted
		update.Message = "Chat ready"
	}

	// 进度只增不减
	if update.Progress < t.current.Progress {
		update.Progress = t.current.Progress
	}
	t.current = update
	t.UpdateTime = time.Now()
	t.broadcast()
}

// Fail 标记本次生成失败
func (t *ProgressTracker) Fail(errorMsg string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.current.Status = ProgressFailed
	t.current.Message = fmt.Sprintf("生成失败: %s", errorMsg)
	t.UpdateTime = time.Now()
	t.broadcast()
}

// Current 当前进度
func (t *ProgressTracker) Current() ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.current
}

// broadcast 非阻塞发送，通道已满则跳过；调用方持有锁
func (t *ProgressTracker) broadcast() {
	for subscriber := range t.subscribers {
		select {
		case subscriber <- t.current:
		default:
		}
	}
}

// Subscribe 订阅进度更新，立即收到当前状态
func (t *ProgressTracker) Subscribe() chan ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	// 缓冲区足够容纳一次最长生成的所有事件
	subscriber := make(chan ProgressUpdate, 32)
	t.subscribers[subscriber] = true
	subscriber <- t.current
	return subscriber
}

// Unsubscribe 取消订阅
func (t *ProgressTracker) Unsubscribe(subscriber chan ProgressUpdate) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.subscribers[subscriber] {
		delete(t.subscribers, subscriber)
		close(subscriber)
	}
}

// SubscriberCount 当前订阅者数量
func (t *ProgressTracker) SubscriberCount() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.subscribers)
}

// CleanupIdleTrackers 清理没有订阅者且长时间未更新的跟踪器
func (s *ProgressService) CleanupIdleTrackers(maxAge time.Duration) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	removed := 0
	for id, tracker := range s.trackers {
		tracker.mutex.Lock()
		idle := len(tracker.subscribers) == 0 && tracker.current.Status != ProgressRunning
		isOld := now.Sub(tracker.UpdateTime) > maxAge
		tracker.mutex.Unlock()

		if idle && isOld {
			delete(s.trackers, id)
			removed++
		}
	}
	return removed
}
