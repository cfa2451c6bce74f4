// internal/services/stats_service.go
package services

import (
	"maps"
	"sync"
	"time"
)

// UsageStats 进程内的使用统计，重启后清零
type UsageStats struct {
	TodayRequests      int            `json:"today_requests"`
	TodayFailures      int            `json:"today_failures"`
	TodayConversations int            `json:"today_conversations"`
	MonthlyTokens      int            `json:"monthly_tokens"`
	DailyStats         map[string]int `json:"daily_stats"`   // 日期 -> 文本生成请求数
	MonthlyStats       map[string]int `json:"monthly_stats"` // 月份 -> token 数
	LastUpdated        time.Time      `json:"last_updated"`
}

// StatsService 统计文本生成请求和对话数量
type StatsService struct {
	mutex sync.Mutex
	stats *UsageStats
	now   func() time.Time
}

// NewStatsService 创建统计服务实例
func NewStatsService() *StatsService {
	return newStatsServiceWithClock(time.Now)
}

func newStatsServiceWithClock(now func() time.Time) *StatsService {
	return &StatsService{
		stats: &UsageStats{
			DailyStats:   make(map[string]int),
			MonthlyStats: make(map[string]int),
			LastUpdated:  now(),
		},
		now: now,
	}
}

// rollPeriod 跨天或跨月时重置当期计数
func (s *StatsService) rollPeriod(now time.Time) {
	if now.Format("2006-01-02") != s.stats.LastUpdated.Format("2006-01-02") {
		s.stats.TodayRequests = 0
		s.stats.TodayFailures = 0
		s.stats.TodayConversations = 0
	}
	if now.Format("2006-01") != s.stats.LastUpdated.Format("2006-01") {
		s.stats.MonthlyTokens = 0
	}
	s.stats.LastUpdated = now
}

// RecordAPIRequest 记录一次文本生成请求
func (s *StatsService) RecordAPIRequest(tokens int, failed bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	s.rollPeriod(now)

	s.stats.TodayRequests++
	if failed {
		s.stats.TodayFailures++
	}
	s.stats.MonthlyTokens += tokens
	s.stats.DailyStats[now.Format("2006-01-02")]++
	s.stats.MonthlyStats[now.Format("2006-01")] += tokens
}

// RecordConversation 记录一次完整的对话生成
func (s *StatsService) RecordConversation() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.rollPeriod(s.now())
	s.stats.TodayConversations++
}

// GetUsageStats 返回统计数据的深度副本
func (s *StatsService) GetUsageStats() *UsageStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.rollPeriod(s.now())
	out := *s.stats
	out.DailyStats = maps.Clone(s.stats.DailyStats)
	out.MonthlyStats = maps.Clone(s.stats.MonthlyStats)
	return &out
}

// ResetStats 清空所有统计
func (s *StatsService) ResetStats() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.stats = &UsageStats{
		DailyStats:   make(map[string]int),
		MonthlyStats: make(map[string]int),
		LastUpdated:  s.now(),
	}
}
