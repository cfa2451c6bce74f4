package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsServiceRecords(t *testing.T) {
	s := NewStatsService()
	s.RecordAPIRequest(12, false)
	s.RecordAPIRequest(0, true)
	s.RecordConversation()

	stats := s.GetUsageStats()
	assert.Equal(t, 2, stats.TodayRequests)
	assert.Equal(t, 1, stats.TodayFailures)
	assert.Equal(t, 1, stats.TodayConversations)
	assert.Equal(t, 12, stats.MonthlyTokens)

	// 返回的是副本
	stats.DailyStats["x"] = 99
	assert.NotContains(t, s.GetUsageStats().DailyStats, "x")
}

func TestStatsServiceRollsOverDay(t *testing.T) {
	now := time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC)
	s := newStatsServiceWithClock(func() time.Time { return now })
	s.RecordAPIRequest(5, false)
	s.RecordConversation()

	now = now.Add(2 * time.Hour)
	stats := s.GetUsageStats()
	assert.Zero(t, stats.TodayRequests)
	assert.Zero(t, stats.TodayConversations)
	assert.Zero(t, stats.MonthlyTokens)
	assert.Equal(t, 1, stats.DailyStats["2025-01-31"])
	assert.Equal(t, 5, stats.MonthlyStats["2025-01"])

	s.ResetStats()
	assert.Empty(t, s.GetUsageStats().DailyStats)
}
