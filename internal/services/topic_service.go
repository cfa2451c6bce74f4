// internal/services/topic_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Corphon/FriendsSyndicate/internal/config"
	"github.com/Corphon/FriendsSyndicate/internal/utils"
	"github.com/mmcdole/gofeed"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// 话题来源，用于日志和指标
const (
	TopicSourceFeed     = "feed"
	TopicSourceCache    = "cache"
	TopicSourceFallback = "fallback"
)

var errNoUsableTitles = errors.New("feed has no usable titles")

// 热榜不可用时的备选话题
var fallbackTopics = []string{
	"Artificial Intelligence",
	"The Metaverse",
	"Crypto Crash",
	"Mars Colonization",
}

// FallbackTopics 返回备选话题的副本
func FallbackTopics() []string {
	out := make([]string, len(fallbackTopics))
	copy(out, fallbackTopics)
	return out
}

// FeedFetcher 拉取订阅源条目标题
type FeedFetcher interface {
	FetchTitles(ctx context.Context, url string) ([]string, error)
}

// rssFetcher 基于 gofeed 解析 RSS/Atom
type rssFetcher struct {
	parser *gofeed.Parser
}

// NewFeedFetcher 创建带超时的订阅源解析器
func NewFeedFetcher(timeout time.Duration) FeedFetcher {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	return &rssFetcher{parser: parser}
}

func (f *rssFetcher) FetchTitles(ctx context.Context, url string) ([]string, error) {
	feed, err := f.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		if title := strings.TrimSpace(item.Title); title != "" {
			titles = append(titles, title)
		}
	}
	if len(titles) == 0 {
		return nil, errNoUsableTitles
	}
	return titles, nil
}

// TopicService 选择本轮对话的话题，从不失败
type TopicService struct {
	fetcher  FeedFetcher
	feedURL  string
	timeout  time.Duration
	titles   *cache.Cache
	group    singleflight.Group
	rngMutex sync.Mutex
	rng      *rand.Rand
	metrics  *utils.MetricsCollector
	logger   *utils.Logger
}

// NewTopicService 根据配置创建话题服务
func NewTopicService(cfg *config.AppConfig) *TopicService {
	return NewTopicServiceWithFetcher(
		NewFeedFetcher(cfg.FeedTimeout),
		cfg.TrendsFeedURL,
		cfg.FeedTimeout,
		cfg.TopicCacheTTL,
		nil,
	)
}

// NewTopicServiceWithFetcher 注入解析器和随机源；rng 为 nil 时使用全局随机源。
// ttl <= 0 时不缓存标题。
func NewTopicServiceWithFetcher(fetcher FeedFetcher, feedURL string, timeout, ttl time.Duration, rng *rand.Rand) *TopicService {
	var titles *cache.Cache
	if ttl > 0 {
		titles = cache.New(ttl, 2*ttl)
	}
	if timeout <= 0 {
		timeout = config.DefaultFeedTimeout
	}
	return &TopicService{
		fetcher: fetcher,
		feedURL: feedURL,
		timeout: timeout,
		titles:  titles,
		rng:     rng,
		metrics: utils.GetMetricsCollector(),
		logger:  utils.GetLogger(),
	}
}

// FetchTopic 返回一个非空话题：优先热榜，失败时使用备选话题
func (s *TopicService) FetchTopic(ctx context.Context) string {
	titles, source, err := s.loadTitles(ctx)
	if err != nil {
		s.logger.Warn("热榜获取失败，使用备选话题", map[string]interface{}{
			"url":   s.feedURL,
			"error": err.Error(),
		})
		s.metrics.RecordTopicSource(ctx, TopicSourceFallback)
		return s.pick(fallbackTopics)
	}

	s.metrics.RecordTopicSource(ctx, source)
	return s.pick(titles)
}

// loadTitles 读取缓存，未命中时合并并发请求只拉取一次；失败不缓存
func (s *TopicService) loadTitles(ctx context.Context) ([]string, string, error) {
	if s.fetcher == nil || s.feedURL == "" {
		return nil, "", fmt.Errorf("feed not configured")
	}

	if s.titles != nil {
		if cached, ok := s.titles.Get(s.feedURL); ok {
			if titles, ok := cached.([]string); ok && len(titles) > 0 {
				return titles, TopicSourceCache, nil
			}
		}
	}

	val, err, _ := s.group.Do(s.feedURL, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		titles, err := s.fetcher.FetchTitles(fetchCtx, s.feedURL)
		if err != nil {
			return nil, err
		}
		if len(titles) == 0 {
			return nil, errNoUsableTitles
		}
		if s.titles != nil {
			s.titles.Set(s.feedURL, titles, cache.DefaultExpiration)
		}
		return titles, nil
	})
	if err != nil {
		return nil, "", err
	}

	titles, ok := val.([]string)
	if !ok {
		return nil, "", fmt.Errorf("unexpected return type from singleflight: %T", val)
	}
	return titles, TopicSourceFeed, nil
}

func (s *TopicService) pick(items []string) string {
	if s.rng == nil {
		return items[rand.IntN(len(items))]
	}
	s.rngMutex.Lock()
	defer s.rngMutex.Unlock()
	return items[s.rng.IntN(len(items))]
}
