// internal/services/session_service.go
package services

import (
	"log"
	"sync"
	"time"

	apperrors "github.com/Corphon/FriendsSyndicate/internal/errors"
	"github.com/Corphon/FriendsSyndicate/internal/models"
	"github.com/Corphon/FriendsSyndicate/internal/utils"
	"github.com/patrickmn/go-cache"
)

// Snapshot 会话状态的只读副本
type Snapshot struct {
	Topic         string            `json:"topic"`
	Transcript    models.Transcript `json:"transcript"`
	HasCredential bool              `json:"has_credential"`
	Generating    bool              `json:"generating"`
	UpdatedAt     time.Time         `json:"updated_at,omitempty"`
}

// SessionState 单个浏览器会话的话题、对话和密钥，仅保存在内存中
type SessionState struct {
	mu         sync.RWMutex
	topic      string
	transcript models.Transcript
	credential string // box 不为空时保存的是密文
	box        *utils.SecretBox
	generating bool
	updatedAt  time.Time
}

// Get 返回当前状态的副本
func (s *SessionState) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Topic:         s.topic,
		Transcript:    s.transcript.Clone(),
		HasCredential: s.credential != "",
		Generating:    s.generating,
		UpdatedAt:     s.updatedAt,
	}
}

// Set 同时替换话题和对话，读者不会看到只更新一半的状态
func (s *SessionState) Set(topic string, transcript models.Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topic = topic
	s.transcript = transcript.Clone()
	s.updatedAt = time.Now()
}

// Credential 会话中输入的密钥
func (s *SessionState) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.credential == "" || s.box == nil {
		return s.credential
	}
	key, err := s.box.Open(s.credential)
	if err != nil {
		log.Printf("⚠️ 解密会话密钥失败: %v", err)
		return ""
	}
	return key
}

// SetCredential 设置会话密钥，空字符串表示清除
func (s *SessionState) SetCredential(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == "" || s.box == nil {
		s.credential = key
		return
	}
	sealed, err := s.box.Seal(key)
	if err != nil {
		log.Printf("⚠️ 加密会话密钥失败，密钥未保存: %v", err)
		s.credential = ""
		return
	}
	s.credential = sealed
}

// BeginGeneration 标记开始生成；已有生成在进行时返回 ErrGenerationBusy
func (s *SessionState) BeginGeneration() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generating {
		return apperrors.ErrGenerationBusy
	}
	s.generating = true
	return nil
}

// EndGeneration 清除生成标记
func (s *SessionState) EndGeneration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating = false
}

// SessionStore 会话 ID 到状态的映射，空闲超过 TTL 的会话被清理
type SessionStore struct {
	mu       sync.Mutex
	sessions *cache.Cache
	box      *utils.SecretBox // 会话密钥在内存中加密保存
}

// NewSessionStore 创建会话存储
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	box, err := utils.NewSecretBox()
	if err != nil {
		log.Printf("⚠️ 无法创建会话密钥加密器，密钥将以明文保存在内存: %v", err)
	}
	return &SessionStore{sessions: cache.New(ttl, ttl/2), box: box}
}

// GetOrCreate 获取会话，不存在时创建；每次访问都会刷新过期时间
func (s *SessionStore) GetOrCreate(id string) *SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.lookup(id)
	if !ok {
		state = &SessionState{box: s.box}
	}
	s.sessions.Set(id, state, cache.DefaultExpiration)
	return state
}

// Get 获取已存在的会话
func (s *SessionStore) Get(id string) (*SessionState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(id)
}

// Delete 删除会话
func (s *SessionStore) Delete(id string) {
	s.sessions.Delete(id)
}

// Count 当前会话数
func (s *SessionStore) Count() int {
	return s.sessions.ItemCount()
}

func (s *SessionStore) lookup(id string) (*SessionState, bool) {
	v, ok := s.sessions.Get(id)
	if !ok {
		return nil, false
	}
	state, ok := v.(*SessionState)
	return state, ok
}
