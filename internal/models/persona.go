// internal/models/persona.go
package models

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

// PersonaID 群聊成员标识，封闭集合
type PersonaID string

const (
	PersonaJoey     PersonaID = "Joey"
	PersonaChandler PersonaID = "Chandler"
	PersonaRoss     PersonaID = "Ross"
)

// AllPersonaIDs 按固定顺序返回全部成员
func AllPersonaIDs() []PersonaID {
	return []PersonaID{PersonaJoey, PersonaChandler, PersonaRoss}
}

// IsPersona 判断发言者是否为群聊成员
func IsPersona(speaker string) bool {
	switch PersonaID(speaker) {
	case PersonaJoey, PersonaChandler, PersonaRoss:
		return true
	}
	return false
}

// Persona 成员的静态展示和提示词信息，不含任何可变状态
type Persona struct {
	ID          PersonaID `yaml:"id" json:"id"`
	DisplayName string    `yaml:"display_name" json:"display_name"`
	Self        bool      `yaml:"self" json:"self"` // 手机主人，气泡靠右
	Voice       string    `yaml:"voice" json:"voice,omitempty"`
}

// Roster 群聊成员名单
type Roster struct {
	Show      string    `yaml:"show" json:"show"`
	GroupName string    `yaml:"group_name" json:"group_name"`
	Personas  []Persona `yaml:"personas" json:"personas"`
}

//go:embed personas.yaml
var defaultRosterYAML []byte

var (
	defaultRoster     *Roster
	defaultRosterErr  error
	defaultRosterOnce sync.Once
)

// DefaultRoster 返回内置名单（只解析一次）
func DefaultRoster() *Roster {
	defaultRosterOnce.Do(func() {
		defaultRoster, defaultRosterErr = ParseRoster(defaultRosterYAML)
	})
	if defaultRosterErr != nil {
		// 内置文件随二进制发布，解析失败属于构建错误
		panic(fmt.Sprintf("内置成员名单无效: %v", defaultRosterErr))
	}
	return defaultRoster
}

// ParseRoster 解析并校验 YAML 名单
func ParseRoster(data []byte) (*Roster, error) {
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("解析成员名单失败: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate 检查名单是否只包含封闭集合中的成员，且恰好一位 self
func (r *Roster) Validate() error {
	if len(r.Personas) < 2 {
		return fmt.Errorf("成员名单至少需要2位成员，当前: %d", len(r.Personas))
	}
	seen := make(map[PersonaID]bool, len(r.Personas))
	selfCount := 0
	for _, p := range r.Personas {
		if !IsPersona(string(p.ID)) {
			return fmt.Errorf("未知成员: %q", p.ID)
		}
		if seen[p.ID] {
			return fmt.Errorf("成员重复: %q", p.ID)
		}
		seen[p.ID] = true
		if p.Self {
			selfCount++
		}
	}
	if selfCount != 1 {
		return fmt.Errorf("名单中必须恰好有一位 self 成员，当前: %d", selfCount)
	}
	return nil
}

// IDs 名单中的成员标识
func (r *Roster) IDs() []PersonaID {
	ids := make([]PersonaID, 0, len(r.Personas))
	for _, p := range r.Personas {
		ids = append(ids, p.ID)
	}
	return ids
}

// Get 按标识查找成员
func (r *Roster) Get(id PersonaID) (Persona, bool) {
	for _, p := range r.Personas {
		if p.ID == id {
			return p, true
		}
	}
	return Persona{}, false
}

// SelfID 手机主人的标识
func (r *Roster) SelfID() PersonaID {
	for _, p := range r.Personas {
		if p.Self {
			return p.ID
		}
	}
	return ""
}

// DisplayName 成员显示名，未知发言者原样返回
func (r *Roster) DisplayName(speaker string) string {
	if p, ok := r.Get(PersonaID(speaker)); ok && p.DisplayName != "" {
		return p.DisplayName
	}
	return speaker
}
