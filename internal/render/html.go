// internal/render/html.go
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"github.com/Corphon/FriendsSyndicate/internal/models"
	"github.com/Corphon/FriendsSyndicate/web"
)

// 页面文案
const (
	TopicPlaceholder = "Waiting..."
	FooterHint       = "Enter an API key under Settings for REAL AI generation. Visuals simulate iOS."
	FooterHintReady  = "REAL AI generation is on. Visuals simulate iOS."
	PageTemplate     = "index.html"
)

// ChatView 手机框内的内容
type ChatView struct {
	GroupName   string
	MemberCount string
	Topic       string
	Bubbles     []Bubble
}

// PageData 完整页面
type PageData struct {
	Chat             ChatView
	Hint             string
	EnvKeyConfigured bool
	SessionKeySet    bool
}

// HTMLRenderer 使用内嵌模板生成页面标记，文本统一转义
type HTMLRenderer struct {
	tmpl   *template.Template
	roster *models.Roster
}

// NewHTMLRenderer 解析内嵌模板
func NewHTMLRenderer(roster *models.Roster) (*HTMLRenderer, error) {
	if roster == nil {
		roster = models.DefaultRoster()
	}
	tmpl, err := template.ParseFS(web.Templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("解析页面模板失败: %w", err)
	}
	return &HTMLRenderer{tmpl: tmpl, roster: roster}, nil
}

// Template 供 gin 的 SetHTMLTemplate 使用
func (r *HTMLRenderer) Template() *template.Template {
	return r.tmpl
}

// ChatView 由话题和对话构建视图
func (r *HTMLRenderer) ChatView(conv models.Conversation) ChatView {
	topic := conv.Topic
	if topic == "" {
		topic = TopicPlaceholder
	}
	groupName := r.roster.GroupName
	if groupName == "" {
		groupName = "Friends Syndicate ☕️"
	}
	return ChatView{
		GroupName:   groupName,
		MemberCount: fmt.Sprintf("%d People", len(r.roster.Personas)),
		Topic:       topic,
		Bubbles:     Layout(conv.Transcript, LayoutOptions{Roster: r.roster}),
	}
}

// Page 构建完整页面数据
func (r *HTMLRenderer) Page(conv models.Conversation, envKey, sessionKey bool) PageData {
	hint := FooterHint
	if envKey || sessionKey {
		hint = FooterHintReady
	}
	return PageData{
		Chat:             r.ChatView(conv),
		Hint:             hint,
		EnvKeyConfigured: envKey,
		SessionKeySet:    sessionKey,
	}
}

// RenderChat 输出手机框片段
func (r *HTMLRenderer) RenderChat(w io.Writer, conv models.Conversation) error {
	return r.tmpl.ExecuteTemplate(w, "chat", r.ChatView(conv))
}

// RenderHTML 以 template.HTML 返回手机框片段
func (r *HTMLRenderer) RenderHTML(conv models.Conversation) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.RenderChat(&buf, conv); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// RenderPage 输出完整页面
func (r *HTMLRenderer) RenderPage(w io.Writer, data PageData) error {
	return r.tmpl.ExecuteTemplate(w, PageTemplate, data)
}
