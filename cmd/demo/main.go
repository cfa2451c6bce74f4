// cmd/demo/main.go
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/Corphon/FriendsSyndicate/internal/app"
	"github.com/Corphon/FriendsSyndicate/internal/config"
	"github.com/Corphon/FriendsSyndicate/internal/di"
	apperrors "github.com/Corphon/FriendsSyndicate/internal/errors"
	"github.com/Corphon/FriendsSyndicate/internal/models"
	"github.com/Corphon/FriendsSyndicate/internal/services"
)

const consoleSessionID = "console"

var reader = bufio.NewReader(os.Stdin)

// console 终端版本使用的服务
type console struct {
	engine   *services.ConversationService
	sessions *services.SessionStore
	exports  *services.ExportService
	llm      *services.LLMService
}

func main() {
	fmt.Println("🚀 Friends Syndicate Console")
	fmt.Println("============================")

	if err := config.InitConfig(); err != nil {
		log.Printf("❌ 加载配置失败: %v", err)
		return
	}

	container := di.GetContainer()
	if err := app.InitServices(); err != nil {
		log.Printf("❌ 初始化服务失败: %v", err)
		return
	}

	c := &console{
		engine:   container.Get(di.ServiceConversation).(*services.ConversationService),
		sessions: container.Get(di.ServiceSession).(*services.SessionStore),
		exports:  container.Get(di.ServiceExport).(*services.ExportService),
		llm:      container.Get(di.ServiceLLM).(*services.LLMService),
	}

	for {
		c.showMenu()
		switch strings.ToLower(getUserInput("请选择: ")) {
		case "1", "generate", "g":
			c.generate()
		case "2", "show", "s":
			c.show()
		case "3", "export", "e":
			c.export()
		case "4", "key", "k":
			c.setKey()
		case "0", "quit", "exit", "q":
			fmt.Println("👋 再见")
			return
		default:
			fmt.Println("⚠️ 无效的选项")
		}
	}
}

func (c *console) state() *services.SessionState {
	return c.sessions.GetOrCreate(consoleSessionID)
}

func (c *console) credential() string {
	if key := c.state().Credential(); key != "" {
		return key
	}
	return c.llm.EnvironmentKey()
}

func (c *console) showMenu() {
	mode := "模板回复"
	if c.credential() != "" {
		mode = "AI 生成 (" + c.llm.GetProviderName() + ")"
	}
	fmt.Println()
	fmt.Printf("当前模式: %s\n", mode)
	fmt.Println("1. 🎲 生成新对话")
	fmt.Println("2. 💬 查看当前对话")
	fmt.Println("3. 📸 导出分享图片")
	fmt.Println("4. 🔑 设置会话密钥")
	fmt.Println("0. 退出")
}

func (c *console) generate() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	conv := c.engine.Run(ctx, services.RunOptions{
		Credential: c.credential(),
		Progress: func(ev services.ProgressEvent) {
			switch ev.Stage {
			case services.StageTopic:
				fmt.Printf("📰 话题: %s\n", ev.Topic)
			case services.StageTyping:
				fmt.Printf("   %s is typing... (%d/%d)\n", ev.Speaker, ev.Turn, ev.Total)
			}
		},
	})
	c.state().Set(conv.Topic, conv.Transcript)
	printConversation(conv.Topic, conv.Transcript)
}

func (c *console) show() {
	snapshot := c.state().Get()
	if snapshot.Transcript.IsEmpty() {
		fmt.Println("⚠️ 还没有对话，请先生成")
		return
	}
	printConversation(snapshot.Topic, snapshot.Transcript)
}

func (c *console) export() {
	snapshot := c.state().Get()
	result, err := c.exports.ExportImage(context.Background(), models.Conversation{
		Topic:      snapshot.Topic,
		Transcript: snapshot.Transcript,
	})
	if err != nil {
		if apperrors.IsEmptyTranscript(err) {
			fmt.Println("⚠️ 还没有对话，请先生成")
			return
		}
		fmt.Printf("❌ 导出失败: %v\n", err)
		return
	}

	if err := os.WriteFile(result.Filename, result.Data, 0644); err != nil {
		fmt.Printf("❌ 写入文件失败: %v\n", err)
		return
	}
	fmt.Printf("✅ 已保存 %s (%dx%d, %d 条消息)\n", result.Filename, result.Width, result.Height, result.Bubbles)
}

func (c *console) setKey() {
	key := getUserInput("输入密钥 (留空清除): ")
	if key == "" {
		c.state().SetCredential("")
		fmt.Println("✅ 已清除会话密钥")
		return
	}
	if _, err := c.llm.ProviderFor(key); err != nil {
		fmt.Printf("❌ 无法使用该密钥: %v\n", err)
		return
	}
	c.state().SetCredential(key)
	fmt.Println("✅ 密钥已保存到当前会话")
}

// printConversation 只打印角色发言，Manager 和 Critic 不显示
func printConversation(topic string, transcript models.Transcript) {
	fmt.Println()
	fmt.Printf("☕️ Friends Syndicate | %s\n", topic)
	fmt.Println(strings.Repeat("-", 40))
	for _, turn := range transcript {
		if models.IsHiddenSpeaker(turn.Speaker) {
			continue
		}
		fmt.Printf("%-9s %s\n", turn.Speaker+":", turn.Text)
	}
}

func getUserInput(prompt string) string {
	fmt.Print(prompt)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "0"
	}
	return strings.TrimSpace(line)
}
