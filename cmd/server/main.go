// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Corphon/FriendsSyndicate/internal/app"
	"github.com/Corphon/FriendsSyndicate/internal/config"
	"github.com/Corphon/FriendsSyndicate/internal/di"
	"github.com/Corphon/FriendsSyndicate/internal/utils"
)

func main() {
	log.Println("🚀 启动 Friends Syndicate 服务器...")

	// 1. 初始化配置系统
	if err := config.InitConfig(); err != nil {
		log.Fatalf("❌ 初始化配置系统失败: %v", err)
	}
	cfg := config.GetCurrentConfig()
	log.Printf("✅ 配置加载完成，端口: %s，提供者: %s", cfg.Port, cfg.LLMProvider)

	// 2. 初始化日志
	if cfg.LogDir != "" {
		logFile, err := utils.InitLogger(cfg.LogDir)
		if err != nil {
			log.Printf("⚠️ 无法初始化日志文件: %v", err)
		} else {
			log.Printf("✅ 日志写入 %s", logFile)
		}
	}
	defer utils.GetLogger().Close()

	// 3. 初始化服务和路由
	application := app.GetApp()
	if err := application.Initialize(); err != nil {
		log.Fatalf("❌ 初始化应用失败: %v", err)
	}
	log.Printf("✅ 所有服务初始化完成，服务数量: %d", len(di.GetContainer().GetNames()))

	if err := performHealthCheck(); err != nil {
		log.Printf("⚠️ 服务健康检查警告: %v", err)
	}

	log.Printf("🔗 访问地址: http://localhost:%s", cfg.Port)
	log.Printf("📈 指标地址: http://localhost:%s/metrics", cfg.Port)

	// 4. 运行直到收到中断信号
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

// performHealthCheck 检查关键服务是否已注册
func performHealthCheck() error {
	container := di.GetContainer()

	criticalServices := []string{di.ServiceConversation, di.ServiceSession, di.ServiceExport, di.ServiceLLM}
	for _, serviceName := range criticalServices {
		if !container.Has(serviceName) {
			return fmt.Errorf("关键服务未注册: %s", serviceName)
		}
	}

	log.Println("✅ 服务健康检查通过")
	return nil
}
