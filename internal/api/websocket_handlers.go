// internal/api/websocket_handlers.go
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/Corphon/FriendsSyndicate/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPingPeriod   = 54 * time.Second
)

// 推送给页面的消息类型
const (
	MessageTypeConnected           = "connected"
	MessageTypeProgress            = "progress"
	MessageTypeConversationUpdated = "conversation:updated"
	MessageTypePong                = "pong"
)

// WebSocketHandler 处理会话进度推送
type WebSocketHandler struct {
	manager  *WebSocketManager
	progress *services.ProgressService
}

// NewWebSocketHandler 创建 WebSocket 处理器
func NewWebSocketHandler(progress *services.ProgressService) *WebSocketHandler {
	return &WebSocketHandler{
		manager:  NewWebSocketManager(),
		progress: progress,
	}
}

// Manager 连接管理器
func (wh *WebSocketHandler) Manager() *WebSocketManager {
	return wh.manager
}

// SessionWebSocket 升级连接并转发当前会话的生成进度
func (wh *WebSocketHandler) SessionWebSocket(c *gin.Context) {
	sessionID := SessionID(c)
	if sessionID == "" {
		log.Printf("❌ WebSocket 连接失败：会话ID缺失")
		http.Error(c.Writer, "会话ID缺失", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ 会话 WebSocket 升级失败: %v", err)
		return
	}

	client := NewWebSocketClient(conn, sessionID)
	wh.manager.Register(client)
	defer wh.manager.Unregister(client)

	tracker := wh.progress.Tracker(sessionID)
	updates := tracker.Subscribe()
	defer tracker.Unsubscribe(updates)

	go wh.handleWebSocketWrites(client)
	go wh.handleWebSocketReads(client)

	client.SendMessage(map[string]interface{}{
		"type":       MessageTypeConnected,
		"session_id": sessionID,
		"timestamp":  time.Now().Format(time.RFC3339),
	})

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			client.SendMessage(map[string]interface{}{
				"type": MessageTypeProgress,
				"data": update,
			})
		case <-client.Done():
			log.Printf("📱 会话 %s 的 WebSocket 连接已关闭", sessionID)
			return
		case <-c.Request.Context().Done():
			client.Close()
			return
		}
	}
}

// handleWebSocketReads 读取客户端消息，连接出错时关闭
func (wh *WebSocketHandler) handleWebSocketReads(client *WebSocketClient) {
	defer client.Close()

	client.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		client.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for !client.IsClosed() {
		_, messageBytes, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("❌ WebSocket 读取错误: %v", err)
			}
			return
		}
		client.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		client.UpdatePing()

		var message map[string]interface{}
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			log.Printf("⚠️ JSON解析失败: %v", err)
			continue
		}
		wh.handleMessage(client, message)
	}
}

// handleWebSocketWrites 写出队列中的消息并定期发送 ping
func (wh *WebSocketHandler) handleWebSocketWrites(client *WebSocketClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		client.Close()
	}()

	for {
		select {
		case message := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("❌ WebSocket 写入失败: %v", err)
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("❌ WebSocket ping 失败: %v", err)
				return
			}

		case <-client.Done():
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			client.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// handleMessage 处理收到的 WebSocket 消息，目前只有心跳
func (wh *WebSocketHandler) handleMessage(client *WebSocketClient, message map[string]interface{}) {
	msgType, _ := message["type"].(string)
	switch msgType {
	case "ping":
		client.SendMessage(map[string]interface{}{
			"type":      MessageTypePong,
			"timestamp": time.Now().Unix(),
		})
	default:
		client.SendError("未知的消息类型: " + msgType)
	}
}

// NotifyConversationUpdated 告知会话的所有页面对话已替换
func (wh *WebSocketHandler) NotifyConversationUpdated(sessionID, topic string) {
	wh.manager.BroadcastToSession(sessionID, map[string]interface{}{
		"type":      MessageTypeConversationUpdated,
		"topic":     topic,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
