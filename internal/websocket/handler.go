package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 跨域检查由 CORS 中间件统一处理
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler 升级 HTTP 连接为 WebSocket 并注册到 Hub
func Handler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		client := &Client{
			ID:     uuid.New().String(),
			UserID: c.GetString("actor_id"),
			Hub:    hub,
			Conn:   conn,
			Send:   make(chan []byte, 256),
		}
		hub.Register <- client

		go client.WritePump()
		go client.ReadPump()
	}
}
