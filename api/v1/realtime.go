package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"city.newnan/ark-console/internal/middleware"
	"city.newnan/ark-console/internal/model"
	"city.newnan/ark-console/internal/sse"
	"city.newnan/ark-console/internal/websocket"
)

// RealtimeController 实时通信相关API控制器。
// WebSocket承载控制台命令与回复，SSE推送各服务器的聊天消息。
type RealtimeController struct{}

// NewRealtimeController 创建实时通信控制器
func NewRealtimeController() *RealtimeController {
	return &RealtimeController{}
}

// HandleWebSocket 建立WebSocket长连接，server参数指定要连接的服务器
func (c *RealtimeController) HandleWebSocket(ctx *gin.Context) {
	websocket.HandleWebSocket(ctx)
}

// HandleSSE 建立SSE长连接，topic参数指定订阅的服务器，空表示全部
func (c *RealtimeController) HandleSSE(ctx *gin.Context) {
	sse.HandleSSE(ctx)
}

// BroadcastMessage 管理员向WebSocket客户端或指定服务器房间广播消息
func (c *RealtimeController) BroadcastMessage(ctx *gin.Context) {
	var message websocket.BroadcastMessage
	if err := ctx.ShouldBindJSON(&message); err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
		return
	}

	websocket.GlobalManager.Broadcast(&message)
	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// PublishSSEEvent 管理员发布事件到SSE客户端
func (c *RealtimeController) PublishSSEEvent(ctx *gin.Context) {
	var message sse.Message
	if err := ctx.ShouldBindJSON(&message); err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
		return
	}

	sse.GlobalBroker.Publish(&message)
	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// GetRealtimeStats 获取WebSocket与SSE连接统计
func (c *RealtimeController) GetRealtimeStats(ctx *gin.Context) {
	userID := middleware.GetCurrentUserID(ctx)
	username := middleware.GetCurrentUsername(ctx)

	wsClients := len(websocket.GlobalManager.GetClientsByUsername(username))

	ctx.JSON(http.StatusOK, model.SuccessResponse(map[string]interface{}{
		"websocket_total": websocket.GlobalManager.GetClientCount(),
		"websocket_user":  wsClients,
		"sse_total":       sse.GlobalBroker.GetClientCount(),
		"timestamp":       time.Now().Format(time.RFC3339),
		"user_id":         userID,
		"username":        username,
	}))
}
