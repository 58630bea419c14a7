package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"city.newnan/ark-console/internal/model"
	"city.newnan/ark-console/internal/service"
	"city.newnan/ark-console/pkg/rconsession"
)

// ServerController 服务器管理API控制器，封装RCON会话的查询与维护操作
type ServerController struct {
	Servers *service.ServerService
	Jobs    *service.JobService
}

// NewServerController 创建服务器控制器
func NewServerController(servers *service.ServerService, jobs *service.JobService) *ServerController {
	return &ServerController{
		Servers: servers,
		Jobs:    jobs,
	}
}

// maintenanceRequest 维护操作请求体
type maintenanceRequest struct {
	Backup bool   `json:"backup"`
	Delay  int    `json:"delay"`
	Reason string `json:"reason"`
}

// commandRequest 控制台命令请求体
type commandRequest struct {
	Command   string `json:"command" binding:"required"`
	NeedReply *bool  `json:"need_reply"`
}

// serverStatus 把会话状态汇总为响应结构
func serverStatus(session *rconsession.Session) map[string]interface{} {
	server := session.Server()
	status := map[string]interface{}{
		"key":           server.Key,
		"display_name":  server.DisplayName,
		"address":       server.Rcon.Address,
		"chat_channel":  server.ChatChannel,
		"link":          session.Link().String(),
		"process_alive": session.ProcessAlive(),
		"state":         session.State(),
		"pending":       session.Pending(),
	}
	if mode, running := session.JobRunning(); running {
		status["job"] = mode.String()
	}
	return status
}

// session 解析路径中的服务器标识，找不到时直接写404
func (c *ServerController) session(ctx *gin.Context) (*rconsession.Session, bool) {
	session, err := c.Servers.Get(ctx.Param("key"))
	if err != nil {
		ctx.JSON(http.StatusNotFound, model.ErrorResponse(http.StatusNotFound, err.Error()))
		return nil, false
	}
	return session, true
}

// ListServers 获取全部服务器及其状态
func (c *ServerController) ListServers(ctx *gin.Context) {
	sessions := c.Servers.All()
	statuses := make([]map[string]interface{}, 0, len(sessions))
	for _, session := range sessions {
		statuses = append(statuses, serverStatus(session))
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(statuses))
}

// GetServer 获取单个服务器的状态
func (c *ServerController) GetServer(ctx *gin.Context) {
	session, ok := c.session(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(serverStatus(session)))
}

// SubmitCommand 管理员提交RCON命令，回复通过轮询或WebSocket获取
func (c *ServerController) SubmitCommand(ctx *gin.Context) {
	session, ok := c.session(ctx)
	if !ok {
		return
	}

	var req commandRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
		return
	}

	needReply := true
	if req.NeedReply != nil {
		needReply = *req.NeedReply
	}

	if session.Link() == rconsession.LinkDisconnected {
		ctx.JSON(http.StatusConflict, model.ErrorResponse(http.StatusConflict, "RCON未连线，无法发送命令"))
		return
	}

	session.Submit(req.Command, rconsession.TagWeb, nil, needReply)
	ctx.JSON(http.StatusOK, model.SuccessResponse(map[string]string{
		"message": "命令已入队: " + req.Command,
	}))
}

// DrainReplies 取出积压的控制台回复
func (c *ServerController) DrainReplies(ctx *gin.Context) {
	session, ok := c.session(ctx)
	if !ok {
		return
	}

	var replies []rconsession.Reply
	for {
		reply, ok := session.Take(rconsession.TagWeb)
		if !ok {
			break
		}
		replies = append(replies, reply)
	}
	if replies == nil {
		replies = []rconsession.Reply{}
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(replies))
}

// ClearQueue 清空待发命令队列并中止正在进行的维护作业
func (c *ServerController) ClearQueue(ctx *gin.Context) {
	session, ok := c.session(ctx)
	if !ok {
		return
	}

	session.Clear(rconsession.TagWeb)
	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// Save 发起存档作业
func (c *ServerController) Save(ctx *gin.Context) {
	c.maintenance(ctx, rconsession.ModeSave)
}

// Stop 发起关闭作业
func (c *ServerController) Stop(ctx *gin.Context) {
	c.maintenance(ctx, rconsession.ModeStop)
}

// Restart 发起重启作业
func (c *ServerController) Restart(ctx *gin.Context) {
	c.maintenance(ctx, rconsession.ModeRestart)
}

// maintenance 统一处理三种维护作业的发起
func (c *ServerController) maintenance(ctx *gin.Context, mode rconsession.Mode) {
	session, ok := c.session(ctx)
	if !ok {
		return
	}

	var req maintenanceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
		return
	}
	if req.Delay < 0 {
		ctx.JSON(http.StatusBadRequest, model.ErrorResponse(http.StatusBadRequest, "倒计时分钟数不能为负"))
		return
	}

	if session.Link() == rconsession.LinkDisconnected {
		ctx.JSON(http.StatusConflict, model.ErrorResponse(http.StatusConflict, "RCON未连线，无法"+mode.Display()))
		return
	}
	if running, busy := session.JobRunning(); busy {
		ctx.JSON(http.StatusConflict, model.ErrorResponse(http.StatusConflict, "已有作业正在进行: "+running.String()))
		return
	}

	switch mode {
	case rconsession.ModeSave:
		session.Save(rconsession.TagWeb, req.Backup, req.Delay, req.Reason)
	case rconsession.ModeStop:
		session.Stop(rconsession.TagWeb, req.Backup, req.Delay, req.Reason)
	case rconsession.ModeRestart:
		session.Restart(rconsession.TagWeb, req.Backup, req.Delay, req.Reason)
	}

	ctx.JSON(http.StatusOK, model.SuccessResponse(map[string]interface{}{
		"mode":   mode.String(),
		"backup": req.Backup,
		"delay":  req.Delay,
	}))
}

// Backup 立即备份存档
func (c *ServerController) Backup(ctx *gin.Context) {
	session, ok := c.session(ctx)
	if !ok {
		return
	}

	session.Backup(rconsession.TagWeb)
	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// Start 启动已停止的服务器进程
func (c *ServerController) Start(ctx *gin.Context) {
	session, ok := c.session(ctx)
	if !ok {
		return
	}

	if session.ProcessAlive() {
		ctx.JSON(http.StatusConflict, model.ErrorResponse(http.StatusConflict, "服务器已经启动了"))
		return
	}

	session.StartServer(rconsession.TagWeb)
	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// GetJob 查询当前正在进行的维护作业
func (c *ServerController) GetJob(ctx *gin.Context) {
	session, ok := c.session(ctx)
	if !ok {
		return
	}

	if mode, running := session.JobRunning(); running {
		ctx.JSON(http.StatusOK, model.SuccessResponse(map[string]interface{}{
			"running": true,
			"mode":    mode.String(),
		}))
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(map[string]interface{}{
		"running": false,
	}))
}

// ListJobs 查询维护作业历史，server参数过滤服务器
func (c *ServerController) ListJobs(ctx *gin.Context) {
	serverKey := ctx.Query("server")
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))

	records, err := c.Jobs.ListJobs(serverKey, limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, model.ErrorResponse(http.StatusInternalServerError, "查询作业历史失败: "+err.Error()))
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(records))
}
