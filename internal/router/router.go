package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	v1 "city.newnan/ark-console/api/v1"
	"city.newnan/ark-console/internal/config"
	"city.newnan/ark-console/internal/middleware"
	"city.newnan/ark-console/internal/service"
)

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, servers *service.ServerService, jobs *service.JobService) *gin.Engine {
	// 设置Gin模式
	gin.SetMode(cfg.Mode)

	// 创建路由引擎
	r := gin.New()

	// 使用中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// 配置跨域
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(corsConfig))

	// 默认路由
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "欢迎使用ARK Console API",
		})
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// 创建控制器实例
	userController := v1.NewUserController(cfg)
	serverController := v1.NewServerController(servers, jobs)
	realtimeController := v1.NewRealtimeController()

	// API v1 路由组
	api := r.Group("/api/v1")
	{
		// 公开路由
		api.POST("/user/register", userController.Register)
		api.POST("/user/login", userController.Login)
		api.POST("/user/logout", userController.Logout)

		// 需要认证的路由
		auth := api.Group("")
		auth.Use(middleware.JWTAuth(cfg))
		{
			// 用户相关
			auth.GET("/user/profile", userController.GetProfile)
			auth.PUT("/user/profile", userController.UpdateProfile)
			auth.GET("/user/refresh-token", userController.RefreshToken)

			// 服务器状态查询
			auth.GET("/servers", serverController.ListServers)
			auth.GET("/servers/:key", serverController.GetServer)
			auth.GET("/servers/:key/job", serverController.GetJob)

			// 实时通信
			auth.GET("/ws", realtimeController.HandleWebSocket)
			auth.GET("/sse", realtimeController.HandleSSE)
			auth.GET("/realtime/stats", realtimeController.GetRealtimeStats)

			// 仅管理员可用的路由
			admin := auth.Group("")
			admin.Use(middleware.RequireAdmin())
			{
				// 用户管理
				admin.GET("/users", userController.ListUsers)
				admin.GET("/users/:id", userController.GetUser)
				admin.DELETE("/users/:id", userController.DeleteUser)
				admin.PUT("/users/:id/disable", userController.DisableUser)
				admin.PUT("/users/:id/enable", userController.EnableUser)
				admin.PUT("/users/:id/role", userController.ChangeUserRole)

				// 服务器维护操作
				admin.POST("/servers/:key/command", serverController.SubmitCommand)
				admin.GET("/servers/:key/replies", serverController.DrainReplies)
				admin.POST("/servers/:key/clear", serverController.ClearQueue)
				admin.POST("/servers/:key/save", serverController.Save)
				admin.POST("/servers/:key/stop", serverController.Stop)
				admin.POST("/servers/:key/restart", serverController.Restart)
				admin.POST("/servers/:key/backup", serverController.Backup)
				admin.POST("/servers/:key/start", serverController.Start)
				admin.GET("/jobs", serverController.ListJobs)

				// 实时通信管理
				admin.POST("/ws/broadcast", realtimeController.BroadcastMessage)
				admin.POST("/sse/publish", realtimeController.PublishSSEEvent)
			}
		}
	}

	return r
}
