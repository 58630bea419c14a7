package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"city.newnan/ark-console/internal/config"
	"city.newnan/ark-console/internal/db"
	"city.newnan/ark-console/internal/model"
	"city.newnan/ark-console/internal/router"
	"city.newnan/ark-console/internal/schedule"
	"city.newnan/ark-console/internal/service"
	"city.newnan/ark-console/internal/sse"
	"city.newnan/ark-console/internal/websocket"
)

func main() {
	// 加载配置
	cfg := config.LoadConfig()

	// 初始化数据库
	if err := db.InitDB(cfg); err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}
	defer db.CloseDB()

	// 数据库模型自动迁移
	if err := db.AutoMigrate(&model.User{}, &model.JobRecord{}); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	// 加载ARK服务器配置并启动热重载
	arkStore, err := config.OpenArkStore(cfg.ArkConfigPath)
	if err != nil {
		log.Fatalf("加载ARK配置失败: %v", err)
	}
	arkStore.Watch(10 * time.Second)

	// 为每个服务器建立RCON会话
	jobService := service.NewJobService()
	serverService := service.NewServerService(arkStore, jobService)
	serverService.Start()
	defer serverService.Close()

	// 启动WebSocket管理器与控制台回复泵
	websocket.SetSessionSource(serverService)
	websocket.GlobalManager.Start()
	replyPump := websocket.NewReplyPump(websocket.GlobalManager, serverService, 0)
	replyPump.Start()
	defer replyPump.Stop()

	// 启动SSE代理与聊天转发
	sse.GlobalBroker.Start()
	chatRelay := sse.NewChatRelay(sse.GlobalBroker, serverService, 0)
	chatRelay.Start()
	defer chatRelay.Stop()

	// 启动定时存档/重启任务
	scheduler := schedule.NewRunner(arkStore, func(key string) (schedule.Server, error) {
		return serverService.Get(key)
	})
	scheduler.Start()
	defer scheduler.Stop()

	// 初始化路由
	r := router.SetupRouter(cfg, serverService, jobService)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler: r,
	}

	// 启动服务器（非阻塞）
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("监听失败: %v", err)
		}
	}()

	log.Printf("服务器开始运行，监听: %s:%d", cfg.ServerHost, cfg.ServerPort)

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("正在关闭服务器...")

	// 设置关闭超时
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("服务器被强制关闭:", err)
	}

	log.Println("服务器优雅退出")
}
