/*
Package rconsession 提供对 ARK: Survival Evolved 服务器的后台 RCON 会话管理。

主要特性:

  - 命令队列：多个调用方（聊天桥接、Web控制台、内部调度器）通过标签化队列
    提交命令并各自取回回复
  - 聊天转发：轮询服务器聊天内容，过滤并修饰后投递到聊天队列
  - 断线恢复：快速重试、本地回环探测、进程存活轮询三级重连策略
  - 维护作业：带倒计时广播的存档/关闭/重启流程，每个服务器同时最多一个作业
  - 备份：存档文件复制到按时间戳命名的目录，并按保留天数清理过期备份

此包依赖于github.com/xrjr/mcutils来实现RCON协议通信（ARK使用Source RCON协议）。

基本用法:

	session := rconsession.New(serverConfig, settingsFunc)
	session.Start()
	defer session.Close()

	// 提交命令
	session.Submit("ListPlayers", rconsession.TagWeb, nil, true)

	// 取回回复（非阻塞）
	if reply, ok := session.Take(rconsession.TagWeb); ok {
		fmt.Println(reply.Reply)
	}

	// 发起带10分钟倒计时的存档并备份
	session.Save(rconsession.TagWeb, true, 10, "定时维护")
*/
package rconsession
