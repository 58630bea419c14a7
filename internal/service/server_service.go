package service

import (
	"errors"
	"log"
	"sort"
	"sync"

	"city.newnan/ark-console/internal/config"
	"city.newnan/ark-console/pkg/rconsession"
)

// ServerService 持有所有服务器的RCON会话，是路由层访问会话的入口
type ServerService struct {
	store *config.ArkStore
	jobs  *JobService

	mutex    sync.RWMutex
	sessions map[string]*rconsession.Session
}

// NewServerService 创建服务器会话服务
func NewServerService(store *config.ArkStore, jobs *JobService) *ServerService {
	return &ServerService{
		store:    store,
		jobs:     jobs,
		sessions: make(map[string]*rconsession.Session),
	}
}

// Start 按当前配置为每个服务器建立会话并启动后台循环
func (s *ServerService) Start() {
	cfg := s.store.Snapshot()
	settings := s.store.Settings()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, server := range cfg.Servers {
		if _, ok := s.sessions[server.Key]; ok {
			continue
		}
		session := rconsession.New(server, settings)
		if s.jobs != nil {
			session.SetJobStore(s.jobs)
		}
		session.Start()
		s.sessions[server.Key] = session
		log.Printf("已启动服务器会话: %s (%s)", server.Key, server.DisplayName)
	}
}

// Close 关闭所有会话
func (s *ServerService) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for key, session := range s.sessions {
		session.Close()
		delete(s.sessions, key)
	}
}

// Get 根据标识获取会话
func (s *ServerService) Get(key string) (*rconsession.Session, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if session, ok := s.sessions[key]; ok {
		return session, nil
	}
	return nil, errors.New("服务器不存在: " + key)
}

// All 返回全部会话，按标识排序
func (s *ServerService) All() []*rconsession.Session {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	sessions := make([]*rconsession.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Server().Key < sessions[j].Server().Key
	})
	return sessions
}

// Keys 返回全部服务器标识，按字典序排序
func (s *ServerService) Keys() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	keys := make([]string, 0, len(s.sessions))
	for key := range s.sessions {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
