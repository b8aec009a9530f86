package database

import (
	"context"
	"sync"
	"time"

	"clientbridge/pkg/logger"
)

// backendPool 进程级后端单例
type backendPool struct {
	instance *Backend
	config   DatabaseConfig
	mu       sync.RWMutex
	lastUsed time.Time
}

var (
	globalPool *backendPool
	poolMutex  sync.Mutex
)

// GetBackend 获取后端连接（单例模式，配置变化或健康检查失败时重建）
func GetBackend(ctx context.Context, config DatabaseConfig) (*Backend, error) {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool != nil && !shouldRecreate(ctx, globalPool, config) {
		globalPool.mu.Lock()
		globalPool.lastUsed = time.Now()
		globalPool.mu.Unlock()
		return globalPool.instance, nil
	}

	logger.Info("creating database backend")
	if globalPool != nil && globalPool.instance != nil {
		globalPool.instance.DB.Close()
	}

	instance, err := NewBackend(config)
	if err != nil {
		globalPool = nil
		return nil, err
	}
	globalPool = &backendPool{
		instance: instance,
		config:   config,
		lastUsed: time.Now(),
	}
	return instance, nil
}

// shouldRecreate 判断是否需要重新创建连接
func shouldRecreate(ctx context.Context, pool *backendPool, newConfig DatabaseConfig) bool {
	if pool.instance == nil {
		return true
	}
	if pool.config != newConfig {
		logger.Info("database configuration changed, recreating backend")
		return true
	}

	pool.mu.RLock()
	expired := time.Since(pool.lastUsed) > 30*time.Minute
	pool.mu.RUnlock()
	if !expired {
		return false
	}

	// 长时间空闲后先做健康检查
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.instance.DB.HealthCheck(checkCtx); err != nil {
		logger.Warn("database health check failed, recreating backend", "error", err)
		return true
	}
	return false
}

// CloseBackend 关闭全局后端（进程退出时调用）
func CloseBackend() error {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil || globalPool.instance == nil {
		return nil
	}
	err := globalPool.instance.DB.Close()
	globalPool = nil
	return err
}

// GetConnectionStats 获取连接统计信息
func GetConnectionStats() map[string]interface{} {
	poolMutex.Lock()
	defer poolMutex.Unlock()

	if globalPool == nil {
		return map[string]interface{}{
			"status":    "no_connection",
			"last_used": nil,
		}
	}

	globalPool.mu.RLock()
	lastUsed := globalPool.lastUsed
	globalPool.mu.RUnlock()

	return map[string]interface{}{
		"status":    "connected",
		"last_used": lastUsed.Format(time.RFC3339),
		"age":       time.Since(lastUsed).String(),
		"config": map[string]interface{}{
			"use_local_db": globalPool.config.UseLocalDB,
			"has_postgres": globalPool.config.PostgresDSN != "",
			"has_supabase": globalPool.config.SupabaseURL != "",
		},
	}
}
