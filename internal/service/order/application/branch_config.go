// internal/service/order/application/branch_config.go
package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"orderdesk/internal/pkg/logger"
	"orderdesk/internal/service/order/domain"
	"orderdesk/internal/service/order/domain/port"

	"golang.org/x/sync/singleflight"
)

type branchSnapshot struct {
	cfg      domain.BranchConfig
	guards   []domain.TransitionGuard
	loadedAt time.Time
}

// BranchConfigProvider 缓存门店配置的只读快照。
// 并发刷新同一门店时只会向配置源请求一次；刷新失败保留上一份成功的快照。
type BranchConfigProvider struct {
	source   port.BranchConfigSource
	compiler port.GuardCompiler
	timeout  time.Duration

	group     singleflight.Group
	mu        sync.RWMutex
	snapshots map[string]branchSnapshot
}

// NewBranchConfigProvider compiler 可以为 nil，此时忽略门店配置的规则
func NewBranchConfigProvider(source port.BranchConfigSource, compiler port.GuardCompiler, timeout time.Duration) *BranchConfigProvider {
	return &BranchConfigProvider{
		source:    source,
		compiler:  compiler,
		timeout:   timeout,
		snapshots: make(map[string]branchSnapshot),
	}
}

// Refresh 从配置源重新加载门店配置
func (p *BranchConfigProvider) Refresh(ctx context.Context, branchID string) (domain.BranchConfig, error) {
	v, err, _ := p.group.Do(branchID, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		cfg, err := p.source.Load(loadCtx, branchID)
		if err != nil {
			return nil, err
		}
		snap := branchSnapshot{cfg: cfg, loadedAt: time.Now()}
		if p.compiler != nil && len(cfg.Guards) > 0 {
			if snap.guards, err = p.compiler.Compile(cfg.Guards); err != nil {
				return nil, fmt.Errorf("branch %s: %w", branchID, err)
			}
		}

		p.mu.Lock()
		p.snapshots[branchID] = snap
		p.mu.Unlock()
		return cfg, nil
	})
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("branch_id", branchID).Msg("Branch config refresh failed")
		return domain.BranchConfig{}, fmt.Errorf("%w: %v", domain.ErrConfigUnavailable, err)
	}
	return v.(domain.BranchConfig), nil
}

// Current 返回已加载的快照，从未加载成功时 ok 为 false
func (p *BranchConfigProvider) Current(branchID string) (domain.BranchConfig, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	snap, ok := p.snapshots[branchID]
	return snap.cfg, ok
}

// Ensure 返回已加载的快照；尚未加载时同步加载一次
func (p *BranchConfigProvider) Ensure(ctx context.Context, branchID string) (domain.BranchConfig, error) {
	if cfg, ok := p.Current(branchID); ok {
		return cfg, nil
	}
	return p.Refresh(ctx, branchID)
}

// Policy 返回门店的流转前置条件
func (p *BranchConfigProvider) Policy(ctx context.Context, branchID string) (domain.TransitionPolicy, error) {
	if _, err := p.Ensure(ctx, branchID); err != nil {
		return domain.TransitionPolicy{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	snap := p.snapshots[branchID]
	return domain.TransitionPolicy{
		RequiresCancelNote: snap.cfg.RequiresCancelNote,
		Guards:             snap.guards,
	}, nil
}

// RunRefresher 按固定间隔刷新，直到 ctx 结束
func (p *BranchConfigProvider) RunRefresher(ctx context.Context, branchID string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, _ = p.Refresh(ctx, branchID)
		}
	}
}
