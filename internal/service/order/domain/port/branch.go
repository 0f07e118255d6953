package port

import (
	"context"

	"orderdesk/internal/service/order/domain"
)

// BranchConfigSource 是门店配置的读取端口
type BranchConfigSource interface {
	// Load 读取最新配置；配置不存在时返回 domain.ErrConfigUnavailable
	Load(ctx context.Context, branchID string) (domain.BranchConfig, error)
}

// GuardCompiler 把门店配置的规则编译成可执行的流转守卫
type GuardCompiler interface {
	Compile(rules []domain.GuardRule) ([]domain.TransitionGuard, error)
}
