// internal/service/order/infrastructure/adapter/branch_config_redis_store.go
package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"orderdesk/internal/pkg/logger"
	"orderdesk/internal/pkg/money"
	"orderdesk/internal/pkg/redis"
	"orderdesk/internal/service/order/domain"
	"orderdesk/internal/service/order/domain/port"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

const (
	saveBranchConfigScriptName = "save_branch_config"
	// BranchConfigChannel 上发布变更的门店 id
	BranchConfigChannel = "orderdesk:branch-config:changed"
)

// BranchConfigRedisStore 实现了 port.BranchConfigSource，门店配置以 JSON 存在 Redis 中
type BranchConfigRedisStore struct {
	client *redis.Client
}

var _ port.BranchConfigSource = (*BranchConfigRedisStore)(nil)

// NewBranchConfigRedisStore 创建时加载写配置用的 Lua 脚本
func NewBranchConfigRedisStore(client *redis.Client) (*BranchConfigRedisStore, error) {
	if err := client.LoadScriptFromContent(saveBranchConfigScriptName, saveBranchConfigScript); err != nil {
		return nil, fmt.Errorf("failed to load branch config script: %w", err)
	}
	return &BranchConfigRedisStore{client: client}, nil
}

func configKey(branchID string) string {
	return fmt.Sprintf("orderdesk:branch:{%s}:config", branchID)
}

func versionKey(branchID string) string {
	return fmt.Sprintf("orderdesk:branch:{%s}:version", branchID)
}

// Load 读取门店配置，不存在或内容非法都视为配置不可用
func (s *BranchConfigRedisStore) Load(ctx context.Context, branchID string) (domain.BranchConfig, error) {
	raw, err := s.client.GetClient().Get(ctx, configKey(branchID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.BranchConfig{}, fmt.Errorf("%w: branch %s has no configuration", domain.ErrConfigUnavailable, branchID)
	}
	if err != nil {
		return domain.BranchConfig{}, errors.Wrapf(err, "load config of branch %s", branchID)
	}
	return DecodeBranchConfig(branchID, raw)
}

// Save 原子地写入配置、递增版本号并通知其他实例，返回新版本号
func (s *BranchConfigRedisStore) Save(ctx context.Context, cfg domain.BranchConfig) (int64, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return 0, errors.Wrap(err, "encode branch config")
	}
	if _, err := DecodeBranchConfig(cfg.BranchID, raw); err != nil {
		return 0, err
	}
	res, err := s.client.RunScript(ctx, saveBranchConfigScriptName,
		[]string{configKey(cfg.BranchID), versionKey(cfg.BranchID)},
		string(raw), BranchConfigChannel, cfg.BranchID)
	if err != nil {
		return 0, errors.Wrapf(err, "save config of branch %s", cfg.BranchID)
	}
	version, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected result type from save script: %T", res)
	}
	return version, nil
}

// Watch 订阅配置变更，直到 ctx 结束。onChange 收到的是门店 id。
func (s *BranchConfigRedisStore) Watch(ctx context.Context, onChange func(branchID string)) error {
	sub := s.client.GetClient().Subscribe(ctx, BranchConfigChannel)
	defer sub.Close()

	ch := sub.Channel()
	logger.Ctx(ctx).Info().Str("channel", BranchConfigChannel).Msg("Watching branch config changes")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("branch config subscription closed")
			}
			onChange(msg.Payload)
		}
	}
}

// DecodeBranchConfig 解析并校验门店配置
func DecodeBranchConfig(branchID string, raw []byte) (domain.BranchConfig, error) {
	var cfg domain.BranchConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return domain.BranchConfig{}, fmt.Errorf("%w: branch %s: %v", domain.ErrConfigUnavailable, branchID, err)
	}
	if cfg.BranchID != branchID {
		return domain.BranchConfig{}, fmt.Errorf("%w: config belongs to branch %q, not %q", domain.ErrConfigUnavailable, cfg.BranchID, branchID)
	}
	if !money.InPercentRange(cfg.Tax.Rate) {
		return domain.BranchConfig{}, fmt.Errorf("%w: branch %s: tax rate %s out of range", domain.ErrConfigUnavailable, branchID, cfg.Tax.Rate)
	}
	if cfg.Receipt.Copies < 0 {
		return domain.BranchConfig{}, fmt.Errorf("%w: branch %s: negative receipt copies", domain.ErrConfigUnavailable, branchID)
	}
	return cfg, nil
}

var saveBranchConfigScript = `
-- KEYS[1]: 配置 key
-- KEYS[2]: 版本号 key
-- ARGV[1]: 配置 JSON
-- ARGV[2]: 通知频道
-- ARGV[3]: 门店 id
redis.call('set', KEYS[1], ARGV[1])
local version = redis.call('incr', KEYS[2])
redis.call('publish', ARGV[2], ARGV[3])
return version
`
