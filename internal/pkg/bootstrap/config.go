// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 是服务的全部配置。先取默认值，再叠加 YAML 文件，最后由环境变量覆盖。
type Config struct {
	App   AppConfig   `yaml:"app"`
	Infra InfraConfig `yaml:"infra"`
}

type AppConfig struct {
	ServiceName string `yaml:"serviceName"`
	Port        int    `yaml:"port"`
	LogLevel    string `yaml:"logLevel"`
	// BranchID 是本实例服务的门店
	BranchID string `yaml:"branchId"`
	// RequestTimeout 是每次上游调用（数据库、Redis、Kafka 写入）的超时
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	// LiveCounterInterval 是实时计数轮询间隔
	LiveCounterInterval time.Duration `yaml:"liveCounterInterval"`
	// ConfigRefreshInterval 是门店配置的后台刷新间隔
	ConfigRefreshInterval time.Duration `yaml:"configRefreshInterval"`
	// DistributedLock 打开后使用 ZooKeeper 做跨实例的订单锁
	DistributedLock bool `yaml:"distributedLock"`
}

type InfraConfig struct {
	MySQL     MySQLConfig     `yaml:"mysql"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
	Nacos     NacosConfig     `yaml:"nacos"`
}

type MySQLConfig struct {
	Addr     string `yaml:"addr"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	EventsTopic   string   `yaml:"eventsTopic"`
	ReceiptsTopic string   `yaml:"receiptsTopic"`
	DLTTopic      string   `yaml:"dltTopic"`
	GroupID       string   `yaml:"groupId"`
}

type RedisConfig struct {
	Addrs string `yaml:"addrs"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type ZookeeperConfig struct {
	Servers        string        `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"sessionTimeout"`
	LockRoot       string        `yaml:"lockRoot"`
}

type NacosConfig struct {
	ServerAddrs string `yaml:"serverAddrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
	// DataID 不为空时，从 Nacos 配置中心拉取 YAML 并监听变更
	DataID string `yaml:"dataId"`
}

var current atomic.Pointer[Config]

// Default 返回本地开发用的默认配置
func Default() *Config {
	return &Config{
		App: AppConfig{
			ServiceName:           "order-desk",
			Port:                  8080,
			LogLevel:              "info",
			BranchID:              "main",
			RequestTimeout:        5 * time.Second,
			LiveCounterInterval:   15 * time.Second,
			ConfigRefreshInterval: time.Minute,
		},
		Infra: InfraConfig{
			MySQL: MySQLConfig{Addr: "localhost:3306", User: "root", Database: "orderdesk"},
			Kafka: KafkaConfig{
				Brokers:       []string{"localhost:9092"},
				EventsTopic:   "order-events",
				ReceiptsTopic: "order-receipts",
				DLTTopic:      "order-events-dlt",
				GroupID:       "order-desk",
			},
			Redis:     RedisConfig{Addrs: "localhost:6379"},
			Jaeger:    JaegerConfig{Endpoint: "http://localhost:14268/api/traces"},
			Zookeeper: ZookeeperConfig{Servers: "localhost:2181", SessionTimeout: 10 * time.Second, LockRoot: "/orderdesk/locks"},
			Nacos:     NacosConfig{Group: "DEFAULT_GROUP"},
		},
	}
}

// Load 读取配置。path 为空时只使用默认值和环境变量。
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}
	applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Merge 把 Nacos 下发的 YAML 叠加到一份配置副本上
func Merge(base *Config, raw []byte) (*Config, error) {
	next := *base
	next.Infra.Kafka.Brokers = append([]string(nil), base.Infra.Kafka.Brokers...)
	if err := yaml.Unmarshal(raw, &next); err != nil {
		return nil, errors.Wrap(err, "parse remote config")
	}
	if err := next.validate(); err != nil {
		return nil, err
	}
	return &next, nil
}

func (c *Config) validate() error {
	if c.App.BranchID == "" {
		return errors.New("config: app.branchId is required")
	}
	if c.App.Port <= 0 {
		return errors.Errorf("config: invalid app.port %d", c.App.Port)
	}
	if c.App.RequestTimeout <= 0 {
		return errors.New("config: app.requestTimeout must be positive")
	}
	if c.App.LiveCounterInterval <= 0 {
		return errors.New("config: app.liveCounterInterval must be positive")
	}
	return nil
}

func applyEnv(c *Config) {
	c.App.ServiceName = getEnv("SERVICE_NAME", c.App.ServiceName)
	c.App.LogLevel = getEnv("LOG_LEVEL", c.App.LogLevel)
	c.App.BranchID = getEnv("BRANCH_ID", c.App.BranchID)
	if p, err := strconv.Atoi(getEnv("HTTP_PORT", "")); err == nil {
		c.App.Port = p
	}

	c.Infra.MySQL.Addr = getEnv("MYSQL_ADDR", c.Infra.MySQL.Addr)
	c.Infra.MySQL.User = getEnv("MYSQL_USER", c.Infra.MySQL.User)
	c.Infra.MySQL.Password = getEnv("MYSQL_PASSWORD", c.Infra.MySQL.Password)
	c.Infra.MySQL.Database = getEnv("MYSQL_DATABASE", c.Infra.MySQL.Database)
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		c.Infra.Kafka.Brokers = strings.Split(brokers, ",")
	}
	c.Infra.Redis.Addrs = getEnv("REDIS_ADDRS", c.Infra.Redis.Addrs)
	c.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", c.Infra.Jaeger.Endpoint)
	c.Infra.Zookeeper.Servers = getEnv("ZOOKEEPER_SERVERS", c.Infra.Zookeeper.Servers)
	c.Infra.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", c.Infra.Nacos.ServerAddrs)
	c.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", c.Infra.Nacos.Namespace)
	c.Infra.Nacos.Group = getEnv("NACOS_GROUP", c.Infra.Nacos.Group)
	c.Infra.Nacos.DataID = getEnv("NACOS_DATA_ID", c.Infra.Nacos.DataID)
}

// Init 从 CONFIG_FILE 加载配置并设为当前配置
func Init() (*Config, error) {
	cfg, err := Load(getEnv("CONFIG_FILE", ""))
	if err != nil {
		return nil, err
	}
	current.Store(cfg)
	return cfg, nil
}

// GetCurrentConfig 返回当前生效的配置；未初始化时返回默认配置
func GetCurrentConfig() *Config {
	if cfg := current.Load(); cfg != nil {
		return cfg
	}
	return Default()
}

func setCurrentConfig(cfg *Config) {
	current.Store(cfg)
}

// getEnv 从环境变量中读取配置
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
