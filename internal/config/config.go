package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Ingest      IngestConfig      `mapstructure:"ingest"`
	ResultStore ResultStoreConfig `mapstructure:"result_store"`
	Redis       RedisConfig       `mapstructure:"redis"`
	MinIO       MinIOConfig       `mapstructure:"minio"`
	JWT         JWTConfig         `mapstructure:"jwt"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// IngestConfig 上传与输出相关配置
type IngestConfig struct {
	OrderSheet     string `mapstructure:"order_sheet"`
	StyleSheet     string `mapstructure:"style_sheet"`
	PlanSheet      string `mapstructure:"plan_sheet"`
	CSVEncoding    string `mapstructure:"csv_encoding"`
	MaxUploadMB    int64  `mapstructure:"max_upload_mb"`
	PreviewRows    int    `mapstructure:"preview_rows"`
	OutputFilename string `mapstructure:"output_filename"`
	OutputSheet    string `mapstructure:"output_sheet"`
}

// ResultStoreConfig 下载结果存储：memory / redis / minio
type ResultStoreConfig struct {
	Driver string        `mapstructure:"driver"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// JWTConfig 为空 Secret 时 API 不鉴权
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

func Load() (*Config, error) {
	v := viper.New()

	// 设置配置文件
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	// 环境变量覆盖
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// 配置文件不存在，使用默认值和环境变量
	}

	bindEnvVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 60*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("ingest.order_sheet", "Sheet1")
	v.SetDefault("ingest.csv_encoding", "utf-8")
	v.SetDefault("ingest.max_upload_mb", 32)
	v.SetDefault("ingest.preview_rows", 50)
	v.SetDefault("ingest.output_filename", "pid_final.xlsx")
	v.SetDefault("ingest.output_sheet", "Sheet1")

	v.SetDefault("result_store.driver", "memory")
	v.SetDefault("result_store.ttl", 15*time.Minute)

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("minio.bucket", "obid-results")
}

func bindEnvVariables(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.mode", "SERVER_MODE")

	// Log
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.format", "LOG_FORMAT")

	// Ingest
	v.BindEnv("ingest.order_sheet", "OB_SHEET")
	v.BindEnv("ingest.csv_encoding", "CSV_ENCODING")

	// Result store
	v.BindEnv("result_store.driver", "RESULT_STORE")
	v.BindEnv("result_store.ttl", "RESULT_TTL")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// MinIO
	v.BindEnv("minio.endpoint", "MINIO_ENDPOINT")
	v.BindEnv("minio.access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("minio.secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("minio.bucket", "MINIO_BUCKET")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.ResultStore.Driver {
	case "memory", "redis":
	case "minio":
		if c.MinIO.Endpoint == "" {
			return fmt.Errorf("result_store.driver=minio requires minio.endpoint")
		}
	default:
		return fmt.Errorf("unknown result_store.driver %q", c.ResultStore.Driver)
	}
	if c.ResultStore.TTL <= 0 {
		return fmt.Errorf("result_store.ttl must be positive")
	}
	if c.Ingest.MaxUploadMB <= 0 {
		return fmt.Errorf("ingest.max_upload_mb must be positive")
	}
	return nil
}
