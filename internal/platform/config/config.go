package config

import (
	"fmt"
	"math/big"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the arbitrage scanner
type Config struct {
	Ethereum      EthereumConfig      `mapstructure:"ethereum"`
	Scan          ScanConfig          `mapstructure:"scan"`
	Gas           GasConfig           `mapstructure:"gas"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	HTTP          HTTPConfig          `mapstructure:"http"`
}

// EthereumConfig holds Ethereum connection configuration
type EthereumConfig struct {
	RPCEndpoints []RPCEndpoint `mapstructure:"rpc_endpoints"`
}

// RPCEndpoint represents an Ethereum RPC endpoint
type RPCEndpoint struct {
	URL    string `mapstructure:"url"`
	Weight int    `mapstructure:"weight"`
}

// ScanConfig holds the arbitrage scan settings
type ScanConfig struct {
	// Mode selects the evaluation strategy: screen, exact or constant_product
	Mode string `mapstructure:"mode"`

	// Pools lists the V3 pool addresses to scan
	Pools []string `mapstructure:"pools"`
	// ReservePools lists the constant-product pool addresses to scan
	ReservePools []string `mapstructure:"reserve_pools"`

	// TradeSizeToken0 is the probe size for exact evaluation, in human
	// token0 units
	TradeSizeToken0 float64 `mapstructure:"trade_size_token0"`

	MaxTickCrossings int `mapstructure:"max_tick_crossings"`
	TickWindow       int `mapstructure:"tick_window"`
	MaxWindowRetries int `mapstructure:"max_window_retries"`

	MaxPairs    int `mapstructure:"max_pairs"`
	Concurrency int `mapstructure:"concurrency"`
	MaxReported int `mapstructure:"max_reported"`

	// Interval between scan passes
	Interval time.Duration `mapstructure:"interval"`

	// Constant-product trade-size scan
	ScanSteps        int     `mapstructure:"scan_steps"`
	MaxFracOfReserve float64 `mapstructure:"max_frac_of_reserve"`
}

// GasConfig holds gas cost estimation settings
type GasConfig struct {
	GasUnits         uint64   `mapstructure:"gas_units"`
	GasPriceWei      string   `mapstructure:"gas_price_wei"`
	NumeraireSymbols []string `mapstructure:"numeraire_symbols"`

	parsedGasPriceWei *big.Int
}

// GasPriceWeiInt returns the parsed gas price, nil when unset
func (g *GasConfig) GasPriceWeiInt() *big.Int {
	return g.parsedGasPriceWei
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig holds caching configuration
type CacheConfig struct {
	L1MaxSize int           `mapstructure:"l1_max_size"`
	L2TTL     time.Duration `mapstructure:"l2_ttl"`
}

// StorageConfig holds opportunity persistence configuration
type StorageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// MetricsConfig holds metrics settings
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// TracingConfig holds tracing settings
type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Sampler  string `mapstructure:"sampler"` // always, never, ratio
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port int `mapstructure:"port"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// Read environment variables
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not fatal if env vars are set
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Parse and validate
	if err := cfg.parse(); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Scan defaults
	v.SetDefault("scan.mode", "exact")
	v.SetDefault("scan.trade_size_token0", 1.0)
	v.SetDefault("scan.max_tick_crossings", 80)
	v.SetDefault("scan.tick_window", 1200)
	v.SetDefault("scan.max_window_retries", 2)
	v.SetDefault("scan.max_pairs", 64)
	v.SetDefault("scan.concurrency", 4)
	v.SetDefault("scan.max_reported", 25)
	v.SetDefault("scan.interval", "12s")
	v.SetDefault("scan.scan_steps", 18)
	v.SetDefault("scan.max_frac_of_reserve", 0.003)

	// Gas defaults
	v.SetDefault("gas.gas_units", 320000)
	v.SetDefault("gas.gas_price_wei", "20000000000") // 20 gwei
	v.SetDefault("gas.numeraire_symbols", []string{"WETH", "ETH", "USDC", "USDT", "DAI"})

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Cache defaults
	v.SetDefault("cache.l1_max_size", 1000)
	v.SetDefault("cache.l2_ttl", "60s")

	// Storage defaults
	v.SetDefault("storage.enabled", true)
	v.SetDefault("storage.path", "opportunities.db")

	// Observability defaults
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.port", 9091)
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.sampler", "always")

	// HTTP defaults
	v.SetDefault("http.port", 8080)
}

// parse parses string values into their proper types
func (c *Config) parse() error {
	if c.Gas.GasPriceWei != "" {
		price := new(big.Int)
		if _, ok := price.SetString(c.Gas.GasPriceWei, 10); !ok || price.Sign() < 0 {
			return fmt.Errorf("invalid gas price: %s", c.Gas.GasPriceWei)
		}
		c.Gas.parsedGasPriceWei = price
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Scan validation
	switch c.Scan.Mode {
	case "screen", "exact", "constant_product":
	default:
		return fmt.Errorf("invalid scan mode: %s", c.Scan.Mode)
	}

	if c.Scan.Mode == "constant_product" {
		if len(c.Scan.ReservePools) == 0 {
			return fmt.Errorf("at least one reserve pool is required in constant_product mode")
		}
	} else if len(c.Scan.Pools) == 0 {
		return fmt.Errorf("at least one pool is required")
	}

	if c.Scan.TradeSizeToken0 <= 0 {
		return fmt.Errorf("trade size must be > 0")
	}

	if c.Scan.MaxFracOfReserve < 0 || c.Scan.MaxFracOfReserve > 1 {
		return fmt.Errorf("max fraction of reserve must be within [0, 1]")
	}

	// Ethereum validation
	if len(c.Ethereum.RPCEndpoints) == 0 {
		return fmt.Errorf("at least one RPC endpoint is required")
	}

	// Redis validation
	if c.Redis.Enabled && c.Redis.Address == "" {
		return fmt.Errorf("redis address is required when redis is enabled")
	}

	// Storage validation
	if c.Storage.Enabled && c.Storage.Path == "" {
		return fmt.Errorf("storage path is required when storage is enabled")
	}

	// Observability validation
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Observability.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Observability.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Observability.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Observability.Logging.Format)
	}

	return nil
}
