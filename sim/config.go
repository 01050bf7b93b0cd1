package sim

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// 快照类型
type SnapshotMode int

const (
	// 全程累计的车辆位置直方图
	SNAPSHOT_HISTOGRAM SnapshotMode = iota
	// 每个采样点一帧的街道占用
	SNAPSHOT_FRAMES
	SNAPSHOT_BOTH
)

func (m SnapshotMode) String() string {
	switch m {
	case SNAPSHOT_HISTOGRAM:
		return "histogram"
	case SNAPSHOT_FRAMES:
		return "frames"
	case SNAPSHOT_BOTH:
		return "both"
	default:
		return fmt.Sprintf("SnapshotMode(%d)", int(m))
	}
}

func (m *SnapshotMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "histogram":
		*m = SNAPSHOT_HISTOGRAM
	case "frames":
		*m = SNAPSHOT_FRAMES
	case "both":
		*m = SNAPSHOT_BOTH
	default:
		return fmt.Errorf("unknown snapshot mode %q [histogram, frames, both]", text)
	}
	return nil
}

func (m SnapshotMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m SnapshotMode) histogram() bool { return m == SNAPSHOT_HISTOGRAM || m == SNAPSHOT_BOTH }
func (m SnapshotMode) frames() bool    { return m == SNAPSHOT_FRAMES || m == SNAPSHOT_BOTH }

type Config struct {
	Seed             int64 `mapstructure:"seed" json:"seed" bson:"seed"`
	NumCars          int   `mapstructure:"num_cars" json:"num_cars" bson:"num_cars"`
	MaxTicks         int   `mapstructure:"max_ticks" json:"max_ticks" bson:"max_ticks"`
	SamplingInterval int   `mapstructure:"sampling_interval" json:"sampling_interval" bson:"sampling_interval"`

	// 每tick前进距离的上下限
	BaseSpeed float64 `mapstructure:"base_speed" json:"base_speed" bson:"base_speed"`
	TopSpeed  float64 `mapstructure:"top_speed" json:"top_speed" bson:"top_speed"`
	// 每tick的随机速度因子范围
	SpeedFactorMin float64 `mapstructure:"speed_factor_min" json:"speed_factor_min" bson:"speed_factor_min"`
	SpeedFactorMax float64 `mapstructure:"speed_factor_max" json:"speed_factor_max" bson:"speed_factor_max"`

	// 拥堵系数的底数
	CongestionBase  float64 `mapstructure:"congestion_base" json:"congestion_base" bson:"congestion_base"`
	HeuristicWeight float64 `mapstructure:"heuristic_weight" json:"heuristic_weight" bson:"heuristic_weight"`
	// 起终点仅从权重低于中位数的街道中选取
	MedianFilter bool `mapstructure:"median_filter" json:"median_filter" bson:"median_filter"`

	WeightScale float64 `mapstructure:"weight_scale" json:"weight_scale" bson:"weight_scale"`
	MinWeight   float64 `mapstructure:"min_weight" json:"min_weight" bson:"min_weight"`

	SnapshotMode    SnapshotMode `mapstructure:"snapshot_mode" json:"snapshot_mode" bson:"snapshot_mode"`
	Workers         int          `mapstructure:"workers" json:"workers" bson:"workers"`
	LogInterval     int          `mapstructure:"log_interval" json:"log_interval" bson:"log_interval"`
	MaxPlanAttempts int          `mapstructure:"max_plan_attempts" json:"max_plan_attempts" bson:"max_plan_attempts"`
}

func DefaultConfig() *Config {
	return &Config{
		Seed:             0,
		NumCars:          1000,
		MaxTicks:         10000,
		SamplingInterval: 100,
		BaseSpeed:        5,
		TopSpeed:         15,
		SpeedFactorMin:   1.0 / 12,
		SpeedFactorMax:   1.0 / 8,
		CongestionBase:   0.25,
		HeuristicWeight:  1_000_000,
		MedianFilter:     true,
		WeightScale:      100_000,
		MinWeight:        1e-6,
		SnapshotMode:     SNAPSHOT_HISTOGRAM,
		Workers:          runtime.GOMAXPROCS(0),
		LogInterval:      1000,
		MaxPlanAttempts:  1000,
	}
}

func (c *Config) Validate() error {
	switch {
	case c.NumCars <= 0:
		return fmt.Errorf("num_cars should be positive, got %d", c.NumCars)
	case c.MaxTicks < 0:
		return fmt.Errorf("max_ticks should not be negative, got %d", c.MaxTicks)
	case c.SamplingInterval <= 0:
		return fmt.Errorf("sampling_interval should be positive, got %d", c.SamplingInterval)
	case c.BaseSpeed < 0 || c.TopSpeed < c.BaseSpeed:
		return fmt.Errorf("speed band [%v, %v] is invalid", c.BaseSpeed, c.TopSpeed)
	case c.SpeedFactorMin < 0 || c.SpeedFactorMax < c.SpeedFactorMin:
		return fmt.Errorf("speed factor range [%v, %v] is invalid", c.SpeedFactorMin, c.SpeedFactorMax)
	case c.CongestionBase <= 0 || c.CongestionBase > 1:
		return fmt.Errorf("congestion_base should be in (0, 1], got %v", c.CongestionBase)
	case c.HeuristicWeight < 0:
		return fmt.Errorf("heuristic_weight should not be negative, got %v", c.HeuristicWeight)
	case c.WeightScale <= 0:
		return fmt.Errorf("weight_scale should be positive, got %v", c.WeightScale)
	case c.MinWeight <= 0:
		return fmt.Errorf("min_weight should be positive, got %v", c.MinWeight)
	case c.Workers <= 0:
		return fmt.Errorf("workers should be positive, got %d", c.Workers)
	case c.MaxPlanAttempts <= 0:
		return fmt.Errorf("max_plan_attempts should be positive, got %d", c.MaxPlanAttempts)
	}
	return nil
}

// 读取仿真配置，未给出的项使用DefaultConfig
// 环境变量DUALTRAFFIC_<KEY>可覆盖文件中的值
func LoadConfig(cfgFile string) (*Config, error) {
	v := viper.New()
	def := DefaultConfig()
	defaults := map[string]any{
		"seed":              def.Seed,
		"num_cars":          def.NumCars,
		"max_ticks":         def.MaxTicks,
		"sampling_interval": def.SamplingInterval,
		"base_speed":        def.BaseSpeed,
		"top_speed":         def.TopSpeed,
		"speed_factor_min":  def.SpeedFactorMin,
		"speed_factor_max":  def.SpeedFactorMax,
		"congestion_base":   def.CongestionBase,
		"heuristic_weight":  def.HeuristicWeight,
		"median_filter":     def.MedianFilter,
		"weight_scale":      def.WeightScale,
		"min_weight":        def.MinWeight,
		"snapshot_mode":     def.SnapshotMode.String(),
		"workers":           def.Workers,
		"log_interval":      def.LogInterval,
		"max_plan_attempts": def.MaxPlanAttempts,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix("DUALTRAFFIC")
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Infof("using config file %s", v.ConfigFileUsed())
	}

	var cfg Config
	decoderConfigOption := viper.DecoderConfigOption(func(dc *mapstructure.DecoderConfig) {
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			dc.DecodeHook,
		)
	})
	if err := v.Unmarshal(&cfg, decoderConfigOption); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
