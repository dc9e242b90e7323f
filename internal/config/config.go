package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the name of the JSON config file looked up in the config dir.
const FileName = "neatdrive.cfg.json"

// SimConfig holds population and termination settings.
type SimConfig struct {
	PopulationSize int           `json:"populationSize" mapstructure:"populationSize"`
	Generations    int           `json:"generations" mapstructure:"generations"`
	TimeLimit      time.Duration `json:"timeLimit" mapstructure:"timeLimit"`
	MaxTicks       int           `json:"maxTicks" mapstructure:"maxTicks"`
	Parallel       bool          `json:"parallel" mapstructure:"parallel"`
	Seed           int64         `json:"seed" mapstructure:"seed"`
}

// PointConfig is a pixel position with an optional heading and size.
type PointConfig struct {
	X       float64 `json:"x" mapstructure:"x"`
	Y       float64 `json:"y" mapstructure:"y"`
	Heading float64 `json:"heading" mapstructure:"heading"`
	Size    float64 `json:"size" mapstructure:"size"`
}

// TrackConfig selects the track source and its spawn/finish positions.
type TrackConfig struct {
	Name         string      `json:"name" mapstructure:"name"`
	Image        string      `json:"image" mapstructure:"image"`
	RoadGrid     string      `json:"roadGrid" mapstructure:"roadGrid"`
	TileSize     int         `json:"tileSize" mapstructure:"tileSize"`
	CanvasWidth  int         `json:"canvasWidth" mapstructure:"canvasWidth"`
	CanvasHeight int         `json:"canvasHeight" mapstructure:"canvasHeight"`
	Spawn        PointConfig `json:"spawn" mapstructure:"spawn"`
	Finish       PointConfig `json:"finish" mapstructure:"finish"`
}

// ReportConfig controls what is kept and persisted per generation.
type ReportConfig struct {
	IncludeSensors     bool `json:"includeSensors" mapstructure:"includeSensors"`
	CheckpointInterval int  `json:"checkpointInterval" mapstructure:"checkpointInterval"`
	MaxHistory         int  `json:"maxHistory" mapstructure:"maxHistory"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// WebSocketConfig holds streaming backend settings
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// StorageConfig holds storage backend configuration
type StorageConfig struct {
	Type      string          `json:"type" mapstructure:"type"`
	Memory    MemoryConfig    `json:"memory" mapstructure:"memory"`
	SQLite    SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket"`
}

// InfluxConfig holds InfluxDB metrics settings
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout   time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
	Endpoint       string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `json:"insecure" mapstructure:"insecure"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("sim.populationSize", 30)
	viper.SetDefault("sim.generations", 50)
	viper.SetDefault("sim.timeLimit", "60s")
	viper.SetDefault("sim.maxTicks", 0)
	viper.SetDefault("sim.parallel", false)
	viper.SetDefault("sim.seed", 1)

	viper.SetDefault("track.name", "default")
	viper.SetDefault("track.image", "")
	viper.SetDefault("track.roadGrid", "")
	viper.SetDefault("track.tileSize", 32)
	viper.SetDefault("track.canvasWidth", 1254)
	viper.SetDefault("track.canvasHeight", 604)
	viper.SetDefault("track.spawn.x", 100.0)
	viper.SetDefault("track.spawn.y", 100.0)
	viper.SetDefault("track.spawn.heading", 0.0)
	viper.SetDefault("track.spawn.size", 40.0)
	viper.SetDefault("track.finish.x", 600.0)
	viper.SetDefault("track.finish.y", 300.0)
	viper.SetDefault("track.finish.size", 40.0)

	viper.SetDefault("report.includeSensors", true)
	viper.SetDefault("report.checkpointInterval", 1)
	viper.SetDefault("report.maxHistory", 100)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./runs")
	viper.SetDefault("storage.memory.compressOutput", false)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.websocket.url", "")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "neatdrive")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "neatdrive")
	viper.SetDefault("influx.bucket", "training")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "neatdrive")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "30s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// GetSimConfig returns the simulation settings.
func GetSimConfig() SimConfig {
	return SimConfig{
		PopulationSize: viper.GetInt("sim.populationSize"),
		Generations:    viper.GetInt("sim.generations"),
		TimeLimit:      viper.GetDuration("sim.timeLimit"),
		MaxTicks:       viper.GetInt("sim.maxTicks"),
		Parallel:       viper.GetBool("sim.parallel"),
		Seed:           viper.GetInt64("sim.seed"),
	}
}

// GetTrackConfig returns the track settings.
func GetTrackConfig() TrackConfig {
	point := func(prefix string) PointConfig {
		return PointConfig{
			X:       viper.GetFloat64(prefix + ".x"),
			Y:       viper.GetFloat64(prefix + ".y"),
			Heading: viper.GetFloat64(prefix + ".heading"),
			Size:    viper.GetFloat64(prefix + ".size"),
		}
	}
	return TrackConfig{
		Name:         viper.GetString("track.name"),
		Image:        viper.GetString("track.image"),
		RoadGrid:     viper.GetString("track.roadGrid"),
		TileSize:     viper.GetInt("track.tileSize"),
		CanvasWidth:  viper.GetInt("track.canvasWidth"),
		CanvasHeight: viper.GetInt("track.canvasHeight"),
		Spawn:        point("track.spawn"),
		Finish:       point("track.finish"),
	}
}

// GetReportConfig returns the reporting settings.
func GetReportConfig() ReportConfig {
	return ReportConfig{
		IncludeSensors:     viper.GetBool("report.includeSensors"),
		CheckpointInterval: viper.GetInt("report.checkpointInterval"),
		MaxHistory:         viper.GetInt("report.maxHistory"),
	}
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
