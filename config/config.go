package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Strategy StrategyConfig `yaml:"strategy"`
	Scan     ScanConfig     `yaml:"scan"`
	API      APIConfig      `yaml:"api"`
	Storage  StorageConfig  `yaml:"storage"`
	Web      WebConfig      `yaml:"web"`
	Log      LogConfig      `yaml:"log"`
}

// StrategyConfig controla las reglas de entrada, sizing y salida.
type StrategyConfig struct {
	// Rango de entrada (amplio — el score ES el filtro, no solo el rango)
	EntryNoMin float64 `yaml:"entry_no_min"`
	EntryNoMax float64 `yaml:"entry_no_max"`

	// Score mínimo para abrir posición
	MinEntryScore int `yaml:"min_entry_score"`

	// Trailing stop y reglas de salida
	TrailStopDistance float64 `yaml:"trail_stop_distance"` // 3¢ por debajo del precio
	HalfExitGain      float64 `yaml:"half_exit_gain"`      // vender 50% cuando +7¢
	HardStopDrop      float64 `yaml:"hard_stop_drop"`      // hard stop si cae 5¢

	// Umbrales de volumen para el sub-score de volumen
	ScoreVolumeHigh float64 `yaml:"score_volume_high"` // +20 pts
	ScoreVolumeMid  float64 `yaml:"score_volume_mid"`  // +15 pts
	ScoreVolumeLow  float64 `yaml:"score_volume_low"`  // +10 pts

	// Sizing por score (interpolación lineal)
	BasePositionPct float64 `yaml:"base_position_pct"` // fracción en score mínimo
	MaxPositionPct  float64 `yaml:"max_position_pct"`  // fracción en score 100

	// Historial de precios del scorer
	PriceHistoryTTLSeconds int `yaml:"price_history_ttl_seconds"`

	MaxPositions   int     `yaml:"max_positions"`
	InitialCapital float64 `yaml:"initial_capital"`

	MonitorIntervalSeconds     int `yaml:"monitor_interval_seconds"`
	PriceUpdateIntervalSeconds int `yaml:"price_update_interval_seconds"`

	AutoStart bool `yaml:"auto_start"`
}

// ScanConfig controla el descubrimiento de mercados en Gamma.
type ScanConfig struct {
	MinVolume     float64  `yaml:"min_volume"`
	ScanDaysAhead int      `yaml:"scan_days_ahead"`
	MinLocalHour  int      `yaml:"min_local_hour"`
	MaxCLOBVerify int      `yaml:"max_clob_verify"` // candidatos verificados contra el CLOB por ciclo
	Cities        []string `yaml:"cities"`
}

// APIConfig contiene los base URLs de las APIs.
type APIConfig struct {
	CLOBBase  string `yaml:"clob_base"`
	GammaBase string `yaml:"gamma_base"`
}

// StorageConfig controla dónde se persiste el estado.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// WebConfig controla el servidor del dashboard.
type WebConfig struct {
	Addr string `yaml:"addr"` // host:port del API HTTP
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// CityUTCOffset mapea ciudades soportadas a su offset UTC en horas.
// Hardcodeado — no dependemos de tzdata en el contenedor de despliegue.
var CityUTCOffset = map[string]int{
	"chicago":      -6,
	"dallas":       -6,
	"atlanta":      -5,
	"miami":        -5,
	"nyc":          -5,
	"boston":       -5,
	"toronto":      -5,
	"seattle":      -8,
	"los-angeles":  -8,
	"houston":      -6,
	"phoenix":      -7,
	"denver":       -7,
	"london":       0,
	"paris":        1,
	"ankara":       3,
	"seoul":        9,
	"wellington":   13,
	"sao-paulo":    -3,
	"buenos-aires": -3,
}

// defaultCities es la lista de ciudades escaneadas si el YAML no define otra.
var defaultCities = []string{
	"chicago", "dallas", "atlanta", "miami", "nyc",
	"seattle", "london", "wellington", "toronto", "seoul",
	"ankara", "paris", "sao-paulo", "buenos-aires",
	"los-angeles", "houston", "phoenix", "denver", "boston",
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// MonitorInterval devuelve el intervalo del ciclo principal como time.Duration.
func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.Strategy.MonitorIntervalSeconds) * time.Second
}

// PriceUpdateInterval devuelve el intervalo del refresco de precios.
func (c *Config) PriceUpdateInterval() time.Duration {
	return time.Duration(c.Strategy.PriceUpdateIntervalSeconds) * time.Second
}

// PriceHistoryTTL devuelve el TTL de los historiales del scorer.
func (c *Config) PriceHistoryTTL() time.Duration {
	return time.Duration(c.Strategy.PriceHistoryTTLSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("INITIAL_CAPITAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Strategy.InitialCapital = f
		}
	}
	if v := os.Getenv("MIN_ENTRY_SCORE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Strategy.MinEntryScore = n
		}
	}
	if v := os.Getenv("AUTO_START"); v != "" {
		cfg.Strategy.AutoStart = v == "true" || v == "1"
	}
	if v := os.Getenv("WEB_ADDR"); v != "" {
		cfg.Web.Addr = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	s := &cfg.Strategy
	if s.EntryNoMin <= 0 {
		s.EntryNoMin = 0.78
	}
	if s.EntryNoMax <= 0 {
		s.EntryNoMax = 0.93
	}
	if s.MinEntryScore <= 0 {
		s.MinEntryScore = 60
	}
	if s.TrailStopDistance <= 0 {
		s.TrailStopDistance = 0.03
	}
	if s.HalfExitGain <= 0 {
		s.HalfExitGain = 0.07
	}
	if s.HardStopDrop <= 0 {
		s.HardStopDrop = 0.05
	}
	if s.ScoreVolumeHigh <= 0 {
		s.ScoreVolumeHigh = 500
	}
	if s.ScoreVolumeMid <= 0 {
		s.ScoreVolumeMid = 300
	}
	if s.ScoreVolumeLow <= 0 {
		s.ScoreVolumeLow = 200
	}
	if s.BasePositionPct <= 0 {
		s.BasePositionPct = 0.06
	}
	if s.MaxPositionPct <= 0 {
		s.MaxPositionPct = 0.10
	}
	if s.PriceHistoryTTLSeconds <= 0 {
		s.PriceHistoryTTLSeconds = 3600
	}
	if s.MaxPositions <= 0 {
		s.MaxPositions = 20
	}
	if s.InitialCapital <= 0 {
		s.InitialCapital = 100
	}
	if s.MonitorIntervalSeconds <= 0 {
		s.MonitorIntervalSeconds = 30
	}
	if s.PriceUpdateIntervalSeconds <= 0 {
		s.PriceUpdateIntervalSeconds = 10
	}

	if cfg.Scan.MinVolume <= 0 {
		cfg.Scan.MinVolume = 200
	}
	if cfg.Scan.ScanDaysAhead < 0 {
		cfg.Scan.ScanDaysAhead = 1
	}
	if cfg.Scan.MinLocalHour <= 0 {
		cfg.Scan.MinLocalHour = 11
	}
	if cfg.Scan.MaxCLOBVerify <= 0 {
		cfg.Scan.MaxCLOBVerify = 20
	}
	if len(cfg.Scan.Cities) == 0 {
		cfg.Scan.Cities = defaultCities
	}

	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "weatherbot.db"
	}
	if cfg.Web.Addr == "" {
		cfg.Web.Addr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
