package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"advisor/pkg/errors"
)

// Config is the explicit configuration passed into the pipeline at construction.
type Config struct {
	App           AppConfig
	AI            AIConfig
	Search        SearchConfig
	MarketData    MarketDataConfig
	Filings       FilingsConfig
	Pipeline      PipelineConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	ErrorTracking ErrorTrackingConfig
	Metrics       MetricsConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"advisor"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

type AIConfig struct {
	OpenAIKey      string        `envconfig:"OPENAI_API_KEY"`
	BaseURL        string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	RequestTimeout time.Duration `envconfig:"AI_REQUEST_TIMEOUT" default:"120s"`
	RateLimitRPM   int           `envconfig:"AI_RATE_LIMIT_RPM" default:"60"`
	Preflight      bool          `envconfig:"AI_PREFLIGHT" default:"true"`

	ProfileModel    string `envconfig:"AI_PROFILE_MODEL" default:"gpt-4o-mini"`
	ResearchModel   string `envconfig:"AI_RESEARCH_MODEL" default:"gpt-4o"`
	AnalystModel    string `envconfig:"AI_ANALYST_MODEL" default:"gpt-4o-mini"`
	RiskModel       string `envconfig:"AI_RISK_MODEL" default:"gpt-4o-mini"`
	StrategistModel string `envconfig:"AI_STRATEGIST_MODEL" default:"gpt-4o-mini"`
	ReportModel     string `envconfig:"AI_REPORT_MODEL" default:"gpt-4o"`
}

// Models returns every distinct model referenced by the stage settings.
func (c AIConfig) Models() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, m := range []string{c.ProfileModel, c.ResearchModel, c.AnalystModel, c.RiskModel, c.StrategistModel, c.ReportModel} {
		if _, ok := seen[m]; ok || m == "" {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

const (
	SearchProviderGoogle = "google"
	SearchProviderSerper = "serper"
)

type SearchConfig struct {
	Provider     string `envconfig:"SEARCH_PROVIDER" default:"google"`
	GoogleAPIKey string `envconfig:"GOOGLE_API_KEY"`
	GoogleCSEID  string `envconfig:"GOOGLE_CSE_ID"`
	SerperAPIKey string `envconfig:"SERPER_API_KEY"`
	Results      int    `envconfig:"SEARCH_RESULTS" default:"5"`
}

type MarketDataConfig struct {
	AlphaVantageKey string `envconfig:"AV_API_KEY"`
	BaseURL         string `envconfig:"AV_BASE_URL" default:"https://www.alphavantage.co/query"`
	RateLimitRPM    int    `envconfig:"AV_RATE_LIMIT_RPM" default:"75"`
}

type FilingsConfig struct {
	UserAgent string `envconfig:"SEC_USER_AGENT" default:"InvestmentAdvisor analysis@investment.com"`
	TempRoot  string `envconfig:"SEC_TEMP_ROOT" default:"./sec_filings_temp"`
	BaseURL   string `envconfig:"SEC_BASE_URL" default:"https://www.sec.gov"`
	DataURL   string `envconfig:"SEC_DATA_URL" default:"https://data.sec.gov"`
	// SEC fair access policy allows 10 requests per second.
	RateLimitRPS int `envconfig:"SEC_RATE_LIMIT_RPS" default:"8"`
}

// PipelineConfig holds the per-stage turn budgets and timeouts.
type PipelineConfig struct {
	ProfileTurns      int           `envconfig:"PIPELINE_TURNS_PROFILE" default:"20"`
	ResearchTurns     int           `envconfig:"PIPELINE_TURNS_RESEARCH" default:"40"`
	QuantitativeTurns int           `envconfig:"PIPELINE_TURNS_QUANTITATIVE" default:"100"`
	QualitativeTurns  int           `envconfig:"PIPELINE_TURNS_QUALITATIVE" default:"100"`
	AllocationTurns   int           `envconfig:"PIPELINE_TURNS_ALLOCATION" default:"60"`
	ReportTurns       int           `envconfig:"PIPELINE_TURNS_REPORT" default:"30"`
	StageTimeout      time.Duration `envconfig:"PIPELINE_STAGE_TIMEOUT" default:"15m"`
	ToolTimeout       time.Duration `envconfig:"PIPELINE_TOOL_TIMEOUT" default:"90s"`
	PromptsDir        string        `envconfig:"PIPELINE_PROMPTS_DIR"`
	ContextWarnBytes  int           `envconfig:"PIPELINE_CONTEXT_WARN_BYTES" default:"200000"`
	MaxParallelTools  int           `envconfig:"PIPELINE_MAX_PARALLEL_TOOLS" default:"4"`
	ToolRetries       int           `envconfig:"PIPELINE_TOOL_RETRIES" default:"0"`
	ToolRetryBackoff  time.Duration `envconfig:"PIPELINE_TOOL_RETRY_BACKOFF" default:"2s"`
}

type RedisConfig struct {
	Enabled  bool          `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string        `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int           `envconfig:"REDIS_PORT" default:"6379"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTL time.Duration `envconfig:"REDIS_CACHE_TTL" default:"15m"`
	// KeyPrefix namespaces every cached tool result, so several
	// deployments can share one Redis database.
	KeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"advisor:"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Enabled    bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers    []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	StageTopic string   `envconfig:"KAFKA_STAGE_TOPIC" default:"advisor.stage.completed"`
	RunTopic   string   `envconfig:"KAFKA_RUN_TOPIC" default:"advisor.run.finished"`
	GroupID    string   `envconfig:"KAFKA_GROUP_ID" default:"advisor-events"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

type MetricsConfig struct {
	// Addr enables the /metrics endpoint when non-empty, e.g. ":9090".
	Addr string `envconfig:"METRICS_ADDR"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}

// Validate checks the credentials and turn budgets the pipeline needs before
// the first stage runs. All problems are reported together.
func (c *Config) Validate() error {
	errs := &errors.MultiError{}

	if strings.TrimSpace(c.AI.OpenAIKey) == "" {
		errs.Add(errors.NewValidationError("OPENAI_API_KEY", "model backend credential is required", ""))
	}
	if strings.TrimSpace(c.MarketData.AlphaVantageKey) == "" {
		errs.Add(errors.NewValidationError("AV_API_KEY", "market data credential is required", ""))
	}

	switch c.Search.Provider {
	case SearchProviderGoogle:
		if c.Search.GoogleAPIKey == "" {
			errs.Add(errors.NewValidationError("GOOGLE_API_KEY", "search credential is required for provider google", ""))
		}
		if c.Search.GoogleCSEID == "" {
			errs.Add(errors.NewValidationError("GOOGLE_CSE_ID", "search engine id is required for provider google", ""))
		}
	case SearchProviderSerper:
		if c.Search.SerperAPIKey == "" {
			errs.Add(errors.NewValidationError("SERPER_API_KEY", "search credential is required for provider serper", ""))
		}
	default:
		errs.Add(errors.NewValidationError("SEARCH_PROVIDER", "must be google or serper", c.Search.Provider))
	}

	turns := map[string]int{
		"PIPELINE_TURNS_PROFILE":      c.Pipeline.ProfileTurns,
		"PIPELINE_TURNS_RESEARCH":     c.Pipeline.ResearchTurns,
		"PIPELINE_TURNS_QUANTITATIVE": c.Pipeline.QuantitativeTurns,
		"PIPELINE_TURNS_QUALITATIVE":  c.Pipeline.QualitativeTurns,
		"PIPELINE_TURNS_ALLOCATION":   c.Pipeline.AllocationTurns,
		"PIPELINE_TURNS_REPORT":       c.Pipeline.ReportTurns,
	}
	for _, field := range sortedKeys(turns) {
		if turns[field] <= 0 {
			errs.Add(errors.NewValidationError(field, "turn budget must be positive", turns[field]))
		}
	}

	if c.Redis.Enabled && c.Redis.Host == "" {
		errs.Add(errors.NewValidationError("REDIS_HOST", "required when REDIS_ENABLED", ""))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs.Add(errors.NewValidationError("KAFKA_BROKERS", "required when KAFKA_ENABLED", ""))
	}
	if c.ErrorTracking.Enabled && c.ErrorTracking.SentryDSN == "" {
		errs.Add(errors.NewValidationError("SENTRY_DSN", "required when ERROR_TRACKING_ENABLED", ""))
	}

	if errs.HasErrors() {
		return fmt.Errorf("%w: %w", errors.ErrConfig, errs)
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
