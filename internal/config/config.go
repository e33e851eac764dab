package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config é a configuração resolvida do processo.
type Config struct {
	Env      string
	LogLevel string

	HTTPPort      string
	PublicBaseURL string

	DatabaseURL string
	RabbitMQURL string
	RedisURL    string

	ApifyBaseURL string
	ApifyToken   string
	SpyActorID   string

	GeminiAPIKey string
	GeminiModel  string

	MailHost      string
	MailPort      int
	MailUser      string
	MailPassword  string
	MailFrom      string
	OperatorEmail string

	LoopInterval       time.Duration
	BatchSize          int
	ClaimTTL           time.Duration
	MaxAttempts        int
	AnalystParallelism int
	SlowSiteThreshold  time.Duration

	HunterCeilingPerLead float64
	HunterCostPerCall    float64
	SpyCeilingPerLead    float64
	SpyCostPerCall       float64
	MinCallsPerDay       int

	ValueDelay         time.Duration
	SocialProofDelay   time.Duration
	BreakupDelay       time.Duration
	QualifiedThreshold int

	BillingAlertLead time.Duration
	BillingGrace     time.Duration

	ChatRateLimit  int
	ChatRateWindow time.Duration

	// vazio desliga as rotas /admin
	AdminToken string

	// só com proxy reverso na frente: o IP do chat vem do X-Forwarded-For
	TrustProxy bool
}

// configFile espelha o YAML de configs/pipeline.yaml.
type configFile struct {
	HTTP struct {
		Port          string `yaml:"port"`
		PublicBaseURL string `yaml:"public_base_url"`
	} `yaml:"http"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RabbitMQURL string `yaml:"rabbitmq_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"dependencies"`
	Integrations struct {
		ApifyBaseURL string `yaml:"apify_base_url"`
		SpyActorID   string `yaml:"spy_actor_id"`
		GeminiModel  string `yaml:"gemini_model"`
	} `yaml:"integrations"`
	Pipeline struct {
		LoopInterval       time.Duration `yaml:"loop_interval"`
		BatchSize          int           `yaml:"batch_size"`
		ClaimTTL           time.Duration `yaml:"claim_ttl"`
		MaxAttempts        int           `yaml:"max_attempts"`
		AnalystParallelism int           `yaml:"analyst_parallelism"`
		SlowSiteThreshold  time.Duration `yaml:"slow_site_threshold"`
	} `yaml:"pipeline"`
	Budget struct {
		HunterCeilingPerLead float64 `yaml:"hunter_ceiling_per_lead"`
		HunterCostPerCall    float64 `yaml:"hunter_cost_per_call"`
		SpyCeilingPerLead    float64 `yaml:"spy_ceiling_per_lead"`
		SpyCostPerCall       float64 `yaml:"spy_cost_per_call"`
		MinCallsPerDay       int     `yaml:"min_calls_per_day"`
	} `yaml:"budget"`
	Nurture struct {
		ValueDelay         time.Duration `yaml:"value_delay"`
		SocialProofDelay   time.Duration `yaml:"social_proof_delay"`
		BreakupDelay       time.Duration `yaml:"breakup_delay"`
		QualifiedThreshold int           `yaml:"qualified_threshold"`
	} `yaml:"nurture"`
	Billing struct {
		AlertLead time.Duration `yaml:"alert_lead"`
		Grace     time.Duration `yaml:"grace"`
	} `yaml:"billing"`
}

// Load resolve na ordem: defaults -> arquivo YAML -> variáveis de ambiente.
func Load(path string) (Config, error) {
	cfg := Config{
		Env:                  "development",
		LogLevel:             "info",
		HTTPPort:             "8080",
		PublicBaseURL:        "http://localhost:8080",
		ApifyBaseURL:         "https://api.apify.com",
		SpyActorID:           "apify~instagram-scraper",
		GeminiModel:          "gemini-2.0-flash",
		MailPort:             587,
		MailFrom:             "nao-responda@prospect-pipeline.dev",
		LoopInterval:         10 * time.Minute,
		BatchSize:            20,
		ClaimTTL:             15 * time.Minute,
		MaxAttempts:          3,
		AnalystParallelism:   4,
		SlowSiteThreshold:    3 * time.Second,
		HunterCeilingPerLead: 0.30,
		HunterCostPerCall:    0.01,
		SpyCeilingPerLead:    0.15,
		SpyCostPerCall:       0.02,
		MinCallsPerDay:       1,
		ValueDelay:           3 * 24 * time.Hour,
		SocialProofDelay:     7 * 24 * time.Hour,
		BreakupDelay:         15 * 24 * time.Hour,
		QualifiedThreshold:   3,
		BillingAlertLead:     3 * 24 * time.Hour,
		BillingGrace:         2 * 24 * time.Hour,
		ChatRateLimit:        10,
		ChatRateWindow:       time.Minute,
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err == nil {
			if err := applyFile(&cfg, raw); err != nil {
				return Config{}, err
			}
		}
	}

	cfg.Env = envOrDefault("APP_ENV", cfg.Env)
	cfg.LogLevel = strings.ToLower(envOrDefault("LOG_LEVEL", cfg.LogLevel))
	cfg.HTTPPort = envOrDefault("PORT", cfg.HTTPPort)
	cfg.PublicBaseURL = strings.TrimSuffix(envOrDefault("PUBLIC_BASE_URL", cfg.PublicBaseURL), "/")
	cfg.DatabaseURL = envOrDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.RabbitMQURL = envOrDefault("RABBITMQ_URL", cfg.RabbitMQURL)
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.ApifyBaseURL = envOrDefault("APIFY_URL", cfg.ApifyBaseURL)
	cfg.ApifyToken = envOrDefault("APIFY_TOKEN", cfg.ApifyToken)
	cfg.SpyActorID = envOrDefault("APIFY_SPY_ACTOR", cfg.SpyActorID)
	cfg.GeminiAPIKey = envOrDefault("GEMINI_API_KEY", cfg.GeminiAPIKey)
	cfg.GeminiModel = envOrDefault("GEMINI_MODEL", cfg.GeminiModel)
	cfg.MailHost = envOrDefault("MAIL_HOST", cfg.MailHost)
	cfg.MailPort = envInt("MAIL_PORT", cfg.MailPort)
	cfg.MailUser = envOrDefault("MAIL_USER", cfg.MailUser)
	cfg.MailPassword = envOrDefault("MAIL_PASS", cfg.MailPassword)
	cfg.MailFrom = envOrDefault("MAIL_FROM", cfg.MailFrom)
	cfg.OperatorEmail = envOrDefault("OPERATOR_EMAIL", cfg.OperatorEmail)

	cfg.LoopInterval = envDuration("PIPELINE_INTERVAL", cfg.LoopInterval)
	cfg.BatchSize = envInt("PIPELINE_BATCH_SIZE", cfg.BatchSize)
	cfg.ClaimTTL = envDuration("PIPELINE_CLAIM_TTL", cfg.ClaimTTL)
	cfg.MaxAttempts = envInt("PIPELINE_MAX_ATTEMPTS", cfg.MaxAttempts)
	cfg.AnalystParallelism = envInt("ANALYST_PARALLELISM", cfg.AnalystParallelism)
	cfg.SlowSiteThreshold = envDuration("ANALYST_SLOW_SITE", cfg.SlowSiteThreshold)

	cfg.HunterCeilingPerLead = envFloat("HUNTER_CEILING_PER_LEAD", cfg.HunterCeilingPerLead)
	cfg.HunterCostPerCall = envFloat("HUNTER_COST_PER_CALL", cfg.HunterCostPerCall)
	cfg.SpyCeilingPerLead = envFloat("SPY_CEILING_PER_LEAD", cfg.SpyCeilingPerLead)
	cfg.SpyCostPerCall = envFloat("SPY_COST_PER_CALL", cfg.SpyCostPerCall)
	cfg.MinCallsPerDay = envInt("BUDGET_MIN_CALLS", cfg.MinCallsPerDay)

	cfg.ValueDelay = envDuration("NURTURE_VALUE_DELAY", cfg.ValueDelay)
	cfg.SocialProofDelay = envDuration("NURTURE_SOCIAL_PROOF_DELAY", cfg.SocialProofDelay)
	cfg.BreakupDelay = envDuration("NURTURE_BREAKUP_DELAY", cfg.BreakupDelay)
	cfg.QualifiedThreshold = envInt("NURTURE_QUALIFIED_THRESHOLD", cfg.QualifiedThreshold)

	cfg.BillingAlertLead = envDuration("BILLING_ALERT_LEAD", cfg.BillingAlertLead)
	cfg.BillingGrace = envDuration("BILLING_GRACE", cfg.BillingGrace)
	cfg.ChatRateLimit = envInt("CHAT_RATE_LIMIT", cfg.ChatRateLimit)
	cfg.ChatRateWindow = envDuration("CHAT_RATE_WINDOW", cfg.ChatRateWindow)
	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")
	cfg.TrustProxy = envBool("TRUST_PROXY", cfg.TrustProxy)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	setString(&cfg.HTTPPort, f.HTTP.Port)
	setString(&cfg.PublicBaseURL, f.HTTP.PublicBaseURL)
	setString(&cfg.DatabaseURL, f.Dependencies.PostgresURL)
	setString(&cfg.RabbitMQURL, f.Dependencies.RabbitMQURL)
	setString(&cfg.RedisURL, f.Dependencies.RedisURL)
	setString(&cfg.ApifyBaseURL, f.Integrations.ApifyBaseURL)
	setString(&cfg.SpyActorID, f.Integrations.SpyActorID)
	setString(&cfg.GeminiModel, f.Integrations.GeminiModel)

	setDuration(&cfg.LoopInterval, f.Pipeline.LoopInterval)
	setInt(&cfg.BatchSize, f.Pipeline.BatchSize)
	setDuration(&cfg.ClaimTTL, f.Pipeline.ClaimTTL)
	setInt(&cfg.MaxAttempts, f.Pipeline.MaxAttempts)
	setInt(&cfg.AnalystParallelism, f.Pipeline.AnalystParallelism)
	setDuration(&cfg.SlowSiteThreshold, f.Pipeline.SlowSiteThreshold)

	setFloat(&cfg.HunterCeilingPerLead, f.Budget.HunterCeilingPerLead)
	setFloat(&cfg.HunterCostPerCall, f.Budget.HunterCostPerCall)
	setFloat(&cfg.SpyCeilingPerLead, f.Budget.SpyCeilingPerLead)
	setFloat(&cfg.SpyCostPerCall, f.Budget.SpyCostPerCall)
	setInt(&cfg.MinCallsPerDay, f.Budget.MinCallsPerDay)

	setDuration(&cfg.ValueDelay, f.Nurture.ValueDelay)
	setDuration(&cfg.SocialProofDelay, f.Nurture.SocialProofDelay)
	setDuration(&cfg.BreakupDelay, f.Nurture.BreakupDelay)
	setInt(&cfg.QualifiedThreshold, f.Nurture.QualifiedThreshold)

	setDuration(&cfg.BillingAlertLead, f.Billing.AlertLead)
	setDuration(&cfg.BillingGrace, f.Billing.Grace)
	return nil
}

func (c Config) Validate() error {
	switch {
	case c.LoopInterval <= 0:
		return fmt.Errorf("pipeline loop interval must be positive")
	case c.BatchSize <= 0:
		return fmt.Errorf("pipeline batch size must be positive")
	case c.ClaimTTL <= 0:
		return fmt.Errorf("claim ttl must be positive")
	case c.HunterCostPerCall <= 0 || c.SpyCostPerCall <= 0:
		return fmt.Errorf("cost per call must be positive")
	case c.ValueDelay <= 0 || c.SocialProofDelay <= 0 || c.BreakupDelay <= 0:
		return fmt.Errorf("nurture delays must be positive")
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
