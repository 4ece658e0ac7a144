package model

import "time"

// ----------------------------------------------------
// ================ Logging ================
type LogConfig struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`
	TimeFormat string `envconfig:"LOG_TIME_FORMAT" default:"rfc3339"`
	Output     string `envconfig:"LOG_OUTPUT" default:"stdout"`
	FilePath   string `envconfig:"LOG_FILE_PATH" default:"logs/app.log"`
	Format     string `envconfig:"LOG_FORMAT" default:"json"`
}

// ----------------------------------------------------
// ================ LLM ================
// LLMConfig selects the chat model provider and its generation settings
type LLMConfig struct {
	Provider             string        `envconfig:"LLM_PROVIDER" default:"openai"`
	APIKey               string        `envconfig:"LLM_API_KEY"`
	BaseURL              string        `envconfig:"LLM_BASE_URL" default:"https://openrouter.ai/api/v1"`
	Model                string        `envconfig:"LLM_MODEL" default:"google/gemini-2.0-flash-001"`
	StructureModel       string        `envconfig:"LLM_STRUCTURE_MODEL"`
	Temperature          float32       `envconfig:"LLM_TEMPERATURE" default:"0.8"`
	TopP                 float32       `envconfig:"LLM_TOP_P" default:"0.9"`
	TopK                 int           `envconfig:"LLM_TOP_K" default:"40"`
	MaxTokens            int           `envconfig:"LLM_MAX_TOKENS" default:"300"`
	StructureTemperature float32       `envconfig:"LLM_STRUCTURE_TEMPERATURE" default:"0.1"`
	StructureMaxTokens   int           `envconfig:"LLM_STRUCTURE_MAX_TOKENS" default:"1024"`
	Timeout              time.Duration `envconfig:"LLM_TIMEOUT" default:"30s"`
}

// StructureModelName falls back to the chat model when no dedicated one is set
func (c LLMConfig) StructureModelName() string {
	if c.StructureModel != "" {
		return c.StructureModel
	}
	return c.Model
}

// ----------------------------------------------------
// ================ Commerce backend ================
type CommerceConfig struct {
	APIURL            string        `envconfig:"COMMERCE_API_URL" default:"http://localhost:4000"`
	SearchPath        string        `envconfig:"COMMERCE_SEARCH_PATH" default:"/api/user/searchProduct"`
	AddToCartPath     string        `envconfig:"COMMERCE_ADD_TO_CART_PATH" default:"/api/user/addToCart"`
	ClearCartPath     string        `envconfig:"COMMERCE_CLEAR_CART_PATH" default:"/api/user/clearCart"`
	WarehouseID       string        `envconfig:"COMMERCE_WAREHOUSE_ID" default:"1"`
	OutletID          string        `envconfig:"COMMERCE_OUTLET_ID" default:"11512"`
	DeviceID          string        `envconfig:"COMMERCE_DEVICE_ID" default:"1ac9e66c065553ff8b7aa07f9bbef4e9"`
	CustomerToken     string        `envconfig:"COMMERCE_CUSTOMER_TOKEN"`
	DefaultLat        float64       `envconfig:"COMMERCE_DEFAULT_LAT" default:"28.6016406"`
	DefaultLong       float64       `envconfig:"COMMERCE_DEFAULT_LONG" default:"77.3896809"`
	SearchLimit       int           `envconfig:"COMMERCE_SEARCH_LIMIT" default:"5"`
	MatchPolicy       string        `envconfig:"COMMERCE_MATCH_POLICY" default:"contains-then-first"`
	SearchRetries     uint          `envconfig:"COMMERCE_SEARCH_RETRIES" default:"2"`
	Timeout           time.Duration `envconfig:"COMMERCE_TIMEOUT" default:"10s"`
	BreakerFailures   uint32        `envconfig:"COMMERCE_BREAKER_FAILURES" default:"5"`
	BreakerOpenPeriod time.Duration `envconfig:"COMMERCE_BREAKER_OPEN_PERIOD" default:"30s"`
}

// ----------------------------------------------------
// ================ Conversation ================
type ConversationConfig struct {
	MaxTurns   int           `envconfig:"CONVERSATION_MAX_TURNS" default:"20"`
	TTL        time.Duration `envconfig:"CONVERSATION_TTL" default:"1h"`
	Store      string        `envconfig:"CONVERSATION_STORE" default:"memory"`
	RedisURL   string        `envconfig:"REDIS_URL"`
	JournalDir string        `envconfig:"JOURNAL_DIR"`
	ConfigPath string        `envconfig:"ASSISTANT_CONFIG" default:"config.yaml"`

	// JournalRetention drops journal entries older than this after each turn; 0 keeps everything
	JournalRetention time.Duration `envconfig:"JOURNAL_RETENTION" default:"720h"`
}

// ----------------------------------------------------
// ================ HTTP server ================
type ServerConfig struct {
	Addr            string        `envconfig:"SERVER_ADDR" default:":8080"`
	AllowedOrigins  []string      `envconfig:"SERVER_ALLOWED_ORIGINS" default:"*"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
}

// ----------------------------------------------------
// ================ Speech ================
type SpeechConfig struct {
	SettleDelay        time.Duration `envconfig:"SPEECH_SETTLE_DELAY" default:"500ms"`
	DuplicateThreshold float64       `envconfig:"SPEECH_DUPLICATE_THRESHOLD" default:"0.8"`
}
