package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config captures everything the server needs from the environment. Values are
// read once in FromEnv so main stays lean and services receive plain structs.
type Config struct {
	Addr string

	Redis    RedisConfig
	Session  SessionConfig
	Signer   SignerConfig
	Domestic DomesticConfig
	European EuropeanConfig
	Catalog  CatalogConfig
	Access   AccessConfig
	Audit    AuditConfig
	UCILog   UCILogConfig

	// DedupMarginDays is the maximum distance in days between anchor dates of
	// two events that may still be merged as duplicates.
	DedupMarginDays int
}

// RedisConfig holds connection settings for the session store backend.
type RedisConfig struct {
	Host     string
	Port     int
	DB       int
	Password string
}

// Addr returns the host:port dial address.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SessionConfig controls prepare-issue session entries.
type SessionConfig struct {
	KeyPrefix  string
	Expiration time.Duration
}

// SignerConfig holds the outbound endpoints and HTTP behavior shared by the
// domestic and European signer clients.
type SignerConfig struct {
	DomesticPrepareIssueURL string
	DomesticSigningURL      string
	DomesticPaperURL        string
	EuropeanSigningURL      string

	Timeout     time.Duration
	MaxAttempts int
	CABundle    string // optional PEM path for a private trust store
}

// DomesticConfig holds validity windows for the strip layout.
type DomesticConfig struct {
	StripValidityHours       int
	MaxIssuanceDays          int
	MaxRandomOverlapHours    int
	VaccinationValidityDays  int
	PositiveTestRecoveryDays int
	PositiveTestValidityDays int
	NegativeTestValidityHrs  int
}

// EuropeanConfig holds EU certificate settings.
type EuropeanConfig struct {
	ExpirationDays int
	Issuer         string
	Country        string
}

// CatalogConfig names the static reference data files loaded at startup.
type CatalogConfig struct {
	HPKCodesPath      string
	EligibleMAPath    string
	EligibleMPPath    string
	EligibleTTPath    string
	RequiredDosesPath string
	DisclosurePath    string
}

// AccessConfig drives the access-token path.
type AccessConfig struct {
	BSNRetrievalURL string
	TVSSigningKey   string
	ProvidersPath   string
	TokenTTL        time.Duration
}

// AuditConfig enables the Kafka issuance audit trail when brokers are set.
type AuditConfig struct {
	Brokers []string
	Topic   string
}

// UCILogConfig configures the UCI log store; empty DSN selects the in-memory store.
type UCILogConfig struct {
	PostgresDSN string
}

// FromEnv builds a Config from environment variables, applying defaults for
// everything that has a safe one.
func FromEnv() Config {
	return Config{
		Addr: getString("CERTO_ADDR", ":8080"),
		Redis: RedisConfig{
			Host:     getString("REDIS_HOST", "localhost"),
			Port:     getInt("REDIS_PORT", 6379),
			DB:       getInt("REDIS_DB", 0),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Session: SessionConfig{
			KeyPrefix:  getString("REDIS_KEY_PREFIX", "certo"),
			Expiration: time.Duration(getInt("EXPIRATION_TIME_IN_SECONDS", 300)) * time.Second,
		},
		Signer: SignerConfig{
			DomesticPrepareIssueURL: os.Getenv("DOMESTIC_NL_VWS_PREPARE_ISSUE_URL"),
			DomesticSigningURL:      os.Getenv("DOMESTIC_NL_VWS_ONLINE_SIGNING_URL"),
			DomesticPaperURL:        os.Getenv("DOMESTIC_NL_VWS_PAPER_SIGNING_URL"),
			EuropeanSigningURL:      os.Getenv("EU_INTERNATIONAL_SIGNING_URL"),
			Timeout:                 getDuration("SIGNER_TIMEOUT", 30*time.Second),
			MaxAttempts:             getInt("SIGNER_MAX_ATTEMPTS", 5),
			CABundle:                os.Getenv("SIGNER_CA_BUNDLE_PATH"),
		},
		Domestic: DomesticConfig{
			StripValidityHours:       getInt("DOMESTIC_STRIP_VALIDITY_HOURS", 24),
			MaxIssuanceDays:          getInt("DOMESTIC_MAXIMUM_ISSUANCE_DAYS", 180),
			MaxRandomOverlapHours:    getInt("DOMESTIC_MAXIMUM_RANDOMIZED_OVERLAP_HOURS", 4),
			VaccinationValidityDays:  getInt("DOMESTIC_NL_EXPIRY_DAYS_VACCINATION", 365),
			PositiveTestRecoveryDays: getInt("DOMESTIC_NL_POSITIVE_TEST_RECOVERY_DAYS", 11),
			PositiveTestValidityDays: getInt("DOMESTIC_NL_EXPIRY_DAYS_POSITIVE_TEST", 180),
			NegativeTestValidityHrs:  getInt("DOMESTIC_NL_EXPIRY_HOURS_NEGATIVE_TEST", 40),
		},
		European: EuropeanConfig{
			ExpirationDays: getInt("EU_INTERNATIONAL_GREENCARD_EXPIRATION_TIME_DAYS", 180),
			Issuer:         getString("EU_ISSUER", "Ministry of Health Welfare and Sport"),
			Country:        getString("EU_ISSUING_COUNTRY", "NLD"),
		},
		Catalog: CatalogConfig{
			HPKCodesPath:      getString("HPK_CODES_PATH", "resources/hpk-codes.json"),
			EligibleMAPath:    getString("ELIGIBLE_MA_PATH", "resources/eligible-ma.json"),
			EligibleMPPath:    getString("ELIGIBLE_MP_PATH", "resources/eligible-mp.json"),
			EligibleTTPath:    getString("ELIGIBLE_TT_PATH", "resources/eligible-tt.json"),
			RequiredDosesPath: getString("REQUIRED_DOSES_PATH", "resources/required-doses.json"),
			DisclosurePath:    getString("DISCLOSURE_POLICY_PATH", "resources/disclosure-policy.json"),
		},
		Access: AccessConfig{
			BSNRetrievalURL: os.Getenv("BSN_RETRIEVAL_URL"),
			TVSSigningKey:   os.Getenv("TVS_JWT_SIGNING_KEY"),
			ProvidersPath:   getString("EVENT_PROVIDERS_PATH", "resources/event-providers.json"),
			TokenTTL:        getDuration("PROVIDER_TOKEN_TTL", time.Hour),
		},
		Audit: AuditConfig{
			Brokers: splitNonEmpty(os.Getenv("AUDIT_KAFKA_BROKERS")),
			Topic:   getString("AUDIT_KAFKA_TOPIC", "certo.issuance.audit"),
		},
		UCILog: UCILogConfig{
			PostgresDSN: os.Getenv("UCI_LOG_POSTGRES_DSN"),
		},
		DedupMarginDays: getInt("DEDUPLICATION_MARGIN", 0),
	}
}

// Validate reports configuration the server cannot start without.
func (c Config) Validate() error {
	if c.Signer.DomesticPrepareIssueURL == "" {
		return errors.New("DOMESTIC_NL_VWS_PREPARE_ISSUE_URL is required")
	}
	if c.Signer.DomesticSigningURL == "" {
		return errors.New("DOMESTIC_NL_VWS_ONLINE_SIGNING_URL is required")
	}
	if c.Signer.EuropeanSigningURL == "" {
		return errors.New("EU_INTERNATIONAL_SIGNING_URL is required")
	}
	if c.Session.Expiration <= 0 {
		return errors.New("EXPIRATION_TIME_IN_SECONDS must be positive")
	}
	if c.Domestic.StripValidityHours <= c.Domestic.MaxRandomOverlapHours {
		return errors.New("strip validity must exceed the maximum randomized overlap")
	}
	return nil
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(csv string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ',' {
			if part := csv[start:i]; part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}
