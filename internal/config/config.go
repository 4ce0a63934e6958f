// Package config loads run settings from a YAML file and CAAT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"caat-reconciliation/internal/columns"
	"caat-reconciliation/internal/domain"
	"caat-reconciliation/internal/engine"
	"caat-reconciliation/internal/normalize"
	"caat-reconciliation/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
	Receivables    ReceivablesConfig    `mapstructure:"receivables"`
	Normalization  NormalizationConfig  `mapstructure:"normalization"`
	Columns        ColumnsConfig        `mapstructure:"columns"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Server         ServerConfig         `mapstructure:"server"`
}

// ReconciliationConfig holds the exact engine keys.
type ReconciliationConfig struct {
	CompositeKey []string `mapstructure:"composite_key"`
	FullKey      []string `mapstructure:"full_key"`
}

// ReceivablesConfig holds receivables-vs-bank tolerances.
type ReceivablesConfig struct {
	AmountTolerance   float64  `mapstructure:"amount_tolerance"`
	DateToleranceDays int      `mapstructure:"date_tolerance_days"`
	TrivialThreshold  float64  `mapstructure:"trivial_threshold"`
	AgingCuts         []int    `mapstructure:"aging_cuts"`
	CreditKeywords    []string `mapstructure:"credit_keywords"`
	TieBreak          string   `mapstructure:"tie_break"`
	// AsOf pins the aging date (YYYY-MM-DD). Empty means today.
	AsOf string `mapstructure:"as_of"`
}

// NormalizationConfig holds cell parsing settings.
type NormalizationConfig struct {
	AmountFormat     string `mapstructure:"amount_format"`
	UnassignedEntity string `mapstructure:"unassigned_entity"`
}

// ColumnsConfig overrides synonym lists per profile, keyed by field name.
// Fields left out keep their built-in synonyms.
type ColumnsConfig struct {
	Ledger      map[string][]string `mapstructure:"ledger"`
	Receivables map[string][]string `mapstructure:"receivables"`
	Bank        map[string][]string `mapstructure:"bank"`
}

// LoggingConfig holds zap settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	MaxUploadMB    int64    `mapstructure:"max_upload_mb"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads configuration from the given file (or ./caat.yaml when empty) and
// env. Env var overrides use prefix CAAT_, e.g. CAAT_RECEIVABLES_AMOUNT_TOLERANCE.
func Load(path string) (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("reconciliation.composite_key", []string{"id", "entity"})
	v.SetDefault("reconciliation.full_key", []string{"id", "date", "amount", "entity"})
	v.SetDefault("receivables.amount_tolerance", 0.50)
	v.SetDefault("receivables.date_tolerance_days", 5)
	v.SetDefault("receivables.trivial_threshold", 5.0)
	v.SetDefault("receivables.aging_cuts", []int{30, 60, 90})
	v.SetDefault("receivables.credit_keywords", []string{"NC", "nota de crédito", "retenc"})
	v.SetDefault("receivables.tie_break", string(engine.TieBreakAll))
	v.SetDefault("receivables.as_of", "")
	v.SetDefault("normalization.amount_format", string(normalize.AmountLatin))
	v.SetDefault("normalization.unassigned_entity", domain.UnassignedEntity)
	v.SetDefault("columns.ledger", map[string][]string{})
	v.SetDefault("columns.receivables", map[string][]string{})
	v.SetDefault("columns.bank", map[string][]string{})
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.max_upload_mb", 10)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("caat")
	}

	v.SetEnvPrefix("CAAT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// an explicit file must exist; the default one is optional
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Options validates the configuration and converts it into use case options.
// Out-of-domain values are reported as *domain.ConfigurationError.
func (c Config) Options() (usecase.Options, error) {
	opts := usecase.DefaultOptions()

	composite, err := parseFields("reconciliation.composite_key", c.Reconciliation.CompositeKey)
	if err != nil {
		return usecase.Options{}, err
	}
	full, err := parseFields("reconciliation.full_key", c.Reconciliation.FullKey)
	if err != nil {
		return usecase.Options{}, err
	}
	opts.Exact = engine.ExactOptions{CompositeKey: composite, FullKey: full}
	if err := opts.Exact.Validate(); err != nil {
		return usecase.Options{}, err
	}

	opts.Receivables = engine.ReceivablesOptions{
		AmountTolerance:   decimal.NewFromFloat(c.Receivables.AmountTolerance),
		DateToleranceDays: c.Receivables.DateToleranceDays,
		TrivialThreshold:  decimal.NewFromFloat(c.Receivables.TrivialThreshold),
		AgingCuts:         c.Receivables.AgingCuts,
		CreditKeywords:    c.Receivables.CreditKeywords,
		TieBreak:          engine.TieBreak(strings.ToLower(strings.TrimSpace(c.Receivables.TieBreak))),
	}
	if c.Receivables.AsOf != "" {
		asOf, err := time.Parse(domain.DateLayout, c.Receivables.AsOf)
		if err != nil {
			return usecase.Options{}, &domain.ConfigurationError{Setting: "receivables.as_of", Value: c.Receivables.AsOf, Reason: "must be YYYY-MM-DD"}
		}
		opts.Receivables.Today = asOf
	}
	if err := opts.Receivables.Validate(); err != nil {
		return usecase.Options{}, err
	}

	opts.Normalize = normalize.Options{
		AmountFormat:     normalize.AmountFormat(strings.ToLower(strings.TrimSpace(c.Normalization.AmountFormat))),
		UnassignedEntity: c.Normalization.UnassignedEntity,
	}
	if err := opts.Normalize.Validate(); err != nil {
		return usecase.Options{}, err
	}

	if opts.LedgerSynonyms, err = mergeSynonyms("columns.ledger", columns.LedgerSynonyms, c.Columns.Ledger); err != nil {
		return usecase.Options{}, err
	}
	if opts.ReceivablesSynonyms, err = mergeSynonyms("columns.receivables", columns.ReceivablesSynonyms, c.Columns.Receivables); err != nil {
		return usecase.Options{}, err
	}
	if opts.BankSynonyms, err = mergeSynonyms("columns.bank", columns.BankSynonyms, c.Columns.Bank); err != nil {
		return usecase.Options{}, err
	}
	return opts, nil
}

// MaxUploadBytes returns the upload limit of the HTTP API.
func (c Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB << 20
}

func parseFields(setting string, names []string) ([]domain.Field, error) {
	out := make([]domain.Field, 0, len(names))
	for _, n := range names {
		f, ok := domain.ParseField(n)
		if !ok {
			return nil, &domain.ConfigurationError{Setting: setting, Value: n, Reason: "unknown field"}
		}
		out = append(out, f)
	}
	return out, nil
}

func mergeSynonyms(setting string, base columns.Synonyms, overrides map[string][]string) (columns.Synonyms, error) {
	merged := make(columns.Synonyms, len(base))
	for f, names := range base {
		merged[f] = names
	}
	for name, synonyms := range overrides {
		f, ok := domain.ParseField(name)
		if !ok {
			return nil, &domain.ConfigurationError{Setting: setting + "." + name, Value: synonyms, Reason: "unknown field"}
		}
		if len(synonyms) == 0 {
			return nil, &domain.ConfigurationError{Setting: setting + "." + name, Value: synonyms, Reason: "must list at least one synonym"}
		}
		merged[f] = synonyms
	}
	return merged, nil
}
