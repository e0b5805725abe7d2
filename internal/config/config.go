package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "TXGUARD"

// PolicyConfig holds the raw guard policy values shared by every command.
type PolicyConfig struct {
	WhitelistContracts []string
	WhitelistChainIDs  []string
	MaxNativeValue     string
}

// AnalyzeConfig holds configuration for the analyze command.
type AnalyzeConfig struct {
	Policy   PolicyConfig
	Tx       TxConfig
	In       string
	Out      string
	AuditOut string
	PGDSN    string
	LogLevel string
}

// SendConfig holds configuration for the send command.
type SendConfig struct {
	Policy       PolicyConfig
	Tx           TxConfig
	RPCURL       string
	Key          string
	Wait         bool
	MaxRetries   int
	RetryBackoff time.Duration
	AuditOut     string
	PGDSN        string
	LogLevel     string
}

// TxConfig holds the raw transaction fields given on the command line.
type TxConfig struct {
	From    string
	To      string
	Data    string
	Value   string
	ChainID string
}

// LoadAnalyze merges config file, environment variables, and flags into AnalyzeConfig.
func LoadAnalyze(cfgFile string, flags *pflag.FlagSet) (AnalyzeConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return AnalyzeConfig{}, err
	}

	cfg := AnalyzeConfig{
		Policy:   policyFrom(v),
		Tx:       txFrom(v),
		In:       v.GetString("in"),
		Out:      v.GetString("out"),
		AuditOut: v.GetString("audit-out"),
		PGDSN:    v.GetString("pg-dsn"),
		LogLevel: v.GetString("log-level"),
	}

	return cfg, nil
}

// LoadSend merges config file, environment variables, and flags into SendConfig.
func LoadSend(cfgFile string, flags *pflag.FlagSet) (SendConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return SendConfig{}, err
	}

	cfg := SendConfig{
		Policy:       policyFrom(v),
		Tx:           txFrom(v),
		RPCURL:       v.GetString("rpc"),
		Key:          v.GetString("key"),
		Wait:         v.GetBool("wait"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		AuditOut:     v.GetString("audit-out"),
		PGDSN:        v.GetString("pg-dsn"),
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("txguard")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}

func policyFrom(v *viper.Viper) PolicyConfig {
	return PolicyConfig{
		WhitelistContracts: getStringSlice(v, "whitelist-contract"),
		WhitelistChainIDs:  getStringSlice(v, "whitelist-chain-id"),
		MaxNativeValue:     strings.TrimSpace(v.GetString("max-native-value")),
	}
}

func txFrom(v *viper.Viper) TxConfig {
	return TxConfig{
		From:    strings.TrimSpace(v.GetString("from")),
		To:      strings.TrimSpace(v.GetString("to")),
		Data:    strings.TrimSpace(v.GetString("data")),
		Value:   strings.TrimSpace(v.GetString("value")),
		ChainID: strings.TrimSpace(v.GetString("chain-id")),
	}
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
