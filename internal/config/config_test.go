package config

import (
	"math/big"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
)

func TestLoadAnalyzeFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "txguard.yaml")
	content := []byte(`
whitelist-contract:
  - "0x1111111111111111111111111111111111111111"
  - "0x2222222222222222222222222222222222222222"
whitelist-chain-id: [56, 97]
max-native-value: "1000000000000000000"
log-level: debug
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadAnalyze(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	wantContracts := []string{
		"0x1111111111111111111111111111111111111111",
		"0x2222222222222222222222222222222222222222",
	}
	if !reflect.DeepEqual(cfg.Policy.WhitelistContracts, wantContracts) {
		t.Fatalf("contracts mismatch: %v", cfg.Policy.WhitelistContracts)
	}
	if !reflect.DeepEqual(cfg.Policy.WhitelistChainIDs, []string{"56", "97"}) {
		t.Fatalf("chain ids mismatch: %v", cfg.Policy.WhitelistChainIDs)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level mismatch: %s", cfg.LogLevel)
	}

	policy, err := BuildPolicy(cfg.Policy)
	if err != nil {
		t.Fatalf("build policy: %v", err)
	}
	if !policy.ContractAllowed(common.HexToAddress("0x2222222222222222222222222222222222222222")) {
		t.Fatalf("expected whitelisted contract")
	}
	if policy.ChainAllowed(1) || !policy.ChainAllowed(97) {
		t.Fatalf("chain whitelist mismatch: %v", policy.ChainIDs())
	}
	want, _ := new(big.Int).SetString("1000000000000000000", 10)
	if policy.MaxNativeValue().Cmp(want) != 0 {
		t.Fatalf("max native value mismatch: %s", policy.MaxNativeValue())
	}
}

func TestLoadSendFlags(t *testing.T) {
	flags := pflag.NewFlagSet("send", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.StringSlice("whitelist-contract", nil, "")
	flags.String("to", "", "")
	flags.String("value", "", "")
	flags.String("chain-id", "", "")
	flags.Duration("retry-backoff", 500*time.Millisecond, "")

	err := flags.Parse([]string{
		"--rpc", "http://localhost:8545",
		"--whitelist-contract", "0x1111111111111111111111111111111111111111,0x2222222222222222222222222222222222222222",
		"--to", "0x1111111111111111111111111111111111111111",
		"--value", "0x10",
		"--chain-id", "56",
		"--retry-backoff", "2s",
	})
	if err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadSend(filepath.Join(t.TempDir(), "missing.yaml"), flags)
	if err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}

	cfg, err = LoadSend("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "http://localhost:8545" {
		t.Fatalf("rpc mismatch: %s", cfg.RPCURL)
	}
	if len(cfg.Policy.WhitelistContracts) != 2 {
		t.Fatalf("contracts mismatch: %v", cfg.Policy.WhitelistContracts)
	}
	if cfg.RetryBackoff != 2*time.Second {
		t.Fatalf("retry backoff mismatch: %s", cfg.RetryBackoff)
	}
	if cfg.MaxRetries != 3 {
		t.Fatalf("max retries default mismatch: %d", cfg.MaxRetries)
	}

	tx, err := BuildTx(cfg.Tx)
	if err != nil {
		t.Fatalf("build tx: %v", err)
	}
	if tx.Value.Int64() != 16 || tx.ChainID == nil || *tx.ChainID != 56 {
		t.Fatalf("tx mismatch: %+v", tx)
	}
}

func TestBuildPolicyRejectsInvalidValues(t *testing.T) {
	if _, err := BuildPolicy(PolicyConfig{WhitelistContracts: []string{"0x1234"}}); err == nil {
		t.Fatalf("expected error for short address")
	}
	if _, err := BuildPolicy(PolicyConfig{WhitelistChainIDs: []string{"mainnet"}}); err == nil {
		t.Fatalf("expected error for non-numeric chain id")
	}
	if _, err := BuildPolicy(PolicyConfig{MaxNativeValue: "lots"}); err == nil {
		t.Fatalf("expected error for malformed max value")
	}
}

func TestBuildPolicyEmpty(t *testing.T) {
	policy, err := BuildPolicy(PolicyConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !policy.ContractAllowed(common.HexToAddress("0x3333333333333333333333333333333333333333")) {
		t.Fatalf("empty whitelist must allow every contract")
	}
	if policy.MaxNativeValue() != nil {
		t.Fatalf("expected no value ceiling")
	}
}

func TestBuildTxRejectsInvalidChainID(t *testing.T) {
	if _, err := BuildTx(TxConfig{ChainID: "bsc"}); err == nil {
		t.Fatalf("expected error for invalid chain id")
	}
	if _, err := BuildTx(TxConfig{Value: "-1"}); err == nil {
		t.Fatalf("expected error for negative value")
	}
}
