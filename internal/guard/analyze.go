package guard

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"txguard/internal/model"
)

// unlimitedThreshold is 2^255. Allowances strictly above it are treated as unlimited.
var unlimitedThreshold = new(big.Int).Lsh(big.NewInt(1), 255)

// Analyze inspects a pending transaction against policy and reports every
// risk it finds. It performs no I/O, never panics and never mutates its inputs.
func Analyze(tx model.TransactionMeta, policy *Policy) (result model.AnalysisResult) {
	risks := make([]model.RiskKind, 0, 4)
	defer func() {
		if r := recover(); r != nil {
			result = finish(append(risks, model.RiskUnknownFunction), nil)
		}
	}()

	if strings.TrimSpace(tx.To) == "" {
		return finish([]model.RiskKind{model.RiskNonWhitelistedContract}, nil)
	}

	to, err := CanonicalAddress(tx.To)
	if err != nil {
		return finish(append(risks, model.RiskUnknownFunction), nil)
	}

	if !policy.ContractAllowed(to) {
		risks = append(risks, model.RiskNonWhitelistedContract)
	}
	if tx.ChainID != nil && !policy.ChainAllowed(*tx.ChainID) {
		risks = append(risks, model.RiskDifferentChain)
	}
	if !policy.ValueAllowed(tx.Value) {
		risks = append(risks, model.RiskValueTooLarge)
	}

	if !tx.HasData() {
		return finish(risks, nil)
	}

	data, err := DecodeCallData(tx.Data)
	if err != nil {
		return finish(append(risks, model.RiskUnknownFunction), nil)
	}

	call, ok := decodeCall(data)
	if !ok {
		return finish(append(risks, model.RiskUnknownFunction), nil)
	}

	callRisks, err := callRules(call, policy)
	if err != nil {
		return finish(append(risks, model.RiskUnknownFunction), nil)
	}
	return finish(append(risks, callRisks...), call.toModel())
}

func callRules(call decodedCall, policy *Policy) ([]model.RiskKind, error) {
	var risks []model.RiskKind

	switch call.kind {
	case callApprove:
		spender, err := asAddress(call.args[0])
		if err != nil {
			return nil, err
		}
		value, err := asBigInt(call.args[1])
		if err != nil {
			return nil, err
		}
		if isUnlimited(value) {
			risks = append(risks, model.RiskUnlimitedApproval)
		}
		if !policy.ContractAllowed(spender) {
			risks = append(risks, model.RiskUnknownSpender)
		}
	case callSetApprovalForAll:
		operator, err := asAddress(call.args[0])
		if err != nil {
			return nil, err
		}
		approved, err := asBool(call.args[1])
		if err != nil {
			return nil, err
		}
		if approved {
			risks = append(risks, model.RiskApprovalForAll)
		}
		if !policy.ContractAllowed(operator) {
			risks = append(risks, model.RiskUnknownSpender)
		}
	case callPermit:
		spender, err := asAddress(call.args[1])
		if err != nil {
			return nil, err
		}
		value, err := asBigInt(call.args[2])
		if err != nil {
			return nil, err
		}
		if isUnlimited(value) {
			risks = append(risks, model.RiskUnlimitedPermit)
		}
		if !policy.ContractAllowed(spender) {
			risks = append(risks, model.RiskUnknownSpender)
		}
	case callMulticall:
		risks = append(risks, model.RiskMulticall)
	default:
		return nil, fmt.Errorf("unsupported call kind %d", call.kind)
	}

	return risks, nil
}

func isUnlimited(value *big.Int) bool {
	return value != nil && value.Cmp(unlimitedThreshold) > 0
}

func finish(risks []model.RiskKind, decoded *model.DecodedCall) model.AnalysisResult {
	if risks == nil {
		risks = []model.RiskKind{}
	}
	return model.AnalysisResult{
		OK:      len(risks) == 0,
		Risks:   risks,
		Decoded: decoded,
	}
}

// CanonicalAddress parses a hex address. Mixed-case input must carry a valid
// EIP-55 checksum; all-lowercase and all-uppercase input is accepted as is.
func CanonicalAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %s", input)
	}
	addr := common.HexToAddress(input)

	digits := strings.TrimPrefix(strings.TrimPrefix(input, "0x"), "0X")
	if digits != strings.ToLower(digits) && digits != strings.ToUpper(digits) {
		if digits != addr.Hex()[2:] {
			return common.Address{}, fmt.Errorf("bad address checksum: %s", input)
		}
	}
	return addr, nil
}
