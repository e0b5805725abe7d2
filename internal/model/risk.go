package model

// RiskKind identifies a single finding produced by the transaction guard.
type RiskKind string

const (
	RiskNonWhitelistedContract RiskKind = "non_whitelisted_contract"
	RiskDifferentChain         RiskKind = "different_chain"
	RiskValueTooLarge          RiskKind = "value_too_large"
	RiskUnlimitedApproval      RiskKind = "unlimited_approval"
	RiskUnknownSpender         RiskKind = "unknown_spender"
	RiskApprovalForAll         RiskKind = "approval_for_all"
	RiskUnlimitedPermit        RiskKind = "unlimited_permit"
	RiskMulticall              RiskKind = "multicall"
	RiskUnknownFunction        RiskKind = "unknown_function"
)

var riskLabels = map[RiskKind]string{
	RiskNonWhitelistedContract: "destination contract is not whitelisted",
	RiskDifferentChain:         "transaction targets a different chain than expected",
	RiskValueTooLarge:          "native value is unusually large",
	RiskUnlimitedApproval:      "unlimited token approval",
	RiskUnknownSpender:         "transfer or approval target is unknown",
	RiskApprovalForAll:         "blanket NFT approval granted",
	RiskUnlimitedPermit:        "unlimited permit signature",
	RiskMulticall:              "batched multicall transaction",
	RiskUnknownFunction:        "unrecognized function call",
}

// Label returns a human-readable description of the risk.
func (k RiskKind) Label() string {
	if label, ok := riskLabels[k]; ok {
		return label
	}
	return string(k)
}

// Valid reports whether k is one of the known risk kinds.
func (k RiskKind) Valid() bool {
	_, ok := riskLabels[k]
	return ok
}
