package guard

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Policy is the static whitelist and threshold configuration consulted by Analyze.
// An empty whitelist disables the corresponding check. A Policy must not be
// modified after construction; a nil *Policy behaves like an empty one.
type Policy struct {
	contracts      map[common.Address]struct{}
	chainIDs       map[uint64]struct{}
	maxNativeValue *big.Int
}

// NewPolicy builds a Policy. maxNativeValue may be nil to disable the value ceiling.
func NewPolicy(contracts []common.Address, chainIDs []uint64, maxNativeValue *big.Int) *Policy {
	p := &Policy{
		contracts: make(map[common.Address]struct{}, len(contracts)),
		chainIDs:  make(map[uint64]struct{}, len(chainIDs)),
	}
	for _, addr := range contracts {
		p.contracts[addr] = struct{}{}
	}
	for _, id := range chainIDs {
		p.chainIDs[id] = struct{}{}
	}
	if maxNativeValue != nil {
		p.maxNativeValue = new(big.Int).Set(maxNativeValue)
	}
	return p
}

// ContractAllowed reports whether addr passes the contract whitelist.
func (p *Policy) ContractAllowed(addr common.Address) bool {
	if p == nil || len(p.contracts) == 0 {
		return true
	}
	_, ok := p.contracts[addr]
	return ok
}

// ChainAllowed reports whether chainID passes the chain whitelist.
func (p *Policy) ChainAllowed(chainID uint64) bool {
	if p == nil || len(p.chainIDs) == 0 {
		return true
	}
	_, ok := p.chainIDs[chainID]
	return ok
}

// ValueAllowed reports whether value is within the native value ceiling.
func (p *Policy) ValueAllowed(value *big.Int) bool {
	if p == nil || p.maxNativeValue == nil || value == nil {
		return true
	}
	return value.Cmp(p.maxNativeValue) <= 0
}

// Contracts returns the whitelisted contracts in a stable order.
func (p *Policy) Contracts() []common.Address {
	if p == nil {
		return nil
	}
	out := make([]common.Address, 0, len(p.contracts))
	for addr := range p.contracts {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

// ChainIDs returns the whitelisted chain ids in ascending order.
func (p *Policy) ChainIDs() []uint64 {
	if p == nil {
		return nil
	}
	out := make([]uint64, 0, len(p.chainIDs))
	for id := range p.chainIDs {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MaxNativeValue returns a copy of the value ceiling, or nil when none is set.
func (p *Policy) MaxNativeValue() *big.Int {
	if p == nil || p.maxNativeValue == nil {
		return nil
	}
	return new(big.Int).Set(p.maxNativeValue)
}
