package guard

import (
	"bytes"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"txguard/internal/model"
)

type callKind int

const (
	callApprove callKind = iota
	callSetApprovalForAll
	callPermit
	callMulticall
)

// candidate order matters: the first method that decodes wins.
var candidates = []struct {
	kind   callKind
	method string
}{
	{callApprove, "approve"},
	{callSetApprovalForAll, "setApprovalForAll"},
	{callPermit, "permit"},
	{callMulticall, "multicall"},
}

type decodedCall struct {
	kind   callKind
	method abi.Method
	args   []interface{}
}

// decodeCall tries each candidate signature in order. A selector or argument
// mismatch moves on to the next candidate. Arguments must be in canonical
// encoding: re-packing them has to reproduce the input byte for byte, which
// rejects dirty address padding and trailing bytes.
func decodeCall(data []byte) (decodedCall, bool) {
	if len(data) < 4 {
		return decodedCall{}, false
	}
	parsed, err := RiskyCallsABI()
	if err != nil {
		return decodedCall{}, false
	}

	for _, c := range candidates {
		method, ok := parsed.Methods[c.method]
		if !ok || !bytes.Equal(data[:4], method.ID) {
			continue
		}
		args, err := method.Inputs.Unpack(data[4:])
		if err != nil {
			continue
		}
		packed, err := method.Inputs.Pack(args...)
		if err != nil || !bytes.Equal(packed, data[4:]) {
			continue
		}
		return decodedCall{kind: c.kind, method: method, args: args}, true
	}
	return decodedCall{}, false
}

// DecodeCallData decodes hex call-data. The 0x prefix is optional.
func DecodeCallData(input string) ([]byte, error) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "0x") && !strings.HasPrefix(input, "0X") {
		input = "0x" + input
	}
	return hexutil.Decode(input)
}

func (c decodedCall) toModel() *model.DecodedCall {
	args := make([]interface{}, len(c.args))
	copy(args, c.args)

	params := make([]model.Param, 0, len(c.args))
	for i, arg := range c.method.Inputs {
		if i >= len(c.args) {
			break
		}
		params = append(params, model.Param{
			Name:  arg.Name,
			Type:  arg.Type.String(),
			Value: formatValue(c.args[i]),
		})
	}
	return &model.DecodedCall{Name: c.method.RawName, Args: args, Params: params}
}

func formatValue(value interface{}) string {
	switch v := value.(type) {
	case common.Address:
		return v.Hex()
	case *big.Int:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case [32]byte:
		return hexutil.Encode(v[:])
	case []byte:
		return hexutil.Encode(v)
	case [][]byte:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, hexutil.Encode(item))
		}
		return "[" + strings.Join(items, ",") + "]"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asBool(value interface{}) (bool, error) {
	v, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("unsupported bool type %T", value)
	}
	return v, nil
}
