package chain

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/artpar/deployer/internal/core/domain"
)

// =============================================================================
// Constructor Argument Encoding
// =============================================================================

// EncodeConstructorArgs converts resolved values into the Go types expected by
// the artifact's constructor and ABI-encodes them.
func EncodeConstructorArgs(a *Artifact, values []domain.Value) ([]byte, error) {
	inputs := a.ABI.Constructor.Inputs
	if len(inputs) != len(values) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d",
			ErrArgumentMismatch, a.Name, len(inputs), len(values))
	}

	goArgs := make([]any, len(values))
	for i, input := range inputs {
		v := values[i]
		if v.Type != "" && normalizeType(v.Type) != normalizeType(input.Type.String()) {
			return nil, fmt.Errorf("%w: %s argument %d (%s): declared %s, constructor expects %s",
				ErrArgumentMismatch, a.Name, i, input.Name, v.Type, input.Type.String())
		}
		converted, err := convertValue(input.Type, v.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s argument %d (%s): %v",
				ErrArgumentMismatch, a.Name, i, input.Name, err)
		}
		goArgs[i] = converted
	}

	packed, err := a.ABI.Pack("", goArgs...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArgumentMismatch, a.Name, err)
	}
	return packed, nil
}

func normalizeType(t string) string {
	t = strings.TrimSpace(strings.ToLower(t))
	switch {
	case t == "uint":
		return "uint256"
	case t == "int":
		return "int256"
	case strings.HasPrefix(t, "uint["):
		return "uint256" + t[len("uint"):]
	case strings.HasPrefix(t, "int["):
		return "int256" + t[len("int"):]
	}
	return t
}

func convertValue(t abi.Type, v any) (any, error) {
	switch t.T {
	case abi.AddressTy:
		return toAddress(v)
	case abi.IntTy, abi.UintTy:
		return toInteger(t, v)
	case abi.BoolTy:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", v)
		}
		return b, nil
	case abi.StringTy:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return s, nil
	case abi.BytesTy:
		return toBytes(v)
	case abi.FixedBytesTy, abi.HashTy:
		return toFixedBytes(t, v)
	case abi.SliceTy, abi.ArrayTy:
		return toList(t, v)
	default:
		return nil, fmt.Errorf("unsupported constructor argument type %s", t.String())
	}
}

func toAddress(v any) (common.Address, error) {
	var s string
	switch x := v.(type) {
	case domain.Address:
		s = x.String()
	case string:
		s = x
	case common.Address:
		return x, nil
	default:
		return common.Address{}, fmt.Errorf("expected address, got %T", v)
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// maxExactFloat is 2^53, the largest magnitude up to which float64 holds
// every integer.
const maxExactFloat = 1 << 53

func toBigInt(v any) (*big.Int, error) {
	switch x := v.(type) {
	case *big.Int:
		return new(big.Int).Set(x), nil
	case int:
		return big.NewInt(int64(x)), nil
	case int64:
		return big.NewInt(x), nil
	case int32:
		return big.NewInt(int64(x)), nil
	case uint:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint64:
		return new(big.Int).SetUint64(x), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(x)), nil
	case float64:
		if x != math.Trunc(x) {
			return nil, fmt.Errorf("non-integer number %v", x)
		}
		if math.Abs(x) > maxExactFloat {
			return nil, fmt.Errorf("number %v is too large to be exact, quote it as a string", x)
		}
		n, _ := big.NewFloat(x).Int(nil)
		return n, nil
	case string:
		s := strings.TrimSpace(x)
		n, ok := new(big.Int).SetString(s, 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", x)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("expected integer, got %T", v)
	}
}

func toInteger(t abi.Type, v any) (any, error) {
	n, err := toBigInt(v)
	if err != nil {
		return nil, err
	}

	if t.T == abi.UintTy {
		if n.Sign() < 0 {
			return nil, fmt.Errorf("negative value %s for %s", n, t.String())
		}
		if n.BitLen() > t.Size {
			return nil, fmt.Errorf("value %s overflows %s", n, t.String())
		}
		switch t.Size {
		case 8:
			return uint8(n.Uint64()), nil
		case 16:
			return uint16(n.Uint64()), nil
		case 32:
			return uint32(n.Uint64()), nil
		case 64:
			return n.Uint64(), nil
		}
		return n, nil
	}

	limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
	if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
		return nil, fmt.Errorf("value %s overflows %s", n, t.String())
	}
	switch t.Size {
	case 8:
		return int8(n.Int64()), nil
	case 16:
		return int16(n.Int64()), nil
	case 32:
		return int32(n.Int64()), nil
	case 64:
		return n.Int64(), nil
	}
	return n, nil
}

func toBytes(v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		if !strings.HasPrefix(x, "0x") && !strings.HasPrefix(x, "0X") {
			return nil, fmt.Errorf("bytes must be 0x-prefixed hex, got %q", x)
		}
		b, err := hexutil.Decode(x)
		if err != nil {
			return nil, fmt.Errorf("invalid hex %q: %v", x, err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("expected bytes, got %T", v)
	}
}

func toFixedBytes(t abi.Type, v any) (any, error) {
	b, err := toBytes(v)
	if err != nil {
		return nil, err
	}
	if len(b) != t.Size {
		return nil, fmt.Errorf("%s needs %d bytes, got %d", t.String(), t.Size, len(b))
	}
	out := reflect.New(t.GetType()).Elem()
	reflect.Copy(out, reflect.ValueOf(b))
	return out.Interface(), nil
}

func toList(t abi.Type, v any) (any, error) {
	items, err := listItems(v)
	if err != nil {
		return nil, err
	}
	if t.T == abi.ArrayTy && len(items) != t.Size {
		return nil, fmt.Errorf("%s needs %d elements, got %d", t.String(), t.Size, len(items))
	}

	var out reflect.Value
	if t.T == abi.ArrayTy {
		out = reflect.New(t.GetType()).Elem()
	} else {
		out = reflect.MakeSlice(t.GetType(), len(items), len(items))
	}
	for i, item := range items {
		elem, err := convertValue(*t.Elem, item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out.Index(i).Set(reflect.ValueOf(elem))
	}
	return out.Interface(), nil
}

func listItems(v any) ([]any, error) {
	switch x := v.(type) {
	case []any:
		return x, nil
	case []string:
		items := make([]any, len(x))
		for i, s := range x {
			items[i] = s
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected list, got %T", v)
	}
}
