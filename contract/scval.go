package contract

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"
)

func scString(s string) xdr.ScVal {
	v := xdr.ScString(s)
	return xdr.ScVal{Type: xdr.ScValTypeScvString, Str: &v}
}

func scSymbol(s string) xdr.ScVal {
	v := xdr.ScSymbol(s)
	return xdr.ScVal{Type: xdr.ScValTypeScvSymbol, Sym: &v}
}

func scU32(n uint32) xdr.ScVal {
	v := xdr.Uint32(n)
	return xdr.ScVal{Type: xdr.ScValTypeScvU32, U32: &v}
}

// scI128 encodes a signed 64-bit value as i128 with sign extension.
func scI128(n int64) xdr.ScVal {
	parts := xdr.Int128Parts{
		Hi: xdr.Int64(n >> 63),
		Lo: xdr.Uint64(uint64(n)),
	}
	return xdr.ScVal{Type: xdr.ScValTypeScvI128, I128: &parts}
}

// scUnitVariant encodes a unit variant of a contract enum, which is a vector
// holding the variant name as a symbol.
func scUnitVariant(name string) xdr.ScVal {
	vec := &xdr.ScVec{scSymbol(name)}
	return xdr.ScVal{Type: xdr.ScValTypeScvVec, Vec: &vec}
}

// scStruct encodes a contract struct as a map keyed by field symbols. Keys
// are sorted, as the host requires.
func scStruct(fields map[string]xdr.ScVal) xdr.ScVal {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	m := make(xdr.ScMap, 0, len(keys))
	for _, k := range keys {
		m = append(m, xdr.ScMapEntry{Key: scSymbol(k), Val: fields[k]})
	}
	mp := &m
	return xdr.ScVal{Type: xdr.ScValTypeScvMap, Map: &mp}
}

// scAccountAddress encodes a G... account as an address value.
func scAccountAddress(address string) (xdr.ScVal, error) {
	accountID, err := xdr.AddressToAccountId(address)
	if err != nil {
		return xdr.ScVal{}, err
	}
	addr := xdr.ScAddress{
		Type:      xdr.ScAddressTypeScAddressTypeAccount,
		AccountId: &accountID,
	}
	return xdr.ScVal{Type: xdr.ScValTypeScvAddress, Address: &addr}, nil
}

// contractAddress decodes a C... contract id.
func contractAddress(contractID string) (xdr.ScAddress, error) {
	raw, err := strkey.Decode(strkey.VersionByteContract, contractID)
	if err != nil {
		return xdr.ScAddress{}, err
	}
	var id xdr.ContractId
	copy(id[:], raw)
	return xdr.ScAddress{
		Type:       xdr.ScAddressTypeScAddressTypeContract,
		ContractId: &id,
	}, nil
}

// decodeScVal parses a base64 ScVal.
func decodeScVal(b64 string) (xdr.ScVal, error) {
	var v xdr.ScVal
	if err := xdr.SafeUnmarshalBase64(b64, &v); err != nil {
		return xdr.ScVal{}, err
	}
	return v, nil
}

// structFields returns the fields of a contract struct value by name.
func structFields(v xdr.ScVal) (map[string]xdr.ScVal, error) {
	if v.Type != xdr.ScValTypeScvMap || v.Map == nil || *v.Map == nil {
		return nil, fmt.Errorf("expected map, got %s", v.Type)
	}

	fields := make(map[string]xdr.ScVal, len(**v.Map))
	for _, entry := range **v.Map {
		switch entry.Key.Type {
		case xdr.ScValTypeScvSymbol:
			fields[string(*entry.Key.Sym)] = entry.Val
		case xdr.ScValTypeScvString:
			fields[string(*entry.Key.Str)] = entry.Val
		default:
			return nil, fmt.Errorf("unexpected map key type %s", entry.Key.Type)
		}
	}
	return fields, nil
}

func i128Int(v xdr.ScVal) (*big.Int, error) {
	if v.Type != xdr.ScValTypeScvI128 || v.I128 == nil {
		return nil, fmt.Errorf("expected i128, got %s", v.Type)
	}
	hi := new(big.Int).Lsh(big.NewInt(int64(v.I128.Hi)), 64)
	lo := new(big.Int).SetUint64(uint64(v.I128.Lo))
	return hi.Add(hi, lo), nil
}

// i128Decimal decodes an i128 scaled down by exp decimal places.
func i128Decimal(v xdr.ScVal, exp int32) (decimal.Decimal, error) {
	n, err := i128Int(v)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(n, -exp), nil
}

func stringValue(v xdr.ScVal) (string, error) {
	switch v.Type {
	case xdr.ScValTypeScvString:
		if v.Str != nil {
			return string(*v.Str), nil
		}
	case xdr.ScValTypeScvSymbol:
		if v.Sym != nil {
			return string(*v.Sym), nil
		}
	}
	return "", fmt.Errorf("expected string, got %s", v.Type)
}

func u32Value(v xdr.ScVal) (uint32, error) {
	if v.Type != xdr.ScValTypeScvU32 || v.U32 == nil {
		return 0, fmt.Errorf("expected u32, got %s", v.Type)
	}
	return uint32(*v.U32), nil
}

func u64Value(v xdr.ScVal) (uint64, error) {
	if v.Type != xdr.ScValTypeScvU64 || v.U64 == nil {
		return 0, fmt.Errorf("expected u64, got %s", v.Type)
	}
	return uint64(*v.U64), nil
}

func boolValue(v xdr.ScVal) (bool, error) {
	if v.Type != xdr.ScValTypeScvBool || v.B == nil {
		return false, fmt.Errorf("expected bool, got %s", v.Type)
	}
	return *v.B, nil
}

// addressValue renders an address value as a G... or C... string.
func addressValue(v xdr.ScVal) (string, error) {
	if v.Type != xdr.ScValTypeScvAddress || v.Address == nil {
		return "", fmt.Errorf("expected address, got %s", v.Type)
	}
	switch v.Address.Type {
	case xdr.ScAddressTypeScAddressTypeAccount:
		return v.Address.AccountId.Address(), nil
	case xdr.ScAddressTypeScAddressTypeContract:
		return strkey.Encode(strkey.VersionByteContract, v.Address.ContractId[:])
	default:
		return "", fmt.Errorf("unsupported address type %s", v.Address.Type)
	}
}
