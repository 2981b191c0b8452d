// Package ident classifies and normalizes asset and role identifiers.
//
// Three identifier families are accepted: 0x-prefixed EVM addresses
// (normalized to their EIP-55 checksum form), 32-byte base58 keys
// (ed25519 public keys or off-curve derived addresses), and short
// ticker-style symbols used by off-chain assets.
package ident

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"filippo.io/edwards25519"
	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

// Kind is the family an identifier belongs to.
type Kind string

const (
	KindEVM     Kind = "evm"
	KindEd25519 Kind = "ed25519" // on-curve key, can sign
	KindDerived Kind = "derived" // off-curve address, cannot sign
	KindSymbol  Kind = "symbol"
)

var (
	// ErrEmpty is returned for blank identifiers.
	ErrEmpty = errors.New("empty identifier")

	// ErrInvalid is returned for identifiers of no known family.
	ErrInvalid = errors.New("invalid identifier")

	// ErrCannotSign is returned when an off-curve address is used as a role.
	ErrCannotSign = errors.New("identifier cannot sign")
)

var symbolRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,31}$`)

// ID is a classified identifier.
type ID struct {
	Value string
	Kind  Kind
}

func (id ID) String() string { return id.Value }

// Parse classifies s and returns its normalized form.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ID{}, ErrEmpty
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if !common.IsHexAddress(s) {
			return ID{}, fmt.Errorf("%w: %q is not a 20-byte hex address", ErrInvalid, s)
		}
		return ID{Value: common.HexToAddress(s).Hex(), Kind: KindEVM}, nil
	}

	if key, err := base58.Decode(s); err == nil && len(key) == 32 {
		kind := KindDerived
		if onCurve(key) {
			kind = KindEd25519
		}
		return ID{Value: base58.Encode(key), Kind: kind}, nil
	}

	if symbolRe.MatchString(s) {
		return ID{Value: s, Kind: KindSymbol}, nil
	}
	return ID{}, fmt.Errorf("%w: %q", ErrInvalid, s)
}

// NormalizeAsset returns the normalized form of an asset identifier.
func NormalizeAsset(s string) (string, error) {
	id, err := Parse(s)
	if err != nil {
		return "", err
	}
	return id.Value, nil
}

// NormalizeSigner returns the normalized form of a role identity.
// Off-curve addresses are rejected since no key controls them.
func NormalizeSigner(s string) (string, error) {
	id, err := Parse(s)
	if err != nil {
		return "", err
	}
	if id.Kind == KindDerived {
		return "", fmt.Errorf("%w: %q is off the ed25519 curve", ErrCannotSign, id.Value)
	}
	return id.Value, nil
}

// NormalizeAll applies normalize to every element of in.
func NormalizeAll(in []string, normalize func(string) (string, error)) ([]string, error) {
	out := make([]string, len(in))
	for i, s := range in {
		v, err := normalize(s)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func onCurve(key []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(key)
	return err == nil
}
