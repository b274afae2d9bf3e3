package ledger

import (
	"strings"

	"github.com/stellar/go/strkey"
	"github.com/stellar/go/support/errors"

	"github.com/stellar/ledgerclose/internal/xdrcodec"
)

// AccountID is a raw ed25519 public key, the identifier for accounts,
// trustline owners, and offer sellers.
type AccountID [32]byte

// String renders the account ID in strkey form (the "G..." address format),
// the same textual encoding stellar-core stores in its database columns.
func (a AccountID) String() string {
	s, err := strkey.Encode(strkey.VersionByteAccountID, a[:])
	if err != nil {
		// strkey.Encode only fails on malformed version bytes, never on
		// payload length for a fixed 32-byte key.
		panic(err)
	}
	return s
}

// ParseAccountID decodes a strkey "G..." address into an AccountID.
func ParseAccountID(s string) (AccountID, error) {
	raw, err := strkey.Decode(strkey.VersionByteAccountID, s)
	if err != nil {
		return AccountID{}, errors.Wrap(err, "invalid account strkey")
	}
	var id AccountID
	if len(raw) != len(id) {
		return AccountID{}, errors.New("invalid account strkey: unexpected payload length")
	}
	copy(id[:], raw)
	return id, nil
}

func (a AccountID) marshal(e *xdrcodec.Encoder) {
	e.Fixed(a[:])
}

// AssetType distinguishes native XLM from the two credit-asset code widths.
type AssetType int32

const (
	AssetTypeNative AssetType = iota
	AssetTypeCreditAlphanum4
	AssetTypeCreditAlphanum12
)

func (t AssetType) String() string {
	switch t {
	case AssetTypeNative:
		return "native"
	case AssetTypeCreditAlphanum4:
		return "alphanum4"
	case AssetTypeCreditAlphanum12:
		return "alphanum12"
	default:
		return "unknown"
	}
}

// Asset is a tagged union over the native asset and the two credit-asset
// variants. Equality is structural (Go struct ==, once Code is normalized to
// a fixed width by NewCreditAsset).
type Asset struct {
	Type   AssetType
	Code   string // zero-padded to 4 or 12 bytes for credit assets; empty for native
	Issuer AccountID
}

// NativeAsset returns the native (XLM) asset.
func NativeAsset() Asset {
	return Asset{Type: AssetTypeNative}
}

// NewCreditAsset builds a non-native asset, choosing AlphaNum4 or AlphaNum12
// based on the code length the same way stellar-core's AssetCode selection
// does.
func NewCreditAsset(code string, issuer AccountID) (Asset, error) {
	if len(code) == 0 || len(code) > 12 {
		return Asset{}, errors.New("asset code must be between 1 and 12 characters")
	}
	t := AssetTypeCreditAlphanum4
	width := 4
	if len(code) > 4 {
		t = AssetTypeCreditAlphanum12
		width = 12
	}
	padded := code + strings.Repeat("\x00", width-len(code))
	a := Asset{Type: t, Code: padded, Issuer: issuer}
	if !IsAssetValid(a) {
		return Asset{}, errors.New("invalid asset code")
	}
	return a, nil
}

// IsAssetValid rejects codes with embedded zeros after the first zero,
// unknown tags, and natives carrying an issuer — the checks
// stellar-core's isAssetValid performs.
func IsAssetValid(a Asset) bool {
	switch a.Type {
	case AssetTypeNative:
		return a.Issuer == (AccountID{})
	case AssetTypeCreditAlphanum4:
		return validAssetCode(a.Code, 4)
	case AssetTypeCreditAlphanum12:
		return validAssetCode(a.Code, 12)
	default:
		return false
	}
}

func validAssetCode(code string, width int) bool {
	if len(code) != width {
		return false
	}
	if code[0] == 0 {
		return false
	}
	seenZero := false
	for i := 0; i < width; i++ {
		if code[i] == 0 {
			seenZero = true
			continue
		}
		if seenZero {
			return false
		}
	}
	return true
}

// CodeString trims the zero padding used for storage/comparison.
func (a Asset) CodeString() string {
	return strings.TrimRight(a.Code, "\x00")
}

// Equal reports structural equality between two assets.
func (a Asset) Equal(b Asset) bool {
	return a.Type == b.Type && a.Code == b.Code && a.Issuer == b.Issuer
}

func (a Asset) marshal(e *xdrcodec.Encoder) {
	e.Int32(int32(a.Type))
	if a.Type != AssetTypeNative {
		e.String(a.Code)
		a.Issuer.marshal(e)
	}
}

// Price is a rational price n/d, n and d both strictly positive.
type Price struct {
	N int32
	D int32
}

// Less reports whether p sorts strictly before o under rational ordering,
// computed with 64-bit cross-multiplication (n and d are int32, so the
// cross product fits comfortably in int64).
func (p Price) Less(o Price) bool {
	return int64(p.N)*int64(o.D) < int64(o.N)*int64(p.D)
}

func (p Price) marshal(e *xdrcodec.Encoder) {
	e.Int32(p.N)
	e.Int32(p.D)
}
