package derivation

import (
	"crypto/sha256"

	"filippo.io/edwards25519"

	"cashledger/common"
	"cashledger/errors"
)

// Namespace tags. Records of different kinds can never collide because the
// tag is the first seed of every derivation.
const (
	TagCashAccount    = "cash-account"
	TagPendingRequest = "pending-request"
	TagTreasury       = "treasury"
)

// MaxBump is the first bump tried; the search walks downward to 0.
const MaxBump = 255

// marker domain-separates derived addresses from real public keys hashed by
// anything else.
const marker = "CashLedgerDerivedAddress"

// Derive maps (tag, owner identity, optional extra seeds) to the canonical
// storage address for that record kind. Deterministic: the same inputs always
// yield the same address. The returned bump is the disambiguation value that
// produced a valid address; callers persist it so the address can be
// recomputed and verified with DeriveWithBump on later calls.
func Derive(tag string, owner string, extra ...string) (string, uint8, error) {
	seeds, err := seedBytes(tag, owner, extra)
	if err != nil {
		return "", 0, err
	}
	for bump := MaxBump; bump >= 0; bump-- {
		addr, ok := candidate(seeds, uint8(bump))
		if ok {
			return addr, uint8(bump), nil
		}
	}
	return "", 0, errors.Newf(errors.ErrCodeDerivationExhausted,
		"no valid bump in [0,%d] for tag %q owner %s", MaxBump, tag, owner)
}

// DeriveWithBump recomputes the address for a known bump. It fails if the
// candidate at that bump is reserved, so a caller-claimed (address, bump)
// pair can be verified server-side before any record is touched.
func DeriveWithBump(tag string, owner string, bump uint8, extra ...string) (string, error) {
	seeds, err := seedBytes(tag, owner, extra)
	if err != nil {
		return "", err
	}
	addr, ok := candidate(seeds, bump)
	if !ok {
		return "", errors.Newf(errors.ErrCodeInvalidAddress,
			"bump %d yields a reserved address for tag %q owner %s", bump, tag, owner)
	}
	return addr, nil
}

func candidate(seeds [][]byte, bump uint8) (string, bool) {
	h := sha256.New()
	for _, s := range seeds {
		h.Write(s)
	}
	h.Write([]byte{bump})
	h.Write([]byte(marker))
	sum := h.Sum(nil)
	if isOnCurve(sum) {
		return "", false
	}
	return common.EncodeBytesToBase58(sum), true
}

// isOnCurve reports whether the 32 bytes decode as a canonical edwards25519
// point. Such values are reserved: a derived address must never be
// indistinguishable from a real public key.
func isOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

func seedBytes(tag string, owner string, extra []string) ([][]byte, error) {
	ownerBytes, err := common.DecodeBase58ToBytes(owner)
	if err != nil {
		return nil, errors.Newf(errors.ErrCodeInvalidAddress, "owner identity is not valid base58: %s", owner)
	}
	seeds := make([][]byte, 0, len(extra)+2)
	seeds = append(seeds, []byte(tag), ownerBytes)
	for _, e := range extra {
		eb, err := common.DecodeBase58ToBytes(e)
		if err != nil {
			return nil, errors.Newf(errors.ErrCodeInvalidAddress, "seed is not valid base58: %s", e)
		}
		seeds = append(seeds, eb)
	}
	return seeds, nil
}
