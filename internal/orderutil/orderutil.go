// Package orderutil computes the 0x v1 order hash and verifies the maker's
// signature over it, adapted from the EIP-712-flavored signing helpers a
// CLOB client needs: pack fields into a fixed-width byte string, hash once,
// recover the signer from r/s/v. Unlike EIP-712, the 0x v1 Exchange hashes
// a flat field list rather than a typed struct, so there is no domain
// separator here — only the struct hash step applies.
package orderutil

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/orderwatch/internal/domain"
)

// schemaHash is the 0x v1 Exchange's fixed hash header:
// keccak256("address Exchange,address Maker,address Taker,address MakerToken,address TakerToken,address FeeRecipient,uint256 MakerTokenAmount,uint256 TakerTokenAmount,uint256 MakerFee,uint256 TakerFee,uint256 ExpirationUnixTimestampSec,uint256 Salt")
var schemaHash = crypto.Keccak256(
	[]byte("address Exchange,address Maker,address Taker,address MakerToken,address TakerToken,address FeeRecipient,uint256 MakerTokenAmount,uint256 TakerTokenAmount,uint256 MakerFee,uint256 TakerFee,uint256 ExpirationUnixTimestampSec,uint256 Salt"),
)

// Hash computes the order hash the 0x v1 Exchange contract uses as the key
// for its filled/cancelled mappings: keccak256(schemaHash || fields...).
// exchange is the deployed Exchange contract address; every other field
// comes from the order itself.
func Hash(o domain.SignedOrder, exchange common.Address) common.Hash {
	buf := concat(
		schemaHash,
		leftPad(exchange.Bytes()),
		leftPad(o.Maker.Bytes()),
		leftPad(o.Taker.Bytes()),
		leftPad(o.MakerTokenAddress.Bytes()),
		leftPad(o.TakerTokenAddress.Bytes()),
		leftPad(o.FeeRecipient.Bytes()),
		bigIntTo32Bytes(o.MakerAmount),
		bigIntTo32Bytes(o.TakerAmount),
		bigIntTo32Bytes(o.MakerFee),
		bigIntTo32Bytes(o.TakerFee),
		bigIntTo32Bytes(big.NewInt(o.ExpirationTimestampSec)),
		bigIntTo32Bytes(o.Salt),
	)
	return common.BytesToHash(crypto.Keccak256(buf))
}

// Verifier recomputes an order's hash against a fixed Exchange address and
// checks its signature, implementing internal/watcher.HashVerifier.
type Verifier struct {
	Exchange common.Address
	ZRX      common.Address
}

// Verify recomputes order.OrderHash from its fields and checks that
// order.Signature recovers to order.Maker over that hash. It mutates
// nothing; callers compare the recomputed hash against the one the order
// was submitted with.
func (v Verifier) Verify(order domain.SignedOrder) error {
	recomputed := Hash(order, v.Exchange)
	if recomputed != order.OrderHash {
		return fmt.Errorf("orderutil: order hash mismatch: got %s, want %s", order.OrderHash, recomputed)
	}
	ok, err := VerifySignature(recomputed, order.Maker, order.Signature)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("orderutil: signature does not recover to maker %s", order.Maker)
	}
	return nil
}

// ZRXTokenAddress lets internal/watcher recover the configured fee token
// through the HashVerifier it already holds, without a separate wiring
// parameter.
func (v Verifier) ZRXTokenAddress() common.Address {
	return v.ZRX
}

// VerifySignature recovers the address that produced sig over orderHash
// and reports whether it matches maker. sig must be the 65-byte r||s||v
// form produced by crypto.Sign, with v normalized to {27,28} or {0,1}.
func VerifySignature(orderHash common.Hash, maker common.Address, sig []byte) (bool, error) {
	if len(sig) != 65 {
		return false, fmt.Errorf("orderutil: signature must be 65 bytes, got %d", len(sig))
	}
	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pub, err := crypto.SigToPub(orderHash.Bytes(), normalized)
	if err != nil {
		return false, fmt.Errorf("orderutil: recover signer: %w", err)
	}
	recovered := crypto.PubkeyToAddress(*pub)
	return recovered == maker, nil
}

// Sign produces a 65-byte r||s||v signature over orderHash with v
// normalized to {27,28}, the form 0x v1 orders expect on the wire.
func Sign(orderHash common.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(orderHash.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("orderutil: sign: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

func bigIntTo32Bytes(n *big.Int) []byte {
	if n == nil {
		return make([]byte, 32)
	}
	return leftPad(n.Bytes())
}

func leftPad(b []byte) []byte {
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return padded
}

func concat(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
