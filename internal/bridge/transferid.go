package bridge

import (
	"encoding/binary"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ComputeTransferID derives the replay-protection key for an outgoing
// transfer: Keccak-256 over the initiator, amount, per-user nonce, emission
// timestamp and origin chain id. The nonce diversifies otherwise-identical
// transfers; the counterpart side persists only this digest.
func ComputeTransferID(initiator string, amount *big.Int, nonce uint64, timestamp int64, originChainID uint64) common.Hash {
	var nonceBuf, tsBuf, chainBuf [8]byte
	binary.BigEndian.PutUint64(nonceBuf[:], nonce)
	binary.BigEndian.PutUint64(tsBuf[:], uint64(timestamp))
	binary.BigEndian.PutUint64(chainBuf[:], originChainID)

	return crypto.Keccak256Hash(
		[]byte(strings.ToLower(initiator)),
		common.LeftPadBytes(amount.Bytes(), 32),
		nonceBuf[:],
		tsBuf[:],
		chainBuf[:],
	)
}

// ReleaseDigest is the message a validator signs to approve releasing funds to
// a recipient under the signature-based access policy.
func ReleaseDigest(recipient string, amount *big.Int, transferID common.Hash) common.Hash {
	return crypto.Keccak256Hash(
		[]byte(strings.ToLower(recipient)),
		common.LeftPadBytes(amount.Bytes(), 32),
		transferID.Bytes(),
	)
}
