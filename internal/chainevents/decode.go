package chainevents

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Event signatures, keccak256'd once at package init to give each kind its
// topic0. ERC20/EtherToken signatures are the de facto standard; the
// Exchange signatures follow the 0x v1 Exchange contract's LogFill /
// LogCancel / LogError layout (maker/feeRecipient indexed, orderHash
// carried in the non-indexed data section).
var (
	topicApproval   = crypto.Keccak256Hash([]byte("Approval(address,address,uint256)"))
	topicTransfer   = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	topicDeposit    = crypto.Keccak256Hash([]byte("Deposit(address,uint256)"))
	topicWithdrawal = crypto.Keccak256Hash([]byte("Withdrawal(address,uint256)"))
	topicLogFill    = crypto.Keccak256Hash([]byte("LogFill(address,address,address,address,address,uint256,uint256,uint256,uint256,bytes32,bytes32)"))
	topicLogCancel  = crypto.Keccak256Hash([]byte("LogCancel(address,address,address,address,uint256,uint256,bytes32,bytes32)"))
	topicLogError   = crypto.Keccak256Hash([]byte("LogError(uint8,bytes32)"))
)

func mustArgs(types ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(err)
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args
}

var (
	valueOnlyArgs  = mustArgs("uint256")                                     // Deposit/Withdrawal data
	transferArgs   = mustArgs("uint256")                                     // Transfer data (value)
	logFillArgs    = mustArgs("address", "address", "uint256", "uint256", "uint256", "uint256", "bytes32", "bytes32")
	logCancelArgs  = mustArgs("address", "address", "uint256", "uint256", "bytes32", "bytes32")
)

// Decode classifies a raw log by its topic0 and unpacks the kind-specific
// fields. An unrecognized topic0, or a log whose data does not unpack
// cleanly, yields Unknown rather than an error: spec.md §4.4 requires
// undecodable logs be ignored, not surfaced.
func Decode(log types.Log) Event {
	if len(log.Topics) == 0 {
		return Unknown{base: base{contract: log.Address}}
	}
	b := base{contract: log.Address}

	switch log.Topics[0] {
	case topicApproval:
		if len(log.Topics) < 3 {
			return Unknown{base: b, Topic0: log.Topics[0]}
		}
		values, err := valueOnlyArgs.Unpack(log.Data)
		if err != nil || len(values) != 1 {
			return Unknown{base: b, Topic0: log.Topics[0]}
		}
		return Approval{
			base:    b,
			Owner:   common.BytesToAddress(log.Topics[1].Bytes()),
			Spender: common.BytesToAddress(log.Topics[2].Bytes()),
			Value:   values[0].(*big.Int),
		}

	case topicTransfer:
		if len(log.Topics) < 3 {
			return Unknown{base: b, Topic0: log.Topics[0]}
		}
		values, err := transferArgs.Unpack(log.Data)
		if err != nil || len(values) != 1 {
			return Unknown{base: b, Topic0: log.Topics[0]}
		}
		return Transfer{
			base:  b,
			From:  common.BytesToAddress(log.Topics[1].Bytes()),
			To:    common.BytesToAddress(log.Topics[2].Bytes()),
			Value: values[0].(*big.Int),
		}

	case topicDeposit:
		if len(log.Topics) < 2 {
			return Unknown{base: b, Topic0: log.Topics[0]}
		}
		values, err := valueOnlyArgs.Unpack(log.Data)
		if err != nil || len(values) != 1 {
			return Unknown{base: b, Topic0: log.Topics[0]}
		}
		return Deposit{base: b, Owner: common.BytesToAddress(log.Topics[1].Bytes()), Value: values[0].(*big.Int)}

	case topicWithdrawal:
		if len(log.Topics) < 2 {
			return Unknown{base: b, Topic0: log.Topics[0]}
		}
		values, err := valueOnlyArgs.Unpack(log.Data)
		if err != nil || len(values) != 1 {
			return Unknown{base: b, Topic0: log.Topics[0]}
		}
		return Withdrawal{base: b, Owner: common.BytesToAddress(log.Topics[1].Bytes()), Value: values[0].(*big.Int)}

	case topicLogFill:
		values, err := logFillArgs.Unpack(log.Data)
		if err != nil || len(values) != 8 {
			return Unknown{base: b, Topic0: log.Topics[0]}
		}
		orderHash, ok := values[7].([32]byte)
		if !ok {
			return Unknown{base: b, Topic0: log.Topics[0]}
		}
		return LogFill{base: b, OrderHash: common.Hash(orderHash)}

	case topicLogCancel:
		values, err := logCancelArgs.Unpack(log.Data)
		if err != nil || len(values) != 6 {
			return Unknown{base: b, Topic0: log.Topics[0]}
		}
		orderHash, ok := values[5].([32]byte)
		if !ok {
			return Unknown{base: b, Topic0: log.Topics[0]}
		}
		return LogCancel{base: b, OrderHash: common.Hash(orderHash)}

	case topicLogError:
		return LogError{base: b}

	default:
		return Unknown{base: b, Topic0: log.Topics[0]}
	}
}
