package event

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Kind identifies the variant of an Event.
type Kind int

const (
	KindAccountUpdate Kind = iota
	KindTransaction
	KindSlotStatus
	KindBlockMeta
)

// String returns the kind name used in logs and storage.
func (k Kind) String() string {
	switch k {
	case KindAccountUpdate:
		return "accountUpdate"
	case KindTransaction:
		return "transaction"
	case KindSlotStatus:
		return "slotStatus"
	case KindBlockMeta:
		return "blockMeta"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Event is one immutable occurrence notification flowing through the
// pipeline. Events are constructed once and shared between consumers;
// nothing mutates them after construction, so fan-out passes the same
// pointer to every channel.
type Event interface {
	Kind() Kind
}

// SlotOf returns the slot an event belongs to.
func SlotOf(ev Event) uint64 {
	switch e := ev.(type) {
	case *AccountUpdate:
		return e.Slot
	case *Transaction:
		return e.Slot
	case *SlotStatus:
		return e.Slot
	case *BlockMeta:
		return e.Slot
	default:
		return 0
	}
}

// Account is the snapshot of account state carried by an AccountUpdate.
type Account struct {
	Lamports   uint64           `json:"lamports"`
	Data       []byte           `json:"data"`
	Owner      solana.PublicKey `json:"owner"`
	Executable bool             `json:"executable"`
	RentEpoch  uint64           `json:"rentEpoch"`
}

// AccountUpdate reports one account write.
type AccountUpdate struct {
	Pubkey       solana.PublicKey `json:"pubkey"`
	Account      Account          `json:"account"`
	WriteVersion uint64           `json:"writeVersion"`
	Slot         uint64           `json:"slot"`
	IsStartup    bool             `json:"isStartup"`
}

func (*AccountUpdate) Kind() Kind { return KindAccountUpdate }

// TokenBalance is a pre- or post-execution token balance entry.
type TokenBalance struct {
	AccountIndex uint8  `json:"accountIndex"`
	Mint         string `json:"mint"`
	TokenAmount  uint64 `json:"tokenAmount"`
	Owner        string `json:"owner"`
	ProgramID    string `json:"programId"`
}

// InnerInstructions groups the instructions invoked by one top-level
// instruction.
type InnerInstructions struct {
	Index        uint8                        `json:"index"`
	Instructions []solana.CompiledInstruction `json:"instructions"`
}

// Reward is a per-account reward entry attached to transactions and blocks.
type Reward struct {
	Pubkey      string `json:"pubkey"`
	Lamports    int64  `json:"lamports"`
	PostBalance uint64 `json:"postBalance"`
	RewardType  string `json:"rewardType,omitempty"`
	Commission  *uint8 `json:"commission,omitempty"`
}

// LoadedAddresses lists the addresses resolved from address table lookups.
type LoadedAddresses struct {
	Writable []solana.PublicKey `json:"writable"`
	Readonly []solana.PublicKey `json:"readonly"`
}

// ReturnData carries the return data emitted by a program.
type ReturnData struct {
	ProgramID solana.PublicKey `json:"programId"`
	Data      []byte           `json:"data"`
}

// TransactionMeta carries the execution results of a transaction. An empty
// Err means the transaction executed successfully on chain.
type TransactionMeta struct {
	Err                  string              `json:"error,omitempty"`
	Fee                  uint64              `json:"fee"`
	PreBalances          []uint64            `json:"preBalances"`
	PostBalances         []uint64            `json:"postBalances"`
	PreTokenBalances     []TokenBalance      `json:"preTokenBalances,omitempty"`
	PostTokenBalances    []TokenBalance      `json:"postTokenBalances,omitempty"`
	InnerInstructions    []InnerInstructions `json:"innerInstructions,omitempty"`
	LogMessages          []string            `json:"logMessages,omitempty"`
	Rewards              []Reward            `json:"rewards,omitempty"`
	LoadedAddresses      LoadedAddresses     `json:"loadedAddresses"`
	ReturnData           *ReturnData         `json:"returnData,omitempty"`
	ComputeUnitsConsumed *uint64             `json:"computeUnitsConsumed,omitempty"`
}

// Failed reports whether the transaction failed on-chain execution.
func (m TransactionMeta) Failed() bool { return m.Err != "" }

// Transaction reports one executed transaction.
type Transaction struct {
	Slot       uint64             `json:"slot"`
	Signatures []solana.Signature `json:"signatures"`
	Message    solana.Message     `json:"message"`
	IsVote     bool               `json:"isVote"`
	Meta       TransactionMeta    `json:"meta"`
	Index      uint64             `json:"index"`
}

func (*Transaction) Kind() Kind { return KindTransaction }

// CommitmentLevel is the confirmation depth of a slot.
type CommitmentLevel string

const (
	CommitmentProcessed CommitmentLevel = "processed"
	CommitmentConfirmed CommitmentLevel = "confirmed"
	CommitmentFinalized CommitmentLevel = "finalized"
)

// SlotStatus reports a slot reaching a commitment level.
type SlotStatus struct {
	Slot       uint64          `json:"slot"`
	ParentSlot uint64          `json:"parentSlot"`
	Commitment CommitmentLevel `json:"commitment"`
}

func (*SlotStatus) Kind() Kind { return KindSlotStatus }

// BlockMeta is the canonical block metadata record, normalized from the
// upstream schema versions at the host boundary.
type BlockMeta struct {
	Slot                     uint64   `json:"slot"`
	ParentSlot               uint64   `json:"parentSlot"`
	Blockhash                string   `json:"blockhash"`
	ParentBlockhash          string   `json:"parentBlockhash"`
	Rewards                  []Reward `json:"rewards"`
	BlockHeight              *uint64  `json:"blockHeight,omitempty"`
	ExecutedTransactionCount uint64   `json:"executedTransactionCount"`
	EntryCount               uint64   `json:"entryCount"`
	BlockTime                uint64   `json:"blockTime"`
}

func (*BlockMeta) Kind() Kind { return KindBlockMeta }
