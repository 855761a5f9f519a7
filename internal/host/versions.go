package host

import (
	"github.com/gagliardetto/solana-go"

	"geyserRelay/internal/event"
)

// The host hands over notifications in whichever schema version it was
// built against. Exactly one version pointer is set per notification;
// normalization into the canonical event shape happens here, and an unset
// or unknown version is an explicit ErrUnsupportedVersion back to the host.

// AccountInfoV3 is the current account update schema.
type AccountInfoV3 struct {
	Pubkey       solana.PublicKey
	Lamports     uint64
	Owner        solana.PublicKey
	Executable   bool
	RentEpoch    uint64
	Data         []byte
	WriteVersion uint64
}

// AccountInfoVersions is the tagged union of account update schemas.
type AccountInfoVersions struct {
	V3 *AccountInfoV3
}

// TransactionInfoV2 is the current transaction notification schema.
type TransactionInfoV2 struct {
	Signatures []solana.Signature
	Message    solana.Message
	IsVote     bool
	Meta       event.TransactionMeta
	Index      uint64
}

// TransactionInfoVersions is the tagged union of transaction schemas.
type TransactionInfoVersions struct {
	V2 *TransactionInfoV2
}

// BlockInfoV1 carries only the earliest block metadata fields.
type BlockInfoV1 struct {
	Slot        uint64
	Blockhash   string
	Rewards     []event.Reward
	BlockTime   *int64
	BlockHeight *uint64
}

// BlockInfoV2 adds the parent linkage and the executed transaction count.
type BlockInfoV2 struct {
	Slot                     uint64
	ParentSlot               uint64
	Blockhash                string
	ParentBlockhash          string
	Rewards                  []event.Reward
	BlockTime                *int64
	BlockHeight              *uint64
	ExecutedTransactionCount uint64
}

// BlockInfoV3 adds the entry count.
type BlockInfoV3 struct {
	Slot                     uint64
	ParentSlot               uint64
	Blockhash                string
	ParentBlockhash          string
	Rewards                  []event.Reward
	BlockTime                *int64
	BlockHeight              *uint64
	ExecutedTransactionCount uint64
	EntryCount               uint64
}

// RewardsAndNumPartitions wraps rewards in the V4 schema.
type RewardsAndNumPartitions struct {
	Rewards       []event.Reward
	NumPartitions *uint64
}

// BlockInfoV4 wraps rewards together with the partition count.
type BlockInfoV4 struct {
	Slot                     uint64
	ParentSlot               uint64
	Blockhash                string
	ParentBlockhash          string
	Rewards                  RewardsAndNumPartitions
	BlockTime                *int64
	BlockHeight              *uint64
	ExecutedTransactionCount uint64
	EntryCount               uint64
}

// BlockInfoVersions is the tagged union of block metadata schemas.
type BlockInfoVersions struct {
	V1 *BlockInfoV1
	V2 *BlockInfoV2
	V3 *BlockInfoV3
	V4 *BlockInfoV4
}

// NormalizeBlockMeta maps any supported block metadata version to the
// canonical record. Fields a version does not carry default to zero.
func NormalizeBlockMeta(info BlockInfoVersions) (*event.BlockMeta, error) {
	switch {
	case info.V1 != nil:
		v := info.V1
		return &event.BlockMeta{
			Slot:        v.Slot,
			Blockhash:   v.Blockhash,
			Rewards:     v.Rewards,
			BlockHeight: v.BlockHeight,
			BlockTime:   blockTime(v.BlockTime),
		}, nil
	case info.V2 != nil:
		v := info.V2
		return &event.BlockMeta{
			Slot:                     v.Slot,
			ParentSlot:               v.ParentSlot,
			Blockhash:                v.Blockhash,
			ParentBlockhash:          v.ParentBlockhash,
			Rewards:                  v.Rewards,
			BlockHeight:              v.BlockHeight,
			ExecutedTransactionCount: v.ExecutedTransactionCount,
			BlockTime:                blockTime(v.BlockTime),
		}, nil
	case info.V3 != nil:
		v := info.V3
		return &event.BlockMeta{
			Slot:                     v.Slot,
			ParentSlot:               v.ParentSlot,
			Blockhash:                v.Blockhash,
			ParentBlockhash:          v.ParentBlockhash,
			Rewards:                  v.Rewards,
			BlockHeight:              v.BlockHeight,
			ExecutedTransactionCount: v.ExecutedTransactionCount,
			EntryCount:               v.EntryCount,
			BlockTime:                blockTime(v.BlockTime),
		}, nil
	case info.V4 != nil:
		v := info.V4
		return &event.BlockMeta{
			Slot:                     v.Slot,
			ParentSlot:               v.ParentSlot,
			Blockhash:                v.Blockhash,
			ParentBlockhash:          v.ParentBlockhash,
			Rewards:                  v.Rewards.Rewards,
			BlockHeight:              v.BlockHeight,
			ExecutedTransactionCount: v.ExecutedTransactionCount,
			EntryCount:               v.EntryCount,
			BlockTime:                blockTime(v.BlockTime),
		}, nil
	default:
		return nil, ErrUnsupportedVersion
	}
}

func blockTime(t *int64) uint64 {
	if t == nil || *t < 0 {
		return 0
	}
	return uint64(*t)
}
