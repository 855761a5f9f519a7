package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"geyserRelay/internal/event"
	"geyserRelay/internal/host"
)

// The feed replays a JSONL notification stream through the host boundary,
// standing in for the embedding process. One line per notification.
type feedRecord struct {
	Kind      string            `json:"kind"`
	Slot      uint64            `json:"slot"`
	IsStartup bool              `json:"isStartup,omitempty"`
	Account   *feedAccount      `json:"account,omitempty"`
	Tx        *feedTransaction  `json:"transaction,omitempty"`
	Status    *feedSlotStatus   `json:"status,omitempty"`
	Block     *host.BlockInfoV3 `json:"block,omitempty"`
}

type feedAccount struct {
	Pubkey       solana.PublicKey `json:"pubkey"`
	Lamports     uint64           `json:"lamports"`
	Owner        solana.PublicKey `json:"owner"`
	Executable   bool             `json:"executable"`
	RentEpoch    uint64           `json:"rentEpoch"`
	Data         []byte           `json:"data"`
	WriteVersion uint64           `json:"writeVersion"`
}

type feedTransaction struct {
	Signatures []solana.Signature    `json:"signatures"`
	Message    solana.Message        `json:"message"`
	IsVote     bool                  `json:"isVote"`
	Meta       event.TransactionMeta `json:"meta"`
	Index      uint64                `json:"index"`
}

type feedSlotStatus struct {
	ParentSlot uint64                `json:"parentSlot"`
	Commitment event.CommitmentLevel `json:"commitment"`
}

func feedEvents(ctx context.Context, path string, notifier host.Notifier, logger *zap.Logger) error {
	input := os.Stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open event stream: %w", err)
		}
		defer file.Close()
		input = file
	}

	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record feedRecord
		if err := json.Unmarshal(line, &record); err != nil {
			logger.Warn("skipping malformed feed line", zap.Int("line", lineNo), zap.Error(err))
			continue
		}

		if err := notify(notifier, record); err != nil {
			logger.Error("notification rejected", zap.Int("line", lineNo), zap.String("kind", record.Kind), zap.Error(err))
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read event stream: %w", err)
	}
	return nil
}

func notify(notifier host.Notifier, record feedRecord) error {
	switch record.Kind {
	case "accountUpdate":
		if record.Account == nil {
			return fmt.Errorf("accountUpdate record without account body")
		}
		a := record.Account
		return notifier.NotifyAccount(host.AccountInfoVersions{V3: &host.AccountInfoV3{
			Pubkey:       a.Pubkey,
			Lamports:     a.Lamports,
			Owner:        a.Owner,
			Executable:   a.Executable,
			RentEpoch:    a.RentEpoch,
			Data:         a.Data,
			WriteVersion: a.WriteVersion,
		}}, record.Slot, record.IsStartup)
	case "transaction":
		if record.Tx == nil {
			return fmt.Errorf("transaction record without transaction body")
		}
		t := record.Tx
		return notifier.NotifyTransaction(host.TransactionInfoVersions{V2: &host.TransactionInfoV2{
			Signatures: t.Signatures,
			Message:    t.Message,
			IsVote:     t.IsVote,
			Meta:       t.Meta,
			Index:      t.Index,
		}}, record.Slot)
	case "slotStatus":
		if record.Status == nil {
			return fmt.Errorf("slotStatus record without status body")
		}
		return notifier.NotifySlotStatus(record.Slot, record.Status.ParentSlot, record.Status.Commitment)
	case "blockMeta":
		if record.Block == nil {
			return fmt.Errorf("blockMeta record without block body")
		}
		return notifier.NotifyBlockMeta(host.BlockInfoVersions{V3: record.Block})
	default:
		return fmt.Errorf("unknown notification kind %q", record.Kind)
	}
}
