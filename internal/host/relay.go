package host

import (
	"fmt"

	"go.uber.org/zap"

	"geyserRelay/internal/event"
	"geyserRelay/internal/fanout"
)

// Config holds the host-facing toggles.
type Config struct {
	// AllowAccounts enables account update notifications at all.
	AllowAccounts bool
	// AllowAccountsAtStartup additionally forwards the account snapshot
	// flood replayed while the host is catching up.
	AllowAccountsAtStartup bool
}

// Relay implements Notifier on top of the fan-out dispatcher. Each call
// normalizes the notification into an event and dispatches it; it returns
// to the host without waiting on any consumer.
type Relay struct {
	cfg        Config
	dispatcher *fanout.Dispatcher
	logger     *zap.Logger
}

func NewRelay(cfg Config, dispatcher *fanout.Dispatcher, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{cfg: cfg, dispatcher: dispatcher, logger: logger}
}

func (r *Relay) NotifyAccount(info AccountInfoVersions, slot uint64, isStartup bool) error {
	if !r.cfg.AllowAccounts || (isStartup && !r.cfg.AllowAccountsAtStartup) {
		return nil
	}
	if info.V3 == nil {
		return fmt.Errorf("account update: %w", ErrUnsupportedVersion)
	}
	v := info.V3
	r.dispatcher.Dispatch(&event.AccountUpdate{
		Pubkey: v.Pubkey,
		Account: event.Account{
			Lamports:   v.Lamports,
			Data:       v.Data,
			Owner:      v.Owner,
			Executable: v.Executable,
			RentEpoch:  v.RentEpoch,
		},
		WriteVersion: v.WriteVersion,
		Slot:         slot,
		IsStartup:    isStartup,
	})
	return nil
}

func (r *Relay) NotifySlotStatus(slot uint64, parentSlot uint64, commitment event.CommitmentLevel) error {
	r.dispatcher.Dispatch(&event.SlotStatus{
		Slot:       slot,
		ParentSlot: parentSlot,
		Commitment: commitment,
	})
	return nil
}

func (r *Relay) NotifyTransaction(info TransactionInfoVersions, slot uint64) error {
	if info.V2 == nil {
		return fmt.Errorf("transaction: %w", ErrUnsupportedVersion)
	}
	v := info.V2
	if v.Meta.Failed() {
		r.logger.Debug("transaction failed on chain, broker delivery suppressed",
			zap.Uint64("slot", slot),
			zap.String("error", v.Meta.Err),
		)
	}
	r.dispatcher.Dispatch(&event.Transaction{
		Slot:       slot,
		Signatures: v.Signatures,
		Message:    v.Message,
		IsVote:     v.IsVote,
		Meta:       v.Meta,
		Index:      v.Index,
	})
	return nil
}

func (r *Relay) NotifyBlockMeta(info BlockInfoVersions) error {
	meta, err := NormalizeBlockMeta(info)
	if err != nil {
		return fmt.Errorf("block meta: %w", err)
	}
	r.dispatcher.Dispatch(meta)
	return nil
}
