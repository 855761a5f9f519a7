package event

import (
	"encoding/json"
	"fmt"
)

// accountPayload is the broker wire shape for an account update: the
// flattened record of address, balance, owner, and raw data.
type accountPayload struct {
	Pubkey       string `json:"pubkey"`
	Lamports     uint64 `json:"lamports"`
	Owner        string `json:"owner"`
	Executable   bool   `json:"executable"`
	RentEpoch    uint64 `json:"rentEpoch"`
	Data         []byte `json:"data"`
	Slot         uint64 `json:"slot"`
	IsStartup    bool   `json:"isStartup"`
	WriteVersion uint64 `json:"writeVersion"`
}

// Marshal encodes an event into its broker payload. Transactions, slot
// statuses, and block metadata serialize their structured record directly;
// account updates use the flattened account record.
func Marshal(ev Event) ([]byte, error) {
	switch e := ev.(type) {
	case *AccountUpdate:
		return json.Marshal(accountPayload{
			Pubkey:       e.Pubkey.String(),
			Lamports:     e.Account.Lamports,
			Owner:        e.Account.Owner.String(),
			Executable:   e.Account.Executable,
			RentEpoch:    e.Account.RentEpoch,
			Data:         e.Account.Data,
			Slot:         e.Slot,
			IsStartup:    e.IsStartup,
			WriteVersion: e.WriteVersion,
		})
	case *Transaction, *SlotStatus, *BlockMeta:
		return json.Marshal(e)
	default:
		return nil, fmt.Errorf("marshal event: unknown kind %v", ev.Kind())
	}
}
