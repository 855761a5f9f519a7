package filter

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"geyserRelay/internal/event"
)

// Filter is the subscription allow-list for broker delivery. It is
// immutable after construction and safe for concurrent reads from the
// dispatch path.
type Filter struct {
	allowed map[solana.PublicKey]struct{}
}

// New parses the configured base58 addresses into a Filter.
func New(addresses []string) (*Filter, error) {
	allowed := make(map[solana.PublicKey]struct{}, len(addresses))
	for _, addr := range addresses {
		key, err := solana.PublicKeyFromBase58(addr)
		if err != nil {
			return nil, fmt.Errorf("parse address %q: %w", addr, err)
		}
		allowed[key] = struct{}{}
	}
	return &Filter{allowed: allowed}, nil
}

// Size returns the number of addresses in the allow-list.
func (f *Filter) Size() int { return len(f.allowed) }

// Matches reports whether an event is interesting: an account update when
// its owning program is allow-listed, a transaction when any account key of
// its message is allow-listed. Other kinds always match.
func (f *Filter) Matches(ev event.Event) bool {
	switch e := ev.(type) {
	case *event.AccountUpdate:
		_, ok := f.allowed[e.Account.Owner]
		return ok
	case *event.Transaction:
		for _, key := range e.Message.AccountKeys {
			if _, ok := f.allowed[key]; ok {
				return true
			}
		}
		return false
	default:
		return true
	}
}
