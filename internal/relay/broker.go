package relay

import "context"

// Dialer opens broker sessions. The publisher loop dials a fresh session on
// every (re)connect and never shares one across loop iterations.
type Dialer interface {
	Dial(ctx context.Context, url string) (Session, error)
}

// Session is one broker connection with publisher confirms enabled.
type Session interface {
	// DeclareQueue declares a queue idempotently.
	DeclareQueue(ctx context.Context, name string) error
	// Publish ships a payload to a queue and waits for the broker
	// confirmation. It returns false without error when the broker
	// negatively acknowledged the message.
	Publish(ctx context.Context, queue string, body []byte) (bool, error)
	Close() error
}
