package monitor

import "time"

// Message is one entry of mirrored bot traffic.
type Message struct {
	Timestamp time.Time
	// Direction is "USER", "ASSISTANT" or "EVENT".
	Direction string
	Bot       string // "opencode" or "youtube"
	UserID    int64
	Username  string
	Content   string
}

// Monitor mirrors traffic flowing through the bots for live inspection.
type Monitor interface {
	Start() error
	Stop() error
	OnMessage(msg Message)
}

// Multi fans one message out to several monitors.
type Multi []Monitor

func (m Multi) Start() error {
	for _, mon := range m {
		if err := mon.Start(); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) Stop() error {
	for _, mon := range m {
		mon.Stop()
	}
	return nil
}

func (m Multi) OnMessage(msg Message) {
	for _, mon := range m {
		mon.OnMessage(msg)
	}
}
