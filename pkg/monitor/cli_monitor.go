package monitor

import (
	"fmt"
	"io"
	"os"
)

// CLIMonitor prints mirrored traffic straight to the terminal.
type CLIMonitor struct {
	writer io.Writer // typically os.Stdout
}

func NewCLIMonitor() *CLIMonitor {
	return &CLIMonitor{
		writer: os.Stdout,
	}
}

func (m *CLIMonitor) Start() error {
	fmt.Fprintln(m.writer, "----------------------------------------------------------------")
	fmt.Fprintln(m.writer, "💬 CLI Monitor Active - All bot traffic will appear here")
	fmt.Fprintln(m.writer, "----------------------------------------------------------------")
	return nil
}

func (m *CLIMonitor) Stop() error {
	return nil
}

// OnMessage receives and displays a mirrored message.
func (m *CLIMonitor) OnMessage(msg Message) {
	timestamp := msg.Timestamp.Format("2006-01-02 15:04:05")

	var displayMsg string
	switch msg.Direction {
	case "ASSISTANT":
		displayMsg = fmt.Sprintf("[AI] %s", msg.Content)
	case "EVENT":
		displayMsg = fmt.Sprintf("[EVENT] %s", msg.Content)
	default:
		displayMsg = fmt.Sprintf("[%s/%s] %s", msg.Bot, msg.Username, msg.Content)
	}

	// Gray timestamp
	fmt.Fprintf(m.writer, "\033[90m[%s]\033[0m %s\n", timestamp, displayMsg)
}
