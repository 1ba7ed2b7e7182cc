package app

import (
	"fmt"
	"io"
	"sync"
)

// terminalNotifier prints user-facing messages on one line each.
// Credential requests are shown once per run.
type terminalNotifier struct {
	mu        sync.Mutex
	w         io.Writer
	requested bool
}

func newTerminalNotifier(w io.Writer) *terminalNotifier {
	return &terminalNotifier{w: w}
}

func (n *terminalNotifier) Notify(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.w, "babylog: %s\n", message)
}

func (n *terminalNotifier) RequestCredentials() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.requested {
		return
	}
	n.requested = true
	fmt.Fprintln(n.w, "babylog: API credentials are not configured. Run 'babylog config credentials' to enter a token.")
}
