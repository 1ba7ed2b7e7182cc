package testutil

import "sync"

// RecordingNotifier collects every notification. Safe for concurrent use.
type RecordingNotifier struct {
	mu                 sync.Mutex
	messages           []string
	credentialRequests int
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

func (n *RecordingNotifier) Notify(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *RecordingNotifier) RequestCredentials() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.credentialRequests++
}

// Messages returns the notified messages in order.
func (n *RecordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

// CredentialRequests returns how many times credentials were requested.
func (n *RecordingNotifier) CredentialRequests() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.credentialRequests
}
