package babylog

// Notifier is the single user-facing transient message channel.
type Notifier interface {
	// Notify shows a short message to the user.
	Notify(message string)

	// RequestCredentials asks the user to enter the API credentials.
	// Called when a remote operation is attempted without configuration.
	RequestCredentials()
}

// NopNotifier drops every message.
type NopNotifier struct{}

func (NopNotifier) Notify(string)       {}
func (NopNotifier) RequestCredentials() {}
