package telegram

var defaultSender Sender = NoopSender{}

type Button struct {
	Text         string
	CallbackData string
}

func SetDefaultSender(sender Sender) {
	if sender != nil {
		defaultSender = sender
	}
}

func DefaultSender() Sender {
	return defaultSender
}
