package notifier

import "maestro/internal/logger"

// TextNotifier is the minimal push interface. It is intentionally small so
// components can depend on it without importing a concrete transport.
type TextNotifier interface {
	SendText(text string) error
}

// logNotifier routes messages to the process log. It backs deployments that
// run without Telegram credentials.
type logNotifier struct {
	log logger.Component
}

func NewLogNotifier() TextNotifier {
	return logNotifier{log: logger.For("notify")}
}

func (n logNotifier) SendText(text string) error {
	n.log.Infof("%s", text)
	return nil
}
