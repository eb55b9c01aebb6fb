package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"log/slog"
)

var (
	levelVar slog.LevelVar
	mu       sync.RWMutex
	root     *slog.Logger
)

func init() {
	levelVar.Set(slog.LevelInfo)
	root = build(os.Stdout)
}

func build(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: &levelVar})
	return slog.New(h)
}

// SetOutput redirects all subsequent log output to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	root = build(w)
	mu.Unlock()
}

// SetLevel accepts debug/info/warn/error; anything else falls back to info.
func SetLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "info":
		levelVar.Set(slog.LevelInfo)
	case "warn", "warning":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}

func active() *slog.Logger {
	mu.RLock()
	l := root
	mu.RUnlock()
	if l != nil {
		return l
	}
	mu.Lock()
	defer mu.Unlock()
	if root == nil {
		root = build(os.Stdout)
	}
	return root
}

func Debugf(format string, v ...any) {
	active().Debug(fmt.Sprintf(format, v...))
}

func Infof(format string, v ...any) {
	active().Info(fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...any) {
	active().Warn(fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...any) {
	active().Error(fmt.Sprintf(format, v...))
}

// Component returns a printf-style logger bound to one subsystem name so
// long-running loops can tag their output without repeating the prefix.
type Component struct {
	name string
}

func For(name string) Component {
	return Component{name: strings.TrimSpace(name)}
}

func (c Component) prefix(msg string) string {
	if c.name == "" {
		return msg
	}
	return "[" + c.name + "] " + msg
}

func (c Component) Debugf(format string, v ...any) {
	active().Debug(c.prefix(fmt.Sprintf(format, v...)))
}

func (c Component) Infof(format string, v ...any) {
	active().Info(c.prefix(fmt.Sprintf(format, v...)))
}

func (c Component) Warnf(format string, v ...any) {
	active().Warn(c.prefix(fmt.Sprintf(format, v...)))
}

func (c Component) Errorf(format string, v ...any) {
	active().Error(c.prefix(fmt.Sprintf(format, v...)))
}
