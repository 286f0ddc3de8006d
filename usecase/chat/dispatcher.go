package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/fastygo/taskbot/domain"
)

// Command is a parsed chat message: "/done abc" has Name "done" and Args "abc".
// Plain text has an empty Name.
type Command struct {
	Name   string
	Args   string
	UserID int64
	ChatID int64
}

// Reply is the text and optional inline keyboard sent back to the chat.
type Reply struct {
	Text    string
	Buttons [][]domain.Button
}

type CommandHandler func(ctx context.Context, cmd Command) (Reply, error)

// Dispatcher routes commands to registered handlers. Plain text goes to the
// text handler; unknown commands go to the fallback.
type Dispatcher struct {
	handlers map[string]CommandHandler
	text     CommandHandler
	fallback CommandHandler
	mu       sync.RWMutex
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]CommandHandler)}
}

func (d *Dispatcher) Register(name string, handler CommandHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[strings.ToLower(name)] = handler
}

func (d *Dispatcher) HandleText(handler CommandHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text = handler
}

func (d *Dispatcher) HandleUnknown(handler CommandHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallback = handler
}

func (d *Dispatcher) Execute(ctx context.Context, cmd Command) (Reply, error) {
	d.mu.RLock()
	handler, ok := d.handlers[cmd.Name]
	if cmd.Name == "" {
		handler, ok = d.text, d.text != nil
	} else if !ok {
		handler, ok = d.fallback, d.fallback != nil
	}
	d.mu.RUnlock()

	if !ok {
		return Reply{}, nil
	}
	return handler(ctx, cmd)
}

// Parse splits a message into a Command. A "@botname" suffix on the command is dropped.
func Parse(text string) Command {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return Command{Args: text}
	}
	name, args, _ := strings.Cut(text[1:], " ")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return Command{Name: strings.ToLower(name), Args: strings.TrimSpace(args)}
}
