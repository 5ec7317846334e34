package history

import (
	"context"
	"sync"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/logging"
)

// Chatter answers a message given the prior history. *agent.Agent
// implements it.
type Chatter interface {
	Chat(ctx context.Context, text string, history []core.Content) (string, error)
}

// ConversationOptions holds configuration overrides passed to NewConversation().
type ConversationOptions struct {
	// Window limits how many stored messages are sent with each turn; 0 sends
	// everything.
	Window int
	Logger logging.Logger
}

// Conversation threads a stored history through a Chatter. Sends on the same
// Conversation are serialized so the stored order matches the exchange.
type Conversation struct {
	id      string
	store   Store
	chatter Chatter
	window  int
	logger  logging.Logger
	mu      sync.Mutex
}

// NewConversation binds a conversation id to a store and chatter.
func NewConversation(id string, store Store, chatter Chatter, optFns ...func(o *ConversationOptions)) *Conversation {
	opts := ConversationOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Conversation{
		id:      id,
		store:   store,
		chatter: chatter,
		window:  opts.Window,
		logger:  core.EnsureLogger(opts.Logger),
	}
}

// ID returns the conversation id.
func (c *Conversation) ID() string { return c.id }

// Send loads the history, asks the chatter and stores the user message and
// reply. Nothing is stored when the chatter fails.
func (c *Conversation) Send(ctx context.Context, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	history, err := c.store.Load(ctx, c.id)
	if err != nil {
		return "", err
	}

	if c.window > 0 && len(history) > c.window {
		history = history[len(history)-c.window:]
	}

	reply, err := c.chatter.Chat(ctx, text, history)
	if err != nil {
		c.logger.Warn("history.conversation.failed", "conversation_id", c.id, "error", err.Error())
		return "", err
	}

	if err := c.store.Append(ctx, c.id, core.UserText(text), core.AssistantText(reply)); err != nil {
		return "", err
	}

	c.logger.Debug("history.conversation.turn", "conversation_id", c.id, "history", len(history))
	return reply, nil
}

// History returns the stored messages.
func (c *Conversation) History(ctx context.Context) ([]core.Content, error) {
	return c.store.Load(ctx, c.id)
}

// Reset deletes the stored messages.
func (c *Conversation) Reset(ctx context.Context) error {
	return c.store.Delete(ctx, c.id)
}
