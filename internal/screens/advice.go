package screens

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/log"
)

// SuggestedQuestions are offered as one-tap prompts.
var SuggestedQuestions = []string{
	"How can I save money?",
	"What's a good budget for a student?",
	"Plan my Finance",
}

// Advisor answers free-text finance questions.
type Advisor interface {
	Advice(ctx context.Context, question string) (string, error)
}

type MessageKind string

const (
	MessageQuestion MessageKind = "question"
	MessageResponse MessageKind = "response"
)

// ChatStatus reflects the outcome of the last question.
type ChatStatus string

const (
	ChatIdle  ChatStatus = ""
	ChatSent  ChatStatus = "sent"
	ChatError ChatStatus = "error"
)

type Message struct {
	ID      uuid.UUID
	Kind    MessageKind
	Content string
	At      time.Time
}

// ChatState is a snapshot of the conversation.
type ChatState struct {
	Messages    []Message
	Status      ChatStatus
	LastUpdated time.Time
	Suggestions []string
}

// AdviceChat is an append-only conversation with the advisor.
type AdviceChat struct {
	advisor Advisor
	logger  *log.Logger

	mu          sync.Mutex
	messages    []Message
	status      ChatStatus
	lastUpdated time.Time
	closed      bool
}

func NewAdviceChat(advisor Advisor, logger *log.Logger) *AdviceChat {
	if logger == nil {
		logger = log.Discard()
	}
	return &AdviceChat{
		advisor:     advisor,
		logger:      logger.WithComponent(log.ComponentScreens),
		lastUpdated: time.Now(),
	}
}

// Ask appends the question, queries the advisor and appends the answer. An
// empty question does nothing.
func (c *AdviceChat) Ask(ctx context.Context, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrViewClosed
	}
	c.messages = append(c.messages, newMessage(MessageQuestion, question))
	c.status = ChatSent
	c.mu.Unlock()

	advice, err := c.advisor.Advice(ctx, question)
	if err == nil && strings.TrimSpace(advice) == "" {
		err = ErrEmptyAdvice
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrViewClosed
	}
	if err != nil {
		c.status = ChatError
		c.logger.Warn("Advice request failed", log.FieldOperation, log.OpAdvice, log.FieldError, err)
		return err
	}
	c.messages = append(c.messages, newMessage(MessageResponse, advice))
	c.lastUpdated = time.Now()
	return nil
}

// State returns a copy of the conversation.
func (c *AdviceChat) State() ChatState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ChatState{
		Messages:    append([]Message(nil), c.messages...),
		Status:      c.status,
		LastUpdated: c.lastUpdated,
		Suggestions: SuggestedQuestions,
	}
}

// ClearStatus resets the indicator once it has been shown.
func (c *AdviceChat) ClearStatus() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = ChatIdle
}

func (c *AdviceChat) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func newMessage(kind MessageKind, content string) Message {
	return Message{ID: uuid.New(), Kind: kind, Content: content, At: time.Now()}
}
