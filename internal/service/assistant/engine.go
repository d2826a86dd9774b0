// Package assistant is the conversational engine: it runs one user message
// through classification and execution and records the turn in the session.
package assistant

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/zhouzirui/ticket-assistant/backend/internal/analysis/intent"
	"github.com/zhouzirui/ticket-assistant/backend/internal/clock"
	"github.com/zhouzirui/ticket-assistant/backend/internal/model/catalog"
	"github.com/zhouzirui/ticket-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/ticket-assistant/backend/internal/ports"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/action"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/knowledge"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/session"
)

// Engine composes the assistant's components. It is safe for concurrent use
// across sessions; each session handles one message at a time.
type Engine struct {
	store      *session.Store
	classifier *intent.Classifier
	executor   *action.Executor
	sync       *knowledge.Synchronizer
	pending    ports.PendingStore
	clock      clock.Clock
}

// New wires an Engine.
func New(store *session.Store, classifier *intent.Classifier, executor *action.Executor, syncer *knowledge.Synchronizer, pending ports.PendingStore, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.System{}
	}
	return &Engine{
		store:      store,
		classifier: classifier,
		executor:   executor,
		sync:       syncer,
		pending:    pending,
		clock:      clk,
	}
}

// CreateSession opens a new conversation for user (nil for a guest).
func (e *Engine) CreateSession(ctx context.Context, user *catalog.User) (chat.Session, error) {
	sess, err := e.store.Create(ctx, user)
	if err != nil {
		return chat.Session{}, err
	}
	if _, err := e.store.Dispatch(ctx, sess.ID, session.Event{Type: session.EventOpen}); err != nil {
		return chat.Session{}, err
	}
	log.Printf("[assistant] session %s created (authenticated=%t)", sess.ID, user != nil)
	return sess, nil
}

// Session returns the session metadata.
func (e *Engine) Session(ctx context.Context, sessionID string) (chat.Session, error) {
	return e.store.Get(ctx, sessionID)
}

// HandleMessage runs one user turn. It fails only when the session is
// unknown or already busy; every other problem is answered in the response.
func (e *Engine) HandleMessage(ctx context.Context, sessionID, input string) (chat.Response, error) {
	release, err := e.store.BeginTurn(sessionID)
	if err != nil {
		return chat.Response{}, err
	}
	defer release()

	sess, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return chat.Response{}, err
	}
	mem, err := e.store.Memory(sessionID)
	if err != nil {
		return chat.Response{}, err
	}
	before, err := e.store.State(ctx, sessionID)
	if err != nil {
		return chat.Response{}, err
	}

	userMsg := e.store.NewMessage(chat.RoleUser, input, nil)
	if _, err := e.store.Dispatch(ctx, sessionID, session.Event{Type: session.EventSendStarted, Message: &userMsg}); err != nil {
		return chat.Response{}, err
	}

	// Titles must be known before classification can spot a named event.
	prefetched := map[knowledge.Resource]error{
		knowledge.ResourceEvents: e.sync.Refresh(ctx, mem, sess.User, knowledge.ResourceEvents, false),
	}

	cls := e.classifier.Classify(input, hintsFor(mem, before.Turn))
	log.Printf("[assistant] session=%s intent=%s", sessionID, cls.Intent)

	resp := e.executor.Execute(ctx, action.Request{
		User:           sess.User,
		Input:          input,
		Classification: cls,
		Turn:           before.Turn,
		History:        before.Messages,
		Memory:         mem,
		Prefetched:     prefetched,
	})

	if resp.Pending != nil {
		if err := e.pending.Set(ctx, sessionID, *resp.Pending); err != nil {
			log.Printf("[assistant] store pending navigation for %s failed: %v", sessionID, err)
		}
	}

	if turn, changed := nextTurn(cls.Intent, before.Turn, resp); changed {
		if _, err := e.store.Dispatch(ctx, sessionID, session.Event{Type: session.EventSetTurnContext, Turn: turn}); err != nil {
			return chat.Response{}, err
		}
	}

	reply := e.store.NewMessage(chat.RoleAssistant, resp.Message, replyMetadata(resp))
	if _, err := e.store.Dispatch(ctx, sessionID, session.Event{Type: session.EventReplyReceived, Message: &reply}); err != nil {
		return chat.Response{}, err
	}
	return resp, nil
}

// Toggle flips the session's open flag.
func (e *Engine) Toggle(ctx context.Context, sessionID string) (session.State, error) {
	return e.store.Dispatch(ctx, sessionID, session.Event{Type: session.EventToggle})
}

// Clear forgets the conversation and any pending navigation. Knowledge is
// kept.
func (e *Engine) Clear(ctx context.Context, sessionID string) (session.State, error) {
	st, err := e.store.Dispatch(ctx, sessionID, session.Event{Type: session.EventClear})
	if err != nil {
		return session.State{}, err
	}
	if err := e.pending.Clear(ctx, sessionID); err != nil {
		log.Printf("[assistant] clear pending navigation for %s failed: %v", sessionID, err)
	}
	return st, nil
}

// State returns the session's conversation state.
func (e *Engine) State(ctx context.Context, sessionID string) (session.State, error) {
	return e.store.State(ctx, sessionID)
}

// KnowledgeView is the session's knowledge as served to clients.
type KnowledgeView struct {
	Snapshot  knowledge.Snapshot `json:"snapshot"`
	Summary   string             `json:"summary"`
	Freshness string             `json:"freshness"`
	Warnings  []string           `json:"warnings,omitempty"`
}

// Knowledge refreshes every resource the session's user may read and returns
// the result. force ignores the freshness window.
func (e *Engine) Knowledge(ctx context.Context, sessionID string, force bool) (KnowledgeView, error) {
	sess, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return KnowledgeView{}, err
	}
	mem, err := e.store.Memory(sessionID)
	if err != nil {
		return KnowledgeView{}, err
	}

	view := KnowledgeView{}
	for _, w := range e.sync.RefreshAll(ctx, mem, sess.User, force) {
		view.Warnings = append(view.Warnings, w.Error())
	}

	now := e.clock.Now()
	view.Snapshot = mem.Snapshot().VisibleTo(sess.User)
	view.Summary = view.Snapshot.Summary(now)
	view.Freshness = view.Snapshot.Freshness(now)
	return view, nil
}

// SignIn attaches user to the session and hands back the navigation that was
// waiting for authentication, if any.
func (e *Engine) SignIn(ctx context.Context, sessionID string, user *catalog.User) (*chat.NavigatePayload, error) {
	if user == nil || user.ID == "" {
		return nil, fmt.Errorf("sign in: user id is required")
	}
	if _, err := e.store.SetUser(ctx, sessionID, user); err != nil {
		return nil, err
	}
	return e.ConsumePending(ctx, sessionID)
}

// ConsumePending returns and clears the session's pending navigation.
func (e *Engine) ConsumePending(ctx context.Context, sessionID string) (*chat.NavigatePayload, error) {
	if _, err := e.store.Get(ctx, sessionID); err != nil {
		return nil, err
	}

	nav, ok, err := e.pending.Consume(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("consume pending navigation: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &nav, nil
}

// Run expires cached search results of every session until ctx ends.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	e.store.Run(ctx, interval)
}

func hintsFor(mem *knowledge.Memory, turn chat.TurnContext) intent.Hints {
	events := mem.Events()
	refs := make([]intent.EventRef, 0, len(events))
	for _, ev := range events {
		refs = append(refs, intent.EventRef{ID: ev.ID, Title: ev.Title})
	}
	return intent.Hints{Events: refs, AwaitingTicketChoice: turn.TicketOptions != nil}
}

// nextTurn decides the turn context after resp. Offered choices replace it;
// a confirmation that could not complete keeps the previous offer open; any
// other reply closes it.
func nextTurn(in intent.Intent, before chat.TurnContext, resp chat.Response) (*chat.TurnContext, bool) {
	if resp.Turn != nil {
		return resp.Turn, true
	}
	if in == intent.ConfirmBooking || before.Empty() {
		return nil, false
	}
	return nil, true
}

func replyMetadata(resp chat.Response) map[string]any {
	meta := map[string]any{"intent": resp.Intent}
	if resp.Action != nil {
		meta["action"] = string(resp.Action.Type)
	}
	if resp.Warning != "" {
		meta["warning"] = resp.Warning
	}
	return meta
}
