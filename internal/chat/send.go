package chat

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/agentchat/agentchat-go/internal/api"
	"github.com/agentchat/agentchat-go/internal/logger"
)

// FSM states for one send.
var (
	stateComposing stateless.State = "ComposingRequest"
	stateStreaming stateless.State = "Streaming"
	stateSettled   stateless.State = "Settled"
	stateFailed    stateless.State = "Failed"
)

// FSM triggers.
var (
	triggerSend       stateless.Trigger = "Send"
	triggerStreamOpen stateless.Trigger = "StreamOpened"
	triggerStreamEnd  stateless.Trigger = "StreamEnded"
	triggerSendFailed stateless.Trigger = "SendFailed"
)

// sendContext is the ephemeral streaming session for one in-flight send:
// target conversation, placeholder location, and terminal status. It is
// destroyed when the send settles; never persisted.
type sendContext struct {
	conversationID string
	payload        api.MessageCreate
	userMsg        api.Message
	placeholderID  string
	placeholderIdx int
	stream         api.Stream
	onFragment     func(string)
	lastErr        error
}

// SendMessage sends content to the active conversation over the streaming
// endpoint. Two transcript entries — the user message and an empty agent
// placeholder — are appended synchronously before any network activity, then
// every decoded fragment is appended to the placeholder in arrival order.
// onFragment, when non-nil, observes each fragment after it is applied.
//
// A second send while one is in flight is rejected with a precondition
// error; callers serialize sends per store.
func (s *Store) SendMessage(ctx context.Context, content string, onFragment func(string)) error {
	sc, err := s.beginSend(content, onFragment)
	if err != nil {
		return err
	}
	defer s.endSend()

	fsm := stateless.NewStateMachine(stateComposing)

	fsm.Configure(stateComposing).
		PermitReentry(triggerSend).
		OnEntry(func(_ context.Context, _ ...any) error {
			st, err := s.backend.OpenMessageStream(ctx, sc.conversationID, sc.payload)
			if err != nil {
				sc.lastErr = err
				return fsm.FireCtx(ctx, triggerSendFailed)
			}
			sc.stream = st
			return fsm.FireCtx(ctx, triggerStreamOpen)
		}).
		Permit(triggerStreamOpen, stateStreaming).
		Permit(triggerSendFailed, stateFailed)

	fsm.Configure(stateStreaming).
		OnEntry(func(_ context.Context, _ ...any) error {
			defer sc.stream.Close()
			for {
				frag, err := sc.stream.Recv()
				if errors.Is(err, io.EOF) {
					return fsm.FireCtx(ctx, triggerStreamEnd)
				}
				if err != nil {
					sc.lastErr = err
					return fsm.FireCtx(ctx, triggerSendFailed)
				}
				s.applyFragment(sc, frag)
				if sc.onFragment != nil {
					sc.onFragment(frag)
				}
			}
		}).
		Permit(triggerStreamEnd, stateSettled).
		Permit(triggerSendFailed, stateFailed)

	fsm.Configure(stateSettled).
		OnEntry(func(_ context.Context, _ ...any) error {
			s.settleSuccess(sc)
			return nil
		})

	fsm.Configure(stateFailed).
		OnEntry(func(_ context.Context, _ ...any) error {
			s.settleFailure(sc)
			return nil
		})

	// Re-entry on the initial state runs its OnEntry, which drives the
	// machine to a terminal state before FireCtx returns.
	if err := fsm.FireCtx(ctx, triggerSend); err != nil {
		logger.L.Warn("send FSM fire error", "error", err)
	}
	return sc.lastErr
}

// beginSend checks preconditions and performs the optimistic append. Both
// entries carry the same timestamp, the current agent mode, and
// collision-resistant local identifiers.
func (s *Store) beginSend(content string, onFragment func(string)) (*sendContext, error) {
	s.mu.Lock()

	var precondition string
	switch {
	case s.activeID == "":
		precondition = "no active conversation"
	case s.sending:
		precondition = "another send is already in progress"
	}
	if precondition != "" {
		s.lastErr = precondition
		s.mu.Unlock()
		return nil, &api.Error{Kind: api.KindPrecondition, Message: precondition}
	}

	convID := s.activeID
	mode := s.agentMode
	now := time.Now()
	userMsg := api.Message{
		ID:             newLocalID(),
		ConversationID: convID,
		Role:           api.RoleUser,
		Content:        content,
		AgentMode:      mode,
		CreatedAt:      now,
	}
	placeholder := api.Message{
		ID:             newLocalID(),
		ConversationID: convID,
		Role:           api.RoleAgent,
		AgentMode:      mode,
		CreatedAt:      now,
	}
	s.transcripts[convID] = append(s.transcripts[convID], userMsg, placeholder)

	s.sending = true
	s.loading = true
	s.lastErr = ""
	idx := len(s.transcripts[convID]) - 1
	s.mu.Unlock()

	return &sendContext{
		conversationID: convID,
		payload:        api.MessageCreate{Content: content, AgentMode: mode},
		userMsg:        userMsg,
		placeholderID:  placeholder.ID,
		placeholderIdx: idx,
		onFragment:     onFragment,
	}, nil
}

// endSend releases the loading and in-flight flags on every exit path.
func (s *Store) endSend() {
	s.mu.Lock()
	s.sending = false
	s.loading = false
	s.mu.Unlock()
}

// applyFragment appends one fragment to the placeholder, targeting it by the
// index captured at insertion time. The transcript may have grown since, so
// the entry is re-validated, never re-searched.
func (s *Store) applyFragment(sc *sendContext, frag string) {
	if frag == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.transcripts[sc.conversationID]
	if sc.placeholderIdx >= len(msgs) {
		logger.L.Warn("placeholder index out of range; dropping fragment",
			"conversation", sc.conversationID, "index", sc.placeholderIdx)
		return
	}
	m := &msgs[sc.placeholderIdx]
	if m.ID != sc.placeholderID || m.Role != api.RoleAgent {
		logger.L.Warn("placeholder no longer at captured index; dropping fragment",
			"conversation", sc.conversationID, "index", sc.placeholderIdx)
		return
	}
	m.Content += frag
}

// settleSuccess leaves the accumulated content as the final answer and
// mirrors both entries locally.
func (s *Store) settleSuccess(sc *sendContext) {
	if s.history == nil {
		return
	}
	s.mu.Lock()
	var final api.Message
	msgs := s.transcripts[sc.conversationID]
	if sc.placeholderIdx < len(msgs) && msgs[sc.placeholderIdx].ID == sc.placeholderID {
		final = msgs[sc.placeholderIdx]
	}
	s.mu.Unlock()

	s.history.Save(sc.userMsg)
	if final.ID != "" {
		s.history.Save(final)
	}
}

// settleFailure records the error in store state. When the placeholder is
// still empty the message is also written into it, so the UI never shows a
// permanently blank bubble; partial content is preserved as-is.
func (s *Store) settleFailure(sc *sendContext) {
	msg := errText(sc.lastErr, "failed to send message")
	if sc.lastErr == nil {
		sc.lastErr = &api.Error{Kind: api.KindUnknown, Message: msg}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = msg

	msgs := s.transcripts[sc.conversationID]
	if sc.placeholderIdx >= len(msgs) {
		return
	}
	m := &msgs[sc.placeholderIdx]
	if m.ID == sc.placeholderID && m.Role == api.RoleAgent && m.Content == "" {
		m.Content = msg
	}
}
