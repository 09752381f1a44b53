package runtime

import (
	"context"
	"log/slog"
	"sync"

	"media-vault/auth"
	"media-vault/contract"
	"media-vault/domain/event"
)

type Set map[string]struct{}

// Registry is the progress notifier: it maps owners to their live sessions
// and delivers lifecycle events strictly to the owning user. There is no
// broadcast path on purpose; an event without an owner goes nowhere.
//
// The registry is injected and scoped to the process lifetime. It is never
// module-level state.
type Registry struct {
	mu            sync.RWMutex
	log           *slog.Logger
	tokens        *auth.TokenManager
	sessions      map[string]contract.EventSink // sessionID -> sink
	ownerSessions map[string]Set                // ownerID -> sessionIDs
}

func NewRegistry(log *slog.Logger, tokens *auth.TokenManager) *Registry {
	return &Registry{
		log:           log,
		tokens:        tokens,
		sessions:      make(map[string]contract.EventSink),
		ownerSessions: make(map[string]Set),
	}
}

// Subscribe authenticates the session token and registers the sink under the
// owner it proves. The resolved owner is returned so transports can label the
// session.
func (r *Registry) Subscribe(token, sessionID string, sink contract.EventSink) (string, error) {
	claims, err := r.tokens.Verify(token)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[sessionID] = sink
	if _, ok := r.ownerSessions[claims.OwnerID]; !ok {
		r.ownerSessions[claims.OwnerID] = make(Set)
	}
	r.ownerSessions[claims.OwnerID][sessionID] = struct{}{}

	return claims.OwnerID, nil
}

// Unsubscribe drops a session and cleans up empty owner entries so the maps
// do not leak over time.
func (r *Registry) Unsubscribe(sessionID, ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)

	if members, ok := r.ownerSessions[ownerID]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.ownerSessions, ownerID)
		}
	}
}

// Publish delivers an event to every live session of ownerID and to nobody
// else. Call sites must pass the owner explicitly; omitting it is a privacy
// defect, not a degraded mode.
func (r *Registry) Publish(ctx context.Context, ownerID string, e event.LifecycleEvent) {
	r.mu.RLock()
	var sinks []contract.EventSink
	for sessionID := range r.ownerSessions[ownerID] {
		if sink, ok := r.sessions[sessionID]; ok {
			sinks = append(sinks, sink)
		}
	}
	r.mu.RUnlock()

	for _, sink := range sinks {
		if err := sink.Consume(ctx, e); err != nil {
			r.log.Debug("session delivery failed", "owner", ownerID, "error", err)
		}
	}
}
