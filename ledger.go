// per-session token balances and the submission cost curve
package main

// TokenLedger tracks how many tokens each session has left to spend on
// track submissions. It carries no lock of its own: the coordinator's
// state mutex serializes every access together with the queue, the
// feedback tally and the playback cursor.
type TokenLedger struct {
	startingTokens int
	costModifier   int
	balances       map[string]int
}

func NewTokenLedger(startingTokens, costModifier int) *TokenLedger {
	return &TokenLedger{
		startingTokens: startingTokens,
		costModifier:   costModifier,
		balances:       make(map[string]int),
	}
}

// Register gives a session its starting balance. Calling it again for a
// live session resets the balance, so callers register once per session.
func (l *TokenLedger) Register(sessionID string) {
	l.balances[sessionID] = l.startingTokens
}

// Remove drops the session's balance. Tokens do not survive a disconnect.
func (l *TokenLedger) Remove(sessionID string) {
	delete(l.balances, sessionID)
}

// Balance returns the current balance, or 0 for an unknown session.
func (l *TokenLedger) Balance(sessionID string) int {
	return l.balances[sessionID]
}

// Cost is the price of submitting a track when queueLength tracks are
// already waiting. An empty queue is free; after that the surcharge
// doubles every 5 queued tracks to discourage runaway queues.
func (l *TokenLedger) Cost(queueLength int) int {
	if queueLength == 0 {
		return 0
	}
	steps := (queueLength - 1) / 5
	modifier := l.costModifier << steps
	return queueLength + modifier
}

// TrySpend debits the cost of a submission at the given queue length.
// On failure the balance is left untouched. The returned int is the new
// balance on success and the unchanged balance on failure.
func (l *TokenLedger) TrySpend(sessionID string, queueLength int) (bool, int) {
	cost := l.Cost(queueLength)
	balance := l.balances[sessionID]
	if balance < cost {
		return false, balance
	}
	l.balances[sessionID] = balance - cost
	return true, l.balances[sessionID]
}

// Reward credits a session and returns its new balance. Rewarding a
// session that already disconnected is a no-op returning 0.
func (l *TokenLedger) Reward(sessionID string, amount int) int {
	if _, ok := l.balances[sessionID]; !ok {
		return 0
	}
	l.balances[sessionID] += amount
	return l.balances[sessionID]
}
