package flow

import (
	"sync"
	"time"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/model"
)

// Turn is the mutable state of one agent call. It is owned by a single
// engine invocation and never shared across calls.
type Turn struct {
	RunID string
	Agent string
	// History holds the conversation in order. The results of one completion
	// are appended as a single RoleTool content whose parts are the result
	// messages, one per requested invocation and in request order.
	History []core.Content
	// Count is the number of completion requests issued so far.
	Count int
	// LastText is the most recent non-empty assistant text of this call.
	LastText string
	Done     bool
	Trace    *Trace

	emit EmitFunc
}

// LatestUserText returns the text of the last user message in history, or
// "" when there is none.
func LatestUserText(history []core.Content) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == core.RoleUser {
			return history[i].Text()
		}
	}
	return ""
}

// Invocation records one capability invocation of a turn.
type Invocation struct {
	CallID    string        `json:"call_id"`
	Name      string        `json:"name"`
	Arguments string        `json:"arguments"`
	Result    string        `json:"result"`
	Code      string        `json:"code,omitempty"`
	Failed    bool          `json:"failed,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Diagnostic records a non-fatal problem observed during a turn.
type Diagnostic struct {
	Turn    int    `json:"turn"`
	Source  string `json:"source"`
	Message string `json:"message"`
}

// TraceTurn is the trace entry for one completion request.
type TraceTurn struct {
	Index       int             `json:"index"`
	Response    *model.Response `json:"response"`
	Invocations []Invocation    `json:"invocations,omitempty"`
}

// Trace is the side channel of an agent call: every raw model response,
// every capability outcome and every diagnostic, in order.
type Trace struct {
	mu          sync.Mutex
	turns       []TraceTurn
	diagnostics []Diagnostic
}

// NewTrace creates an empty trace.
func NewTrace() *Trace { return &Trace{} }

func (t *Trace) addTurn(index int, resp *model.Response) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns, TraceTurn{Index: index, Response: resp})
}

func (t *Trace) setInvocations(index int, inv []Invocation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.turns {
		if t.turns[i].Index == index {
			t.turns[i].Invocations = inv
			return
		}
	}
}

// AddDiagnostic appends a diagnostic.
func (t *Trace) AddDiagnostic(d Diagnostic) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.diagnostics = append(t.diagnostics, d)
}

// Turns returns a copy of the per-turn entries.
func (t *Trace) Turns() []TraceTurn {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceTurn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Diagnostics returns a copy of the recorded diagnostics.
func (t *Trace) Diagnostics() []Diagnostic {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Diagnostic, len(t.diagnostics))
	copy(out, t.diagnostics)
	return out
}

// Invocations returns every recorded invocation across turns, in order.
func (t *Trace) Invocations() []Invocation {
	var out []Invocation
	for _, turn := range t.Turns() {
		out = append(out, turn.Invocations...)
	}
	return out
}

// LastResponse returns the most recent raw response, or nil.
func (t *Trace) LastResponse() *model.Response {
	turns := t.Turns()
	if len(turns) == 0 {
		return nil
	}
	return turns[len(turns)-1].Response
}
