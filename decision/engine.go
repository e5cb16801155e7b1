// Package decision runs one model's bounded decision loop for one trading
// day.
//
// The engine fetches the day's quotes, then alternates between asking the
// capability for a proposal and answering its tool calls through the
// gateway, until the capability commits to an action or the step budget runs
// out. Nothing escapes the day: errors and panics end the loop in the Erred
// state with a hold action.
package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rustyeddy/aitrader/gateway"
	"github.com/rustyeddy/aitrader/journal"
	"github.com/rustyeddy/aitrader/ledger"
	"github.com/rustyeddy/aitrader/market"
	"github.com/rustyeddy/aitrader/retry"
)

// DefaultMaxSteps bounds a day when the input does not.
const DefaultMaxSteps = 30

// Capability proposes the next step of a day. Implementations may block on
// remote calls and must honour ctx.
type Capability interface {
	Propose(ctx context.Context, c *Context) (Proposal, error)
}

// Func adapts a function to Capability.
type Func func(ctx context.Context, c *Context) (Proposal, error)

func (f Func) Propose(ctx context.Context, c *Context) (Proposal, error) { return f(ctx, c) }

// PanicError is a recovered panic from a capability.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string { return fmt.Sprintf("capability panic: %v", e.Value) }

// Temporary is implemented by capability errors worth retrying.
type Temporary interface {
	Temporary() bool
}

// Retryable reports whether a gateway or capability failure is transient.
func Retryable(err error) bool {
	if gateway.IsRetryable(err) {
		return true
	}
	var t Temporary
	return errors.As(err, &t) && t.Temporary()
}

type timeoutError struct{ err error }

func (e *timeoutError) Error() string   { return "propose timed out: " + e.err.Error() }
func (e *timeoutError) Unwrap() error   { return e.err }
func (e *timeoutError) Temporary() bool { return true }

// Engine runs decision loops. One engine is shared by every model run; it
// keeps no per-run state.
type Engine struct {
	Gateway gateway.Gateway
	Retry   retry.Policy

	// ProposeTimeout bounds each capability call. Zero means no bound.
	ProposeTimeout time.Duration

	Logger *zap.Logger
	Now    func() time.Time
}

// Input describes one model's day.
type Input struct {
	Signature string
	Day       market.Day
	Symbols   []string
	Portfolio journal.Snapshot
	MaxSteps  int

	// ProposeTimeout overrides Engine.ProposeTimeout when positive.
	ProposeTimeout time.Duration
}

// Outcome is the result of one day. Action is always set; it is a hold
// whenever State is Erred or AutoHeld is true.
type Outcome struct {
	Action   ledger.Action
	State    State
	Steps    int
	AutoHeld bool
	Err      error
	Prices   map[string]float64
	Trace    []journal.TraceRecord
}

// run is the state of one loop; it never outlives Run.
type run struct {
	e       *Engine
	cap     Capability
	policy  retry.Policy
	timeout time.Duration
	log     *zap.Logger
	ctx     *Context
	state   State
	trace   []journal.TraceRecord
}

// Run executes the decision loop for in and always returns an outcome.
func (e *Engine) Run(ctx context.Context, capability Capability, in Input) Outcome {
	maxSteps := in.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	log := e.logger().With(zap.String("model", in.Signature), zap.String("day", in.Day.String()))

	policy := e.Retry
	if policy.Retryable == nil {
		policy.Retryable = Retryable
	}

	timeout := e.ProposeTimeout
	if in.ProposeTimeout > 0 {
		timeout = in.ProposeTimeout
	}

	r := &run{
		e:       e,
		cap:     capability,
		policy:  policy,
		timeout: timeout,
		log:     log,
		state:   Gathering,
		ctx: &Context{
			Signature: in.Signature,
			Day:       in.Day,
			MaxSteps:  maxSteps,
			Symbols:   append([]string(nil), in.Symbols...),
			Prices:    make(map[string]float64, len(in.Symbols)),
			Portfolio: in.Portfolio,
		},
	}

	if err := r.preamble(ctx); err != nil {
		return r.erred(err)
	}

	for step := 1; step <= maxSteps; step++ {
		r.ctx.Step = step
		r.state = Deciding

		prop, attempts, err := r.propose(ctx)
		if err != nil {
			return r.erred(err)
		}
		if prop.Reasoning != "" {
			r.record(journal.TraceRecord{Kind: journal.TraceProposal, Reasoning: prop.Reasoning, Attempts: attempts})
		}

		switch {
		case prop.Action != nil:
			action := r.price(*prop.Action)
			if action.Rationale == "" {
				action.Rationale = prop.Reasoning
			}
			r.state = Done
			r.record(journal.TraceRecord{Kind: journal.TraceAction, Action: action.Trace(), Reasoning: action.Rationale})
			log.Debug("decided", zap.Int("step", step), zap.Stringer("action", action))
			return r.outcome(action, nil)

		case prop.ToolCall != nil:
			r.state = Gathering
			if err := r.execute(ctx, *prop.ToolCall); err != nil {
				return r.erred(err)
			}

		default:
			r.state = Gathering
			log.Debug("empty proposal", zap.Int("step", step))
		}
	}

	r.record(journal.TraceRecord{
		Kind:   journal.TraceAutoHold,
		Action: ledger.HoldAction("").Trace(),
		Error:  fmt.Sprintf("step budget of %d exhausted", maxSteps),
	})
	log.Info("step budget exhausted, holding", zap.Int("max_steps", maxSteps))
	r.state = Done
	out := r.outcome(ledger.HoldAction("step budget exhausted"), nil)
	out.AutoHeld = true
	return out
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// Clock is the time stamped on trace records.
func (e *Engine) Clock() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now()
}

// preamble fetches the quote of every universe symbol. Symbols without data
// for the day are left out; any other gateway failure ends the day.
func (r *run) preamble(ctx context.Context) error {
	for _, sym := range r.ctx.Symbols {
		call := ToolCall{ID: uuid.NewString(), Tool: ToolQueryPrice, Arguments: map[string]string{"symbol": sym}}
		var p float64
		attempts, err := r.policy.Do(ctx, func(ctx context.Context) error {
			var err error
			p, err = r.e.Gateway.QueryPrice(ctx, sym, r.ctx.Day)
			return err
		})
		if err != nil {
			if market.IsDataUnavailable(err) {
				r.log.Debug("no quote in preamble", zap.String("symbol", sym))
				continue
			}
			r.record(journal.TraceRecord{Kind: journal.TraceError, ToolCallID: call.ID, Tool: call.Tool, Arguments: call.Arguments, Error: err.Error(), Attempts: attempts})
			return fmt.Errorf("preamble price %s: %w", sym, err)
		}
		r.ctx.Prices[sym] = p
	}
	return nil
}

// propose asks the capability for the next step, retrying transient
// failures and converting panics into errors.
func (r *run) propose(ctx context.Context) (Proposal, int, error) {
	var prop Proposal
	attempts, err := r.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		prop, err = r.proposeOnce(ctx)
		return err
	})
	return prop, attempts, err
}

func (r *run) proposeOnce(ctx context.Context) (prop Proposal, err error) {
	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v, Stack: string(debug.Stack())}
		}
	}()

	prop, err = r.cap.Propose(callCtx, r.ctx)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		err = &timeoutError{err: err}
	}
	return prop, err
}

// execute answers one tool call. Bad arguments and missing data are fed back
// to the capability; exhausted or permanent gateway failures end the day.
func (r *run) execute(ctx context.Context, call ToolCall) error {
	if call.ID == "" {
		call.ID = uuid.NewString()
	}
	r.record(journal.TraceRecord{Kind: journal.TraceToolCall, ToolCallID: call.ID, Tool: call.Tool, Arguments: call.Arguments})

	var (
		out      string
		attempts int
		err      error
	)
	switch call.Tool {
	case ToolQueryPrice:
		sym := strings.ToUpper(strings.TrimSpace(call.Arguments["symbol"]))
		if sym == "" {
			return r.feedback(call, "missing argument: symbol", 0)
		}
		var p float64
		attempts, err = r.policy.Do(ctx, func(ctx context.Context) error {
			var err error
			p, err = r.e.Gateway.QueryPrice(ctx, sym, r.ctx.Day)
			return err
		})
		if err == nil {
			out = strconv.FormatFloat(p, 'f', -1, 64)
		}

	case ToolQueryContext:
		q := strings.TrimSpace(call.Arguments["query"])
		if q == "" {
			return r.feedback(call, "missing argument: query", 0)
		}
		attempts, err = r.policy.Do(ctx, func(ctx context.Context) error {
			var err error
			out, err = r.e.Gateway.QueryContext(ctx, q)
			return err
		})

	case ToolQueryPosition:
		b, merr := json.Marshal(struct {
			Cash       float64                     `json:"cash"`
			Positions  map[string]journal.Position `json:"positions"`
			TotalValue float64                     `json:"total_value"`
		}{r.ctx.Portfolio.Cash, r.ctx.Portfolio.Positions, r.ctx.Portfolio.TotalValue})
		if merr != nil {
			return merr
		}
		out, attempts = string(b), 1

	default:
		return r.feedback(call, fmt.Sprintf("unknown tool %q", call.Tool), 0)
	}

	if err != nil {
		if market.IsDataUnavailable(err) || errors.Is(err, gateway.ErrNoContextSource) {
			return r.feedback(call, err.Error(), attempts)
		}
		r.record(journal.TraceRecord{Kind: journal.TraceError, ToolCallID: call.ID, Tool: call.Tool, Error: err.Error(), Attempts: attempts})
		return fmt.Errorf("%s: %w", call.Tool, err)
	}

	r.ctx.Results = append(r.ctx.Results, ToolResult{Call: call, Output: out})
	r.record(journal.TraceRecord{Kind: journal.TraceToolResult, ToolCallID: call.ID, Tool: call.Tool, Response: out, Attempts: attempts})
	return nil
}

func (r *run) feedback(call ToolCall, msg string, attempts int) error {
	r.ctx.Results = append(r.ctx.Results, ToolResult{Call: call, Error: msg})
	r.record(journal.TraceRecord{Kind: journal.TraceToolResult, ToolCallID: call.ID, Tool: call.Tool, Error: msg, Attempts: attempts})
	return nil
}

// price fills in the preamble quote for an action that names none.
func (r *run) price(a ledger.Action) ledger.Action {
	a.Symbol = strings.ToUpper(strings.TrimSpace(a.Symbol))
	if !a.IsHold() && a.Price == 0 {
		if p, ok := r.ctx.Price(a.Symbol); ok {
			a.Price = p
		}
	}
	return a
}

func (r *run) record(rec journal.TraceRecord) {
	rec.ModelSignature = r.ctx.Signature
	rec.TradingDay = r.ctx.Day
	rec.Step = r.ctx.Step
	rec.State = string(r.state)
	rec.Time = r.e.Clock()
	r.trace = append(r.trace, rec)
}

func (r *run) erred(err error) Outcome {
	r.state = Erred
	r.record(journal.TraceRecord{Kind: journal.TraceError, Action: ledger.HoldAction("").Trace(), Error: err.Error()})

	fields := []zap.Field{zap.Int("step", r.ctx.Step), zap.Error(err)}
	var pe *PanicError
	if errors.As(err, &pe) {
		fields = append(fields, zap.String("stack", pe.Stack))
	}
	r.log.Warn("decision erred, holding", fields...)
	return r.outcome(ledger.HoldAction("decision error"), err)
}

func (r *run) outcome(a ledger.Action, err error) Outcome {
	return Outcome{
		Action: a,
		State:  r.state,
		Steps:  r.ctx.Step,
		Err:    err,
		Prices: r.ctx.Prices,
		Trace:  r.trace,
	}
}
