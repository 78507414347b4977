package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/addanuj/mcp-client/internal/fingerprint"
	"github.com/addanuj/mcp-client/internal/formatter"
	"github.com/addanuj/mcp-client/internal/gateway"
	"github.com/addanuj/mcp-client/internal/memory"
	"github.com/addanuj/mcp-client/internal/model"
	"github.com/addanuj/mcp-client/pkg/ctxkeys"
	"github.com/addanuj/mcp-client/pkg/llm"
	"github.com/addanuj/mcp-client/pkg/logging"
)

const roundLimitNote = "[System note: You have one remaining tool round. Answer now using the results already gathered. Do not make additional tool calls unless absolutely critical.]"

const persistTimeout = 5 * time.Second

// ResultCache serves repeated read-only tool calls within a session.
type ResultCache interface {
	Resolve(ctx context.Context, sessionID string, fp fingerprint.Fingerprint, load func(ctx context.Context) (any, error)) (any, bool, error)
	EndSession(sessionID string)
	Stats(sessionID string) fingerprint.Stats
}

// HistoryRecorder keeps a durable copy of every appended exchange.
type HistoryRecorder interface {
	Record(ctx context.Context, sessionID string, exchange memory.Exchange) error
}

type Options struct {
	Decider       model.Decider
	Tools         gateway.Invoker
	Cache         ResultCache
	Memory        memory.Store
	History       HistoryRecorder
	Canonicalizer *fingerprint.Canonicalizer
	Config        Config
	// SessionIdleTTL ends sessions without turns for this long.
	SessionIdleTTL time.Duration
	Logger         logging.Logger
}

// Orchestrator runs turns: it is the only component that talks to the
// model, the tool gateway, the result cache, session memory and the formatter.
type Orchestrator struct {
	decider  model.Decider
	tools    gateway.Invoker
	cache    ResultCache
	memory   memory.Store
	history  HistoryRecorder
	canon    *fingerprint.Canonicalizer
	logger   logging.Logger
	cfg      atomic.Pointer[Config]
	sessions *sessionRegistry
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Decider == nil {
		return nil, errors.New("chat: decider is required")
	}
	if opts.Tools == nil {
		return nil, errors.New("chat: tool invoker is required")
	}
	if opts.Memory == nil {
		return nil, errors.New("chat: memory store is required")
	}
	if opts.Cache == nil {
		opts.Cache = fingerprint.NewCache(fingerprint.Options{})
	}
	if opts.Canonicalizer == nil {
		opts.Canonicalizer = fingerprint.NewCanonicalizer()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger()
	}
	o := &Orchestrator{
		decider: opts.Decider,
		tools:   opts.Tools,
		cache:   opts.Cache,
		memory:  opts.Memory,
		history: opts.History,
		canon:   opts.Canonicalizer,
		logger:  opts.Logger,
	}
	o.sessions = newSessionRegistry(opts.SessionIdleTTL, o.endSession)
	o.SetConfig(opts.Config)
	return o, nil
}

// Config returns the configuration new turns start with.
func (o *Orchestrator) Config() Config {
	return *o.cfg.Load()
}

// SetConfig replaces the configuration for turns that start afterwards.
func (o *Orchestrator) SetConfig(cfg Config) {
	cfg = cfg.withDefaults()
	o.cfg.Store(&cfg)
}

// Tools returns the current tool catalog.
func (o *Orchestrator) Tools() []gateway.Tool {
	return o.tools.Catalog().Tools()
}

// Run executes one turn and streams its events to sink. Exactly one
// terminal event is sent unless the request is rejected or the caller gives
// up while the turn is still queued behind an earlier one.
func (o *Orchestrator) Run(ctx context.Context, req Request, sink Sink) error {
	req, err := req.Normalize()
	if err != nil {
		return err
	}
	sess, release, err := o.sessions.acquire(ctx, req.SessionID)
	if err != nil {
		return err
	}
	defer release()

	cfg := o.Config()
	emit := NewEmitter(sink, o.logger)
	state := newTurnState(req.Message)
	log := o.logger.WithFields(logging.Fields{
		"session_id": req.SessionID,
		"request_id": ctxkeys.GetRequestID(ctx),
	})
	start := time.Now()

	turnCtx, cancel := context.WithTimeout(ctx, cfg.TurnTimeout)
	defer cancel()

	err = o.runTurn(turnCtx, cfg, req.SessionID, sess, state, emit)
	if err != nil && ctx.Err() == nil && errors.Is(turnCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %v", ErrTurnTimeout, cfg.TurnTimeout, err)
	}

	outcome := "success"
	switch {
	case err == nil && state.Phase == PhaseAwaitingClarification:
		outcome = "clarification"
	case err == nil && state.Phase == PhaseAwaitingConfirmation:
		outcome = "confirmation"
	case err == nil && state.Phase == PhaseDeclined:
		outcome = "declined"
	case err == nil:
		state.enter(PhaseDone)
		o.persist(ctx, req.SessionID, state.exchange(false))
	case ctx.Err() != nil:
		outcome = "cancelled"
		state.Answer = UserMessage(context.Canceled)
		state.enter(PhaseFailed)
		_ = emit.Error(state.Answer)
		log.WithError(err).Info("Turn cancelled by caller")
		err = ctx.Err()
	default:
		outcome = "error"
		state.Answer = UserMessage(err)
		state.enter(PhaseFailed)
		_ = emit.Error(state.Answer)
		log.WithError(err).WithField("rounds", state.Rounds).Warn("Turn failed")
		o.persist(ctx, req.SessionID, state.exchange(true))
		err = nil
	}

	turnsTotal.WithLabelValues(outcome).Inc()
	turnDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	toolRoundsPerTurn.Observe(float64(state.Rounds))
	log.WithFields(logging.Fields{
		"outcome":     outcome,
		"rounds":      state.Rounds,
		"invocations": len(state.Invocations),
		"phases":      state.History,
		"duration":    time.Since(start).String(),
	}).Debug("Turn finished")
	return err
}

func (o *Orchestrator) runTurn(ctx context.Context, cfg Config, sessionID string, sess *session, state *TurnState, emit *Emitter) error {
	log := o.logger.WithField("session_id", sessionID)

	history, err := o.memory.Context(ctx, sessionID)
	if err != nil {
		log.WithError(err).Warn("Failed to load session memory")
		history = nil
	}

	var confirmed *Confirmation
	if c := o.sessions.takeConfirmation(sess); c != nil {
		approved, declined := cfg.Confirm.Reply(state.Message)
		switch {
		case approved:
			confirmed = c
			state.Confirmed = true
			state.Message = c.Message
			confirmationsTotal.WithLabelValues("approved").Inc()
		case declined:
			confirmationsTotal.WithLabelValues("declined").Inc()
			state.enter(PhaseDeclined)
			state.Answer = declinedAnswer
			if err := emit.Final(state.Answer); err != nil {
				log.WithError(err).Debug("Cancellation not delivered")
			}
			return nil
		default:
			confirmationsTotal.WithLabelValues("abandoned").Inc()
		}
	}

	pending := o.sessions.takePending(sess)
	if pending == nil && confirmed == nil {
		if c, ok := cfg.Clarify.Analyze(state.Message, len(history) > 0); ok {
			state.enter(PhaseAwaitingClarification)
			o.sessions.setPending(sess, c)
			clarificationsTotal.Inc()
			state.Answer = c.Render()
			if err := emit.Final(state.Answer); err != nil {
				log.WithError(err).Debug("Clarifying question not delivered")
			}
			return nil
		}
	}
	if prev, ok := memory.IsDuplicateQuery(history, state.Message, memory.DefaultDuplicateThreshold); ok {
		duplicateQueriesTotal.Inc()
		log.WithField("previous_at", prev.Timestamp).Info("Message repeats a recent question")
	}

	emit.Status("Analyzing your request...")

	systemPrompt := cfg.SystemPrompt
	if summary := memory.Summary(history); summary != "" {
		systemPrompt += "\n\n" + summary
	}
	var conversation []llm.Message
	switch {
	case pending != nil:
		conversation = append(conversation,
			llm.Message{Role: "user", Content: pending.Message},
			llm.Message{Role: "assistant", Content: pending.Render()},
			llm.Message{Role: "user", Content: state.Message},
		)
	case confirmed != nil:
		conversation = append(conversation,
			llm.Message{Role: "user", Content: confirmed.Message},
			llm.Message{Role: "assistant", Content: confirmed.Render()},
			llm.Message{Role: "user", Content: "Yes, proceed."},
		)
	default:
		conversation = append(conversation, llm.Message{Role: "user", Content: state.Message})
	}

	tools := o.tools.Catalog().LLMTools()
	f := formatter.New(cfg.Formatter)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		state.enter(PhaseDeciding)
		decision, err := o.decider.Decide(ctx, systemPrompt, conversation, tools)
		if err != nil {
			return err
		}
		if decision.Kind == model.KindFinalText {
			return o.deliver(cfg, f, decision.Text, state, emit)
		}
		if state.Rounds >= cfg.MaxToolRounds {
			return fmt.Errorf("%w (%d rounds)", ErrRoundLimit, cfg.MaxToolRounds)
		}
		if !state.Confirmed {
			if names := cfg.Confirm.gated(o.tools.Catalog(), decision.Calls); len(names) > 0 {
				c := &Confirmation{Message: state.Message, Tools: names}
				state.enter(PhaseAwaitingConfirmation)
				o.sessions.setConfirmation(sess, c)
				confirmationsTotal.WithLabelValues("requested").Inc()
				state.Answer = c.Render()
				if err := emit.Final(state.Answer); err != nil {
					log.WithError(err).Debug("Confirmation question not delivered")
				}
				return nil
			}
		}

		state.startRound()
		state.enter(PhaseInvokingTool)
		conversation = append(conversation, llm.Message{
			Role:      "assistant",
			Content:   decision.Text,
			ToolCalls: decision.ToolCalls(),
		})
		for _, call := range decision.Calls {
			inv := o.invoke(ctx, sessionID, call, state, emit)
			conversation = append(conversation, llm.Message{
				Role:       "tool",
				Content:    toolMessage(f, inv),
				Name:       call.Name,
				ToolCallID: call.ID,
			})
		}
		if state.Rounds == cfg.MaxToolRounds-1 {
			conversation = append(conversation, llm.Message{Role: "user", Content: roundLimitNote})
		}
	}
}

// invoke runs one tool call: read-only calls resolve through the session
// cache, others go straight to the gateway. The invocation is recorded
// whatever the outcome.
func (o *Orchestrator) invoke(ctx context.Context, sessionID string, call model.Call, state *TurnState, emit *Emitter) *memory.ToolInvocation {
	tool, known := o.tools.Catalog().Lookup(call.Name)
	fp, canonical, fpErr := o.canon.Compute(call.Name, call.Arguments)
	recorded := call.Arguments
	if fpErr == nil {
		recorded = canonical
	}
	inv := memory.NewInvocation(call.Name, tool.Server, recorded)
	state.Invocations = append(state.Invocations, inv)
	log := o.logger.WithFields(logging.Fields{
		"session_id": sessionID,
		"tool":       call.Name,
		"round":      state.Rounds,
	})

	emit.ToolCall(call.Name)
	cacheable := fpErr == nil && known && !gateway.IsMutatingCall(tool, call.Arguments)
	start := time.Now()

	var res gateway.Result
	load := func(ctx context.Context) (any, error) {
		emit.Status("Calling tool: " + call.Name)
		var err error
		res, err = o.tools.Invoke(ctx, call.Name, call.Arguments)
		return res.Value, err
	}
	var (
		val any
		hit bool
		err error
	)
	if cacheable {
		val, hit, err = o.cache.Resolve(ctx, sessionID, fp, load)
	} else {
		val, err = load(ctx)
	}
	if hit {
		emit.Status("Using cached result for " + call.Name)
		_ = inv.Finish(memory.Outcome{Result: val, Cached: true, Duration: time.Since(start)})
		emit.ToolResult(call.Name, string(inv.Status), true)
		log.WithField("fingerprint", fp.Short()).Debug("Served tool call from cache")
		return inv
	}

	if res.Server != "" {
		inv.Server = res.Server
	}
	outcome := memory.Outcome{Result: val, Attempts: res.Attempts, Duration: time.Since(start)}
	if err != nil {
		outcome.Result = nil
		outcome.Err = err
		outcome.Kind = gateway.Kind(err)
	}
	_ = inv.Finish(outcome)

	if err != nil {
		log.WithError(err).WithField("kind", outcome.Kind).Warn("Tool call failed")
		emit.Status(call.Name + " failed")
	} else {
		emit.Status(call.Name + " completed")
	}
	emit.ToolResult(call.Name, string(inv.Status), false)
	return inv
}

// toolMessage is what the model sees as the result of a call.
func toolMessage(f *formatter.Formatter, inv *memory.ToolInvocation) string {
	if inv.Succeeded() {
		return f.ForModel(inv.Result)
	}
	payload := map[string]string{
		"status": "error",
		"error":  ToolFailureMessage(inv.ErrorKind),
	}
	if inv.ErrorKind == gateway.KindValidation || inv.ErrorKind == gateway.KindTool {
		payload["detail"] = inv.Error
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

// deliver formats the final answer and streams it.
func (o *Orchestrator) deliver(cfg Config, f *formatter.Formatter, text string, state *TurnState, emit *Emitter) error {
	if len(state.Invocations) > 0 {
		emit.Status("Formatting results...")
	}
	state.enter(PhaseFormatting)
	state.Answer = compose(f, text, state)

	if cfg.StreamDeltas {
		for _, chunk := range chunkRunes(state.Answer, cfg.DeltaChunkRunes) {
			emit.Delta(chunk)
		}
	}
	if err := emit.Final(state.Answer); err != nil {
		o.logger.WithError(err).Debug("Final answer not delivered")
	}
	return nil
}

// compose substitutes result markers, or appends the last round's results
// when the text references none.
func compose(f *formatter.Formatter, text string, state *TurnState) string {
	render := func(inv *memory.ToolInvocation) string {
		if inv.Succeeded() {
			return f.Format(inv.Result)
		}
		return fmt.Sprintf("_%s failed: %s_", inv.Tool, ToolFailureMessage(inv.ErrorKind))
	}

	if formatter.HasMarkers(text) {
		out, _ := formatter.ReplaceMarkers(text, func(n int) (string, bool) {
			if n < 1 || n > len(state.Invocations) {
				return "", false
			}
			return render(state.Invocations[n-1]), true
		})
		return collapseBlankLines(out)
	}

	parts := []string{strings.TrimSpace(text)}
	for _, inv := range state.lastRoundInvocations() {
		parts = append(parts, render(inv))
	}
	return collapseBlankLines(strings.Join(parts, "\n\n"))
}

func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(s)
}

func chunkRunes(s string, size int) []string {
	runes := []rune(s)
	var out []string
	for len(runes) > 0 {
		n := size
		if n > len(runes) {
			n = len(runes)
		}
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}

// persist appends the exchange to memory and history. Failures are logged;
// the answer has already been delivered.
func (o *Orchestrator) persist(ctx context.Context, sessionID string, exchange memory.Exchange) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	exchange.Timestamp = time.Now().UTC()

	log := o.logger.WithField("session_id", sessionID)
	if err := o.memory.Append(ctx, sessionID, exchange); err != nil {
		log.WithError(err).Error("Failed to append exchange to session memory")
	}
	if o.history != nil {
		if err := o.history.Record(ctx, sessionID, exchange); err != nil {
			log.WithError(err).Warn("Failed to record exchange history")
		}
	}
}

// SessionInfo is a snapshot of a session.
type SessionInfo struct {
	ID        string            `json:"id"`
	Exchanges []memory.Exchange `json:"exchanges"`
	Memory    memory.Stats      `json:"memory"`
	Cache     fingerprint.Stats `json:"cache"`
}

// Session returns the stored exchanges and cache statistics of a session.
func (o *Orchestrator) Session(ctx context.Context, sessionID string) (SessionInfo, error) {
	exchanges, err := o.memory.Context(ctx, sessionID)
	if err != nil {
		return SessionInfo{}, err
	}
	stats, err := o.memory.Stats(ctx, sessionID)
	if err != nil {
		return SessionInfo{}, err
	}
	if exchanges == nil {
		exchanges = []memory.Exchange{}
	}
	return SessionInfo{
		ID:        sessionID,
		Exchanges: exchanges,
		Memory:    stats,
		Cache:     o.cache.Stats(sessionID),
	}, nil
}

// EndSession drops the session's memory, cached results and any pending
// clarification or confirmation. A running turn finishes first and turns
// sent after the call start on the cleared session.
func (o *Orchestrator) EndSession(sessionID string) {
	o.sessions.end(sessionID)
}

func (o *Orchestrator) endSession(sessionID string) {
	o.cache.EndSession(sessionID)
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := o.memory.Clear(ctx, sessionID); err != nil {
		o.logger.WithError(err).WithField("session_id", sessionID).Warn("Failed to clear session memory")
	}
}

// RunJanitor ends idle sessions every interval until ctx is done.
func (o *Orchestrator) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if expired := o.sessions.sweep(); len(expired) > 0 {
				o.logger.WithField("sessions", len(expired)).Info("Ended idle sessions")
			}
		}
	}
}
