// Package agent runs the bounded tool-calling loop that turns a free
// conversation into reviewable program proposals.
//
// Every turn is a fresh run: history, proposals and iteration count
// start empty. Tool calls within one oracle response execute
// sequentially in the order received, and a failing call feeds its
// error back as that call's result instead of aborting the turn.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"spaceplan/internal/action"
	"spaceplan/internal/intent"
	"spaceplan/internal/oracle"
	"spaceplan/internal/program"
)

const (
	defaultMaxIterations = 5
	defaultToolTimeout   = 2 * time.Minute
)

const agentSystemPrompt = `You are a space-programming agent for architectural projects.
You manipulate a program of named areas (each with a per-unit size in m² and a
unit count) and groups of areas, strictly through the provided tools.

Rules:
- Use tools for every change. Never invent area numbers in plain text; the
  tools compute exact figures.
- One create_program at a time: while a created program is pending the user's
  review, do not create another.
- When the request is done, answer with a short plain-text summary and no
  tool calls.
- If the request cannot be satisfied with the available tools, say so
  plainly.`

// TerminalState says how a turn ended.
type TerminalState string

const (
	TerminalDone          TerminalState = "done"
	TerminalMaxIterations TerminalState = "max_iterations"
	TerminalCancelled     TerminalState = "cancelled"
)

// ToolCallRecord is one entry of the per-turn tool log.
type ToolCallRecord struct {
	Tool       string          `json:"tool"`
	Args       json.RawMessage `json:"args,omitempty"`
	Result     string          `json:"result"`
	IsError    bool            `json:"isError,omitempty"`
	DurationMs int64           `json:"durationMs"`
}

// Response is the outcome of one agent turn.
type Response struct {
	Message    string             `json:"message"`
	Proposals  []program.Proposal `json:"proposals"`
	ToolLog    []ToolCallRecord   `json:"toolLog,omitempty"`
	Iterations int                `json:"iterations"`
	Terminal   TerminalState      `json:"terminal"`
}

// runState is the per-turn accumulator. Never shared across turns.
type runState struct {
	proposals     []program.Proposal
	log           []ToolCallRecord
	pendingCreate bool
}

// Orchestrator drives the loop. Stateless between turns; safe for
// concurrent RunTurn calls.
type Orchestrator struct {
	oracle        oracle.Oracle
	exec          *intent.Executor
	actions       *action.Registry
	maxIterations int
	toolTimeout   time.Duration
	metrics       *Metrics
	logger        *zap.Logger
}

// NewOrchestrator wires the loop. maxIterations <= 0 falls back to the
// default of 5, toolTimeout <= 0 to 2m; nil metrics and logger fall
// back to no-ops.
func NewOrchestrator(o oracle.Oracle, exec *intent.Executor, actions *action.Registry, maxIterations int, toolTimeout time.Duration, metrics *Metrics, logger *zap.Logger) *Orchestrator {
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	if toolTimeout <= 0 {
		toolTimeout = defaultToolTimeout
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		oracle:        o,
		exec:          exec,
		actions:       actions,
		maxIterations: maxIterations,
		toolTimeout:   toolTimeout,
		metrics:       metrics,
		logger:        logger.Named("agent"),
	}
}

// RunDirect answers a request without the conversational loop when the
// action registry classifies it. The boolean reports whether the
// request was claimed; false means the caller should run a full turn.
// A trigger match blocked only by the selection requirement yields a
// claimed response explaining what must be selected.
func (o *Orchestrator) RunDirect(ctx context.Context, prompt string, sel program.Selection, snap *program.Context) (*Response, bool) {
	match := o.actions.Classify(prompt, sel, snap)
	if match == nil {
		if blocked := o.actions.BlockedMatch(prompt, sel); blocked != nil {
			msg := o.actions.RequirementError(blocked.Action.ID(), sel)
			return o.finish(&runState{}, 0, TerminalDone, msg), true
		}
		return nil, false
	}

	act := match.Action
	if err := act.Validate(prompt, sel, snap); err != nil {
		o.logger.Debug("direct action not viable, deferring to the loop",
			zap.String("action", act.ID()), zap.Error(err))
		return nil, false
	}

	tctx, cancel := context.WithTimeout(ctx, o.toolTimeout)
	defer cancel()
	res, err := act.Execute(tctx, prompt, sel, snap)
	if err != nil {
		o.logger.Debug("direct action failed, deferring to the loop",
			zap.String("action", act.ID()), zap.Error(err))
		return nil, false
	}
	proposals, err := act.ToProposals(res, sel, snap)
	if err != nil {
		return nil, false
	}

	o.logger.Debug("request answered directly",
		zap.String("action", act.ID()), zap.String("rule", match.Rule))
	return o.finish(&runState{proposals: proposals}, 0, TerminalDone, resultContent(res)), true
}

// RunTurn executes one conversation turn to completion: oracle round
// trips until the model answers without tool calls, the iteration
// budget runs out, or the context is cancelled. Cancellation keeps the
// proposals produced so far.
func (o *Orchestrator) RunTurn(ctx context.Context, prompt string, sel program.Selection, snap *program.Context) (*Response, error) {
	st := &runState{}
	history := []oracle.Message{{Role: oracle.RoleUser, Text: renderTurn(prompt, sel, snap)}}

	for iter := 1; iter <= o.maxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return o.finish(st, iter-1, TerminalCancelled, "The request was cancelled; keeping what was produced so far."), nil
		}

		resp, err := o.oracle.Chat(ctx, agentSystemPrompt, history, agentTools)
		if err != nil {
			if ctx.Err() != nil {
				return o.finish(st, iter-1, TerminalCancelled, "The request was cancelled; keeping what was produced so far."), nil
			}
			return nil, fmt.Errorf("agent turn: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			msg := strings.TrimSpace(resp.Text)
			if msg == "" {
				msg = doneMessage(st)
			}
			return o.finish(st, iter, TerminalDone, msg), nil
		}

		o.logger.Debug("oracle requested tools",
			zap.Int("iteration", iter),
			zap.Int("calls", len(resp.ToolCalls)))

		history = append(history, oracle.Message{Role: oracle.RoleModel, Text: resp.Text, ToolCalls: resp.ToolCalls})

		results := make([]oracle.ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			if ctx.Err() != nil {
				return o.finish(st, iter, TerminalCancelled, "The request was cancelled; keeping what was produced so far."), nil
			}
			results = append(results, o.dispatch(ctx, st, call, sel, snap))
		}
		history = append(history, oracle.Message{Role: oracle.RoleTool, ToolResults: results})
	}

	return o.finish(st, o.maxIterations, TerminalMaxIterations,
		"The request did not complete within the iteration budget; keeping the proposals produced so far."), nil
}

func (o *Orchestrator) finish(st *runState, iterations int, terminal TerminalState, message string) *Response {
	o.metrics.Turns.WithLabelValues(string(terminal)).Inc()
	o.metrics.Iterations.Observe(float64(iterations))
	o.logger.Info("turn finished",
		zap.String("terminal", string(terminal)),
		zap.Int("iterations", iterations),
		zap.Int("proposals", len(st.proposals)),
		zap.Int("tool_calls", len(st.log)))
	return &Response{
		Message:    message,
		Proposals:  st.proposals,
		ToolLog:    st.log,
		Iterations: iterations,
		Terminal:   terminal,
	}
}

// dispatch runs one tool call under its own deadline and converts any
// failure into that call's error result. The loop itself never aborts
// on a tool error.
func (o *Orchestrator) dispatch(ctx context.Context, st *runState, call oracle.ToolCall, sel program.Selection, snap *program.Context) oracle.ToolResult {
	start := time.Now()
	tctx, cancel := context.WithTimeout(ctx, o.toolTimeout)
	content, proposals, err := o.runTool(tctx, st, call, sel, snap)
	cancel()
	rec := ToolCallRecord{
		Tool:       call.Name,
		Args:       call.Arguments,
		DurationMs: time.Since(start).Milliseconds(),
	}
	res := oracle.ToolResult{CallID: call.ID, Name: call.Name}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		rec.IsError = true
		rec.Result = err.Error()
		res.IsError = true
		res.Content = err.Error()
		o.logger.Warn("tool call failed",
			zap.String("tool", call.Name),
			zap.Error(err))
	} else {
		st.proposals = append(st.proposals, proposals...)
		rec.Result = content
		res.Content = content
	}
	o.metrics.ToolCalls.WithLabelValues(call.Name, outcome).Inc()
	st.log = append(st.log, rec)
	return res
}

func (o *Orchestrator) runTool(ctx context.Context, st *runState, call oracle.ToolCall, sel program.Selection, snap *program.Context) (string, []program.Proposal, error) {
	switch call.Name {
	case toolCreateProgram:
		return o.runCreateProgram(st, call.Arguments, snap)
	case toolSplitArea:
		return o.runSplitArea(call.Arguments, sel, snap)
	case toolSplitByQuantity:
		return o.runSplitByQuantity(call.Arguments, sel, snap)
	case toolMergeAreas:
		return o.runMergeAreas(call.Arguments, snap)
	case toolAdjustPercent:
		return o.runAdjustPercent(call.Arguments, snap)
	case toolScaleAreas:
		return o.runScaleAreas(call.Arguments, snap)
	case toolUnfoldArea:
		return o.runUnfoldArea(ctx, st, call.Arguments, sel, snap)
	case toolOrganizeAreas:
		return o.runOrganizeAreas(ctx, call.Arguments, sel, snap)
	case toolParseBrief:
		return o.runParseBrief(ctx, st, call.Arguments, snap)
	case toolSplitGroupEqual:
		return o.runSplitGroup(call.Arguments, snap, true)
	case toolSplitGroupProportion:
		return o.runSplitGroup(call.Arguments, snap, false)
	case toolMergeGroupAreas:
		return o.runMergeGroupAreas(call.Arguments, snap)
	case toolRegroupFunctional:
		return o.runRegroupFunctional(snap)
	default:
		return "", nil, fmt.Errorf("unknown tool %q", call.Name)
	}
}

func (o *Orchestrator) runCreateProgram(st *runState, raw json.RawMessage, snap *program.Context) (string, []program.Proposal, error) {
	if st.pendingCreate {
		return "", nil, fmt.Errorf("a program proposal is already pending review; wait for it to be accepted before creating another")
	}
	args, err := decodeArgs[createProgramArgs](raw)
	if err != nil {
		return "", nil, err
	}
	it := &program.CreateProgramIntent{
		TargetTotal: args.TargetTotal,
		Typology:    args.Typology,
		Entries:     toEntries(args.Areas),
	}
	for _, g := range args.Groups {
		it.Groups = append(it.Groups, program.GroupSpec{Name: g.Name, Color: g.Color, Members: g.Members})
	}
	out, err := o.exec.Execute(it, snap)
	if err != nil {
		return "", nil, err
	}
	st.pendingCreate = true
	return outcomeContent(out), out.Proposals, nil
}

func (o *Orchestrator) runSplitArea(raw json.RawMessage, sel program.Selection, snap *program.Context) (string, []program.Proposal, error) {
	args, err := decodeArgs[splitAreaArgs](raw)
	if err != nil {
		return "", nil, err
	}
	node := resolveNodeRef(snap, args.SourceNodeID, args.SourceName)
	if node == nil {
		node = selectedNode(sel, snap)
	}
	if node == nil {
		return "", nil, nodeRefError(args.SourceNodeID, args.SourceName)
	}
	out, err := o.exec.Execute(&program.SplitAreaIntent{
		SourceNodeID: node.ID,
		Entries:      toEntries(args.Areas),
	}, snap)
	if err != nil {
		return "", nil, err
	}
	return outcomeContent(out), out.Proposals, nil
}

func (o *Orchestrator) runSplitByQuantity(raw json.RawMessage, sel program.Selection, snap *program.Context) (string, []program.Proposal, error) {
	args, err := decodeArgs[splitByQuantityArgs](raw)
	if err != nil {
		return "", nil, err
	}
	node := resolveNodeRef(snap, args.SourceNodeID, args.SourceName)
	if node == nil {
		node = selectedNode(sel, snap)
	}
	if node == nil {
		return "", nil, nodeRefError(args.SourceNodeID, args.SourceName)
	}
	out, err := o.exec.Execute(&program.SplitByQuantityIntent{
		SourceNodeID: node.ID,
		Quantities:   args.Quantities,
		Names:        args.Names,
	}, snap)
	if err != nil {
		return "", nil, err
	}
	return outcomeContent(out), out.Proposals, nil
}

func (o *Orchestrator) runMergeAreas(raw json.RawMessage, snap *program.Context) (string, []program.Proposal, error) {
	args, err := decodeArgs[mergeAreasArgs](raw)
	if err != nil {
		return "", nil, err
	}
	out, err := o.exec.Execute(&program.MergeAreasIntent{SourceNodeIDs: args.NodeIDs, Name: args.Name}, snap)
	if err != nil {
		return "", nil, err
	}
	return outcomeContent(out), out.Proposals, nil
}

func (o *Orchestrator) runAdjustPercent(raw json.RawMessage, snap *program.Context) (string, []program.Proposal, error) {
	args, err := decodeArgs[adjustPercentArgs](raw)
	if err != nil {
		return "", nil, err
	}
	out, err := o.exec.Execute(&program.AdjustPercentIntent{NodeIDs: args.NodeIDs, Percent: args.Percent}, snap)
	if err != nil {
		return "", nil, err
	}
	return outcomeContent(out), out.Proposals, nil
}

func (o *Orchestrator) runScaleAreas(raw json.RawMessage, snap *program.Context) (string, []program.Proposal, error) {
	args, err := decodeArgs[scaleAreasArgs](raw)
	if err != nil {
		return "", nil, err
	}
	out, err := o.exec.Execute(&program.RedistributeIntent{NodeIDs: args.NodeIDs, Factor: args.Factor}, snap)
	if err != nil {
		return "", nil, err
	}
	return outcomeContent(out), out.Proposals, nil
}

func (o *Orchestrator) runUnfoldArea(ctx context.Context, st *runState, raw json.RawMessage, sel program.Selection, snap *program.Context) (string, []program.Proposal, error) {
	args, err := decodeArgs[unfoldAreaArgs](raw)
	if err != nil {
		return "", nil, err
	}
	targets := program.Selection{}
	switch node := resolveNodeRef(snap, args.NodeID, args.Name); {
	case node != nil:
		targets.NodeIDs = []string{node.ID}
	case selectedNode(sel, snap) != nil:
		// No explicit target named; fall back to the turn's selection.
		targets = sel
	default:
		// A fresh program is not applied until the user accepts it, so
		// its areas are not yet unfoldable.
		if st.pendingCreate && (snap == nil || len(snap.Nodes) == 0) {
			return "The created program is pending review; unfold its areas after it is accepted.", nil, nil
		}
		return "", nil, nodeRefError(args.NodeID, args.Name)
	}
	act := o.actions.Get("unfold")
	if act == nil {
		return "", nil, fmt.Errorf("unfold action unavailable")
	}
	res, err := act.Execute(ctx, args.Guidance, targets, snap)
	if err != nil {
		return "", nil, err
	}
	return resultContent(res), res.Proposals, nil
}

func (o *Orchestrator) runOrganizeAreas(ctx context.Context, raw json.RawMessage, sel program.Selection, snap *program.Context) (string, []program.Proposal, error) {
	args, err := decodeArgs[organizeAreasArgs](raw)
	if err != nil {
		return "", nil, err
	}
	act := o.actions.Get("organize")
	if act == nil {
		return "", nil, fmt.Errorf("organize action unavailable")
	}
	prompt := "organize by function"
	if args.Strategy == "custom" && strings.TrimSpace(args.Criteria) != "" {
		prompt = "group into " + args.Criteria
	}
	res, err := act.Execute(ctx, prompt, sel, snap)
	if err != nil {
		return "", nil, err
	}
	return resultContent(res), res.Proposals, nil
}

func (o *Orchestrator) runParseBrief(ctx context.Context, st *runState, raw json.RawMessage, snap *program.Context) (string, []program.Proposal, error) {
	args, err := decodeArgs[parseBriefArgs](raw)
	if err != nil {
		return "", nil, err
	}
	if strings.TrimSpace(args.Text) == "" {
		return "", nil, fmt.Errorf("brief text is empty")
	}
	if st.pendingCreate {
		return "", nil, fmt.Errorf("a program proposal is already pending review; wait for it to be accepted before extracting another")
	}
	act := o.actions.Get("parse_brief")
	if act == nil {
		return "", nil, fmt.Errorf("parse_brief action unavailable")
	}
	res, err := act.Execute(ctx, args.Text, program.Selection{}, snap)
	if err != nil {
		return "", nil, err
	}
	if !res.NeedsClarification && len(res.Proposals) > 0 {
		st.pendingCreate = true
	}
	return resultContent(res), res.Proposals, nil
}

func (o *Orchestrator) runSplitGroup(raw json.RawMessage, snap *program.Context, equal bool) (string, []program.Proposal, error) {
	args, err := decodeArgs[groupTargetArgs](raw)
	if err != nil {
		return "", nil, err
	}
	ref := args.GroupID
	if ref == "" {
		ref = args.GroupName
	}
	if ref == "" {
		return "", nil, fmt.Errorf("neither groupId nor groupName given")
	}
	var out *intent.Outcome
	if equal {
		out, err = o.exec.SplitGroupEqual(snap, ref, args.TargetTotal)
	} else {
		out, err = o.exec.SplitGroupProportion(snap, ref, args.TargetTotal)
	}
	if err != nil {
		return "", nil, err
	}
	return outcomeContent(out), out.Proposals, nil
}

func (o *Orchestrator) runMergeGroupAreas(raw json.RawMessage, snap *program.Context) (string, []program.Proposal, error) {
	args, err := decodeArgs[mergeGroupArgs](raw)
	if err != nil {
		return "", nil, err
	}
	ref := args.GroupID
	if ref == "" {
		ref = args.GroupName
	}
	if ref == "" {
		return "", nil, fmt.Errorf("neither groupId nor groupName given")
	}
	out, err := o.exec.MergeGroupAreas(snap, ref, args.Name)
	if err != nil {
		return "", nil, err
	}
	return outcomeContent(out), out.Proposals, nil
}

func (o *Orchestrator) runRegroupFunctional(snap *program.Context) (string, []program.Proposal, error) {
	if snap == nil || len(snap.Nodes) == 0 {
		return "", nil, fmt.Errorf("no areas to regroup")
	}
	specs := action.FunctionalGroups(snap.Nodes)
	proposals := action.GroupingProposals(specs)
	return fmt.Sprintf("Regrouped %d area(s) into %d functional group(s).", len(snap.Nodes), len(specs)), proposals, nil
}

func outcomeContent(out *intent.Outcome) string {
	if len(out.Warnings) == 0 {
		return out.Message
	}
	return out.Message + " Warnings: " + strings.Join(out.Warnings, "; ")
}

func resultContent(res *action.Result) string {
	msg := res.Message
	if res.NeedsClarification && len(res.ClarificationOptions) > 0 {
		var labels []string
		for _, opt := range res.ClarificationOptions {
			labels = append(labels, opt.Label)
		}
		msg += " Options: " + strings.Join(labels, "; ")
	}
	if len(res.Warnings) > 0 {
		msg += " Warnings: " + strings.Join(res.Warnings, "; ")
	}
	return msg
}

func resolveNodeRef(snap *program.Context, id, name string) *program.AreaNode {
	if snap == nil {
		return nil
	}
	if id != "" {
		if n := snap.NodeByID(id); n != nil {
			return n
		}
	}
	if name != "" {
		return snap.NodeByName(name)
	}
	return nil
}

// selectedNode resolves the fallback target from the turn's selection:
// directly selected nodes first, then members of the selected groups.
func selectedNode(sel program.Selection, snap *program.Context) *program.AreaNode {
	if snap == nil {
		return nil
	}
	for _, id := range sel.NodeIDs {
		if n := snap.NodeByID(id); n != nil {
			return n
		}
	}
	if nodes := snap.NodesInGroups(sel.GroupIDs); len(nodes) > 0 {
		return &nodes[0]
	}
	return nil
}

func nodeRefError(id, name string) error {
	switch {
	case id != "" && name != "":
		return fmt.Errorf("no area with id %q or name %q", id, name)
	case id != "":
		return fmt.Errorf("no area with id %q", id)
	case name != "":
		return fmt.Errorf("no area named %q", name)
	default:
		return fmt.Errorf("no area identified")
	}
}

func doneMessage(st *runState) string {
	if len(st.proposals) == 0 {
		return "Nothing to change."
	}
	return fmt.Sprintf("Prepared %d proposal(s) for review.", len(st.proposals))
}

// renderTurn serializes the snapshot, selection and request into the
// opening user message.
func renderTurn(prompt string, sel program.Selection, snap *program.Context) string {
	var b strings.Builder
	if snap == nil || len(snap.Nodes) == 0 {
		b.WriteString("Current program: empty.\n")
	} else {
		fmt.Fprintf(&b, "Current program (%.0f m² total):\n", snap.TotalArea())
		for _, n := range snap.Nodes {
			fmt.Fprintf(&b, "- [%s] %s: %.0f m²", n.ID, n.Name, n.TotalArea())
			if n.Count > 1 {
				fmt.Fprintf(&b, " (%d × %.0f m²)", n.Count, n.AreaPerUnit)
			}
			b.WriteString("\n")
		}
		for _, g := range snap.Groups {
			fmt.Fprintf(&b, "Group [%s] %s: %d member(s)\n", g.ID, g.Name, len(g.Members))
		}
	}
	if !sel.IsEmpty() {
		fmt.Fprintf(&b, "Selected: %s\n", strings.Join(append(append([]string{}, sel.NodeIDs...), sel.GroupIDs...), ", "))
	}
	b.WriteString("\nRequest: ")
	b.WriteString(prompt)
	return b.String()
}
