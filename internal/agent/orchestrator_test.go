package agent

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spaceplan/internal/action"
	"spaceplan/internal/intent"
	"spaceplan/internal/oracle"
	"spaceplan/internal/program"
)

// fakeOracle delegates to configurable functions. The zero value answers
// every chat with a plain done message.
type fakeOracle struct {
	chat  func(ctx context.Context, history []oracle.Message) (*oracle.Response, error)
	json  func(system, user string) (string, error)
	chats int
}

func (f *fakeOracle) Chat(ctx context.Context, system string, history []oracle.Message, tools []oracle.ToolDef) (*oracle.Response, error) {
	f.chats++
	if f.chat == nil {
		return &oracle.Response{Text: "done"}, nil
	}
	return f.chat(ctx, history)
}

func (f *fakeOracle) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	if f.json == nil {
		return "", errors.New("completion not scripted")
	}
	return f.json(system, user)
}

// scripted returns the queued responses in order, then plain done.
func scripted(responses ...*oracle.Response) *fakeOracle {
	i := 0
	f := &fakeOracle{}
	f.chat = func(ctx context.Context, history []oracle.Message) (*oracle.Response, error) {
		if i < len(responses) {
			r := responses[i]
			i++
			return r, nil
		}
		return &oracle.Response{Text: "done"}, nil
	}
	return f
}

func call(name, args string) oracle.ToolCall {
	return oracle.ToolCall{ID: "c-" + name, Name: name, Arguments: json.RawMessage(args)}
}

func newTestOrchestrator(t *testing.T, o oracle.Oracle, maxIterations int) *Orchestrator {
	t.Helper()
	exec := intent.NewExecutor(nil)
	reg := action.NewRegistry(nil)
	reg.MustRegister(action.NewUnfoldAction(o, exec, nil))
	reg.MustRegister(action.NewOrganizeAction(o, exec, nil))
	reg.MustRegister(action.NewParseBriefAction(o, exec, nil))
	metrics := NewMetrics(prometheus.NewRegistry())
	return NewOrchestrator(o, exec, reg, maxIterations, 0, metrics, nil)
}

// stubAction routes a trigger to a test-controlled handler.
type stubAction struct {
	id      string
	trigger string
	req     action.SelectionRequirement
	execute func(ctx context.Context, prompt string, sel program.Selection, snap *program.Context) (*action.Result, error)
}

func (s *stubAction) ID() string { return s.id }

func (s *stubAction) Triggers() []action.Trigger {
	if s.trigger == "" {
		return nil
	}
	return []action.Trigger{{Pattern: regexp.MustCompile(s.trigger), Priority: 80}}
}

func (s *stubAction) Requirement() action.SelectionRequirement { return s.req }

func (s *stubAction) Validate(string, program.Selection, *program.Context) error { return nil }

func (s *stubAction) Execute(ctx context.Context, prompt string, sel program.Selection, snap *program.Context) (*action.Result, error) {
	if s.execute == nil {
		return &action.Result{}, nil
	}
	return s.execute(ctx, prompt, sel, snap)
}

func (s *stubAction) ToProposals(res *action.Result, _ program.Selection, _ *program.Context) ([]program.Proposal, error) {
	return res.Proposals, nil
}

func agentSnapshot() *program.Context {
	return &program.Context{
		Nodes: []program.AreaNode{
			{ID: "n1", Name: "Lobby", AreaPerUnit: 400, Count: 1},
			{ID: "n2", Name: "Guest rooms", AreaPerUnit: 28, Count: 120},
			{ID: "n3", Name: "Restaurant", AreaPerUnit: 350, Count: 1},
		},
		Groups: []program.Group{
			{ID: "g1", Name: "Front of house", Members: []string{"n1", "n3"}},
		},
	}
}

func TestRunTurn_DoneWithoutTools(t *testing.T) {
	fake := scripted(&oracle.Response{Text: "The program already matches the request."})
	orch := newTestOrchestrator(t, fake, 0)

	resp, err := orch.RunTurn(context.Background(), "is everything fine?", program.Selection{}, agentSnapshot())
	require.NoError(t, err)
	assert.Equal(t, TerminalDone, resp.Terminal)
	assert.Equal(t, 1, resp.Iterations)
	assert.Equal(t, "The program already matches the request.", resp.Message)
	assert.Empty(t, resp.Proposals)
	assert.Empty(t, resp.ToolLog)
}

func TestRunTurn_ToolCallThenDone(t *testing.T) {
	fake := scripted(
		&oracle.Response{ToolCalls: []oracle.ToolCall{
			call(toolScaleAreas, `{"nodeIds": ["n1"], "factor": 2}`),
		}},
		&oracle.Response{Text: "Doubled the lobby."},
	)
	orch := newTestOrchestrator(t, fake, 0)

	resp, err := orch.RunTurn(context.Background(), "double the lobby", program.Selection{}, agentSnapshot())
	require.NoError(t, err)
	assert.Equal(t, TerminalDone, resp.Terminal)
	assert.Equal(t, 2, resp.Iterations)
	require.Len(t, resp.Proposals, 1)
	require.Len(t, resp.ToolLog, 1)
	assert.Equal(t, toolScaleAreas, resp.ToolLog[0].Tool)
	assert.False(t, resp.ToolLog[0].IsError)

	payload, ok := resp.Proposals[0].Payload.(program.UpdateAreasPayload)
	require.True(t, ok)
	assert.InDelta(t, 800.0, payload.Updates[0].AreaPerUnit, 1e-9)
}

func TestRunTurn_SequentialCallsInOrder(t *testing.T) {
	fake := scripted(
		&oracle.Response{ToolCalls: []oracle.ToolCall{
			call(toolAdjustPercent, `{"nodeIds": ["n1"], "percent": 10}`),
			call(toolMergeAreas, `{"nodeIds": ["n1", "n3"], "name": "Front"}`),
		}},
	)
	orch := newTestOrchestrator(t, fake, 0)

	resp, err := orch.RunTurn(context.Background(), "tweak the front of house", program.Selection{}, agentSnapshot())
	require.NoError(t, err)
	require.Len(t, resp.ToolLog, 2)
	assert.Equal(t, toolAdjustPercent, resp.ToolLog[0].Tool)
	assert.Equal(t, toolMergeAreas, resp.ToolLog[1].Tool)
	assert.Len(t, resp.Proposals, 2)
}

func TestRunTurn_ToolErrorDoesNotAbort(t *testing.T) {
	fake := scripted(
		&oracle.Response{ToolCalls: []oracle.ToolCall{
			call(toolScaleAreas, `{"factor": "two"}`),
			call(toolScaleAreas, `{"nodeIds": ["n1"], "factor": 2}`),
		}},
	)
	orch := newTestOrchestrator(t, fake, 0)

	resp, err := orch.RunTurn(context.Background(), "double things", program.Selection{}, agentSnapshot())
	require.NoError(t, err)
	require.Len(t, resp.ToolLog, 2)
	assert.True(t, resp.ToolLog[0].IsError)
	assert.Contains(t, resp.ToolLog[0].Result, "invalid arguments")
	assert.False(t, resp.ToolLog[1].IsError)
	assert.Len(t, resp.Proposals, 1, "only the successful call contributes proposals")
}

func TestRunTurn_UnknownTool(t *testing.T) {
	fake := scripted(
		&oracle.Response{ToolCalls: []oracle.ToolCall{call("frobnicate", `{}`)}},
	)
	orch := newTestOrchestrator(t, fake, 0)

	resp, err := orch.RunTurn(context.Background(), "do the thing", program.Selection{}, agentSnapshot())
	require.NoError(t, err)
	require.Len(t, resp.ToolLog, 1)
	assert.True(t, resp.ToolLog[0].IsError)
	assert.Contains(t, resp.ToolLog[0].Result, "unknown tool")
}

func TestRunTurn_CreateDedup(t *testing.T) {
	createArgs := `{"targetTotal": 1000, "areas": [{"name": "Hall", "ratio": 0.7}, {"name": "Foyer", "ratio": 0.3}]}`
	fake := scripted(
		&oracle.Response{ToolCalls: []oracle.ToolCall{
			call(toolCreateProgram, createArgs),
			call(toolCreateProgram, createArgs),
		}},
	)
	orch := newTestOrchestrator(t, fake, 0)

	resp, err := orch.RunTurn(context.Background(), "make two programs", program.Selection{}, &program.Context{})
	require.NoError(t, err)
	require.Len(t, resp.ToolLog, 2)
	assert.False(t, resp.ToolLog[0].IsError)
	assert.True(t, resp.ToolLog[1].IsError)
	assert.Contains(t, resp.ToolLog[1].Result, "pending review")
	assert.Len(t, resp.Proposals, 1)
}

func TestRunTurn_UnfoldWhileCreatePending(t *testing.T) {
	createArgs := `{"targetTotal": 5000, "areas": [{"name": "Rooms", "ratio": 0.7}, {"name": "Lobby", "ratio": 0.3}]}`
	fake := scripted(
		&oracle.Response{ToolCalls: []oracle.ToolCall{call(toolCreateProgram, createArgs)}},
		&oracle.Response{ToolCalls: []oracle.ToolCall{call(toolUnfoldArea, `{"name": "Rooms"}`)}},
		&oracle.Response{Text: "Created the program; the rooms can be unfolded once it is accepted."},
	)
	orch := newTestOrchestrator(t, fake, 0)

	resp, err := orch.RunTurn(context.Background(), "create a 5,000 m² program and unfold the rooms", program.Selection{}, &program.Context{})
	require.NoError(t, err)
	assert.Equal(t, TerminalDone, resp.Terminal)
	require.Len(t, resp.ToolLog, 2)
	assert.False(t, resp.ToolLog[1].IsError, "waiting on acceptance is not a tool failure")
	assert.Contains(t, resp.ToolLog[1].Result, "pending review")
	assert.Len(t, resp.Proposals, 1, "only the create produced proposals")
}

func TestRunTurn_UnfoldFallsBackToSelection(t *testing.T) {
	fake := scripted(
		&oracle.Response{ToolCalls: []oracle.ToolCall{call(toolUnfoldArea, `{}`)}},
		&oracle.Response{Text: "Unfolded the selected rooms."},
	)
	fake.json = func(system, user string) (string, error) {
		return `{"areas": [{"name": "Sleeping area", "ratio": 0.7}, {"name": "Bathroom", "ratio": 0.3}]}`, nil
	}
	orch := newTestOrchestrator(t, fake, 0)

	sel := program.Selection{NodeIDs: []string{"n2"}}
	resp, err := orch.RunTurn(context.Background(), "unfold the selected area", sel, agentSnapshot())
	require.NoError(t, err)
	require.Len(t, resp.ToolLog, 1)
	assert.False(t, resp.ToolLog[0].IsError, "the selected node is a valid target")
	require.Len(t, resp.Proposals, 1)

	split, ok := resp.Proposals[0].Payload.(program.SplitAreaPayload)
	require.True(t, ok)
	assert.Equal(t, "n2", split.SourceNodeID)
	var total float64
	for _, p := range split.Parts {
		total += p.TotalArea()
	}
	assert.InDelta(t, 3360.0, total, 1e-9)
}

func TestRunTurn_UnfoldFallsBackToSelectedGroup(t *testing.T) {
	fake := scripted(
		&oracle.Response{ToolCalls: []oracle.ToolCall{call(toolUnfoldArea, `{}`)}},
		&oracle.Response{Text: "Unfolded the front of house."},
	)
	fake.json = func(system, user string) (string, error) {
		return `{"areas": [{"name": "Main zone", "ratio": 0.8}, {"name": "Service zone", "ratio": 0.2}]}`, nil
	}
	orch := newTestOrchestrator(t, fake, 0)

	sel := program.Selection{GroupIDs: []string{"g1"}}
	resp, err := orch.RunTurn(context.Background(), "unfold the selection", sel, agentSnapshot())
	require.NoError(t, err)
	require.Len(t, resp.ToolLog, 1)
	assert.False(t, resp.ToolLog[0].IsError)
	assert.Contains(t, resp.ToolLog[0].Result, "Unfolded 2 area(s)")
	assert.Len(t, resp.Proposals, 2, "one split per group member")
}

func TestRunTurn_SplitAreaFallsBackToSelection(t *testing.T) {
	fake := scripted(
		&oracle.Response{ToolCalls: []oracle.ToolCall{
			call(toolSplitArea, `{"areas": [{"name": "Front desk", "ratio": 0.4}, {"name": "Seating", "ratio": 0.6}]}`),
		}},
	)
	orch := newTestOrchestrator(t, fake, 0)

	sel := program.Selection{NodeIDs: []string{"n1"}}
	resp, err := orch.RunTurn(context.Background(), "split the selected area", sel, agentSnapshot())
	require.NoError(t, err)
	require.Len(t, resp.ToolLog, 1)
	assert.False(t, resp.ToolLog[0].IsError)
	require.Len(t, resp.Proposals, 1)

	split, ok := resp.Proposals[0].Payload.(program.SplitAreaPayload)
	require.True(t, ok)
	assert.Equal(t, "n1", split.SourceNodeID)
}

func TestRunTurn_MergeGroupAreas(t *testing.T) {
	fake := scripted(
		&oracle.Response{ToolCalls: []oracle.ToolCall{
			call(toolMergeGroupAreas, `{"groupName": "Front of house"}`),
		}},
	)
	orch := newTestOrchestrator(t, fake, 0)

	resp, err := orch.RunTurn(context.Background(), "collapse the front of house into one area", program.Selection{}, agentSnapshot())
	require.NoError(t, err)
	require.Len(t, resp.ToolLog, 1)
	assert.False(t, resp.ToolLog[0].IsError)
	require.Len(t, resp.Proposals, 1)

	merged, ok := resp.Proposals[0].Payload.(program.MergeGroupAreasPayload)
	require.True(t, ok)
	assert.Equal(t, "g1", merged.GroupID)
	assert.Equal(t, "Front of house", merged.Name)
	assert.InDelta(t, 750.0, merged.AreaPerUnit, 1e-9)
	assert.Equal(t, []string{"n1", "n3"}, merged.ReplacedNodes)
}

func TestRunTurn_ToolCallsRunUnderDeadline(t *testing.T) {
	var gotDeadline bool
	var gotSel program.Selection
	stub := &stubAction{
		id:  "organize",
		req: action.RequireAny,
		execute: func(ctx context.Context, prompt string, sel program.Selection, snap *program.Context) (*action.Result, error) {
			_, gotDeadline = ctx.Deadline()
			gotSel = sel
			return &action.Result{Message: "regrouped"}, nil
		},
	}
	fake := scripted(
		&oracle.Response{ToolCalls: []oracle.ToolCall{call(toolOrganizeAreas, `{}`)}},
	)
	exec := intent.NewExecutor(nil)
	reg := action.NewRegistry(nil)
	reg.MustRegister(stub)
	orch := NewOrchestrator(fake, exec, reg, 0, time.Minute, NewMetrics(prometheus.NewRegistry()), nil)

	sel := program.Selection{NodeIDs: []string{"n1", "n3"}}
	resp, err := orch.RunTurn(context.Background(), "organize the selection", sel, agentSnapshot())
	require.NoError(t, err)
	require.Len(t, resp.ToolLog, 1)
	assert.True(t, gotDeadline, "tool calls run under a per-call deadline")
	assert.Equal(t, sel, gotSel, "the turn's selection reaches the action")
}

func TestRunDirect_DeterministicOrganize(t *testing.T) {
	fake := &fakeOracle{}
	orch := newTestOrchestrator(t, fake, 0)

	resp, handled := orch.RunDirect(context.Background(), "organize the areas by function", program.Selection{}, agentSnapshot())
	require.True(t, handled)
	assert.Zero(t, fake.chats, "a classified request needs no chat round-trip")
	assert.Equal(t, TerminalDone, resp.Terminal)
	require.NotEmpty(t, resp.Proposals)
	_, ok := resp.Proposals[0].Payload.(program.CreateGroupsPayload)
	assert.True(t, ok)
}

func TestRunDirect_UnrecognizedFallsThrough(t *testing.T) {
	fake := &fakeOracle{}
	orch := newTestOrchestrator(t, fake, 0)

	resp, handled := orch.RunDirect(context.Background(), "thanks, that works nicely", program.Selection{}, agentSnapshot())
	assert.False(t, handled)
	assert.Nil(t, resp)
	assert.Zero(t, fake.chats)
}

func TestRunDirect_SelectionRequirementBlocked(t *testing.T) {
	stub := &stubAction{
		id:      "distribute",
		trigger: `(?i)\bdistribute\b`,
		req:     action.RequireMultiple,
		execute: func(context.Context, string, program.Selection, *program.Context) (*action.Result, error) {
			t.Fatal("a blocked action must not execute")
			return nil, nil
		},
	}
	fake := &fakeOracle{}
	exec := intent.NewExecutor(nil)
	reg := action.NewRegistry(nil)
	reg.MustRegister(stub)
	orch := NewOrchestrator(fake, exec, reg, 0, 0, NewMetrics(prometheus.NewRegistry()), nil)

	sel := program.Selection{NodeIDs: []string{"n1"}}
	resp, handled := orch.RunDirect(context.Background(), "distribute the area evenly", sel, agentSnapshot())
	require.True(t, handled, "a gated match is claimed with an explanation")
	assert.Contains(t, resp.Message, "at least two")
	assert.Empty(t, resp.Proposals)
	assert.Zero(t, fake.chats)
}

func TestRunTurn_MaxIterations(t *testing.T) {
	fake := &fakeOracle{}
	fake.chat = func(ctx context.Context, history []oracle.Message) (*oracle.Response, error) {
		return &oracle.Response{ToolCalls: []oracle.ToolCall{
			call(toolAdjustPercent, `{"nodeIds": ["n1"], "percent": 1}`),
		}}, nil
	}
	orch := newTestOrchestrator(t, fake, 2)

	resp, err := orch.RunTurn(context.Background(), "keep tweaking", program.Selection{}, agentSnapshot())
	require.NoError(t, err)
	assert.Equal(t, TerminalMaxIterations, resp.Terminal)
	assert.Equal(t, 2, resp.Iterations)
	assert.Equal(t, 2, fake.chats)
	assert.Len(t, resp.Proposals, 2, "partial work survives the budget cut")
	assert.Contains(t, resp.Message, "iteration budget")
}

func TestRunTurn_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	orch := newTestOrchestrator(t, &fakeOracle{}, 0)

	resp, err := orch.RunTurn(ctx, "anything", program.Selection{}, agentSnapshot())
	require.NoError(t, err)
	assert.Equal(t, TerminalCancelled, resp.Terminal)
	assert.Zero(t, resp.Iterations)
	assert.Contains(t, resp.Message, "cancelled")
}

func TestRunTurn_CancelledMidTurnKeepsProposals(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fake := &fakeOracle{}
	fake.chat = func(ctx context.Context, history []oracle.Message) (*oracle.Response, error) {
		if fake.chats == 1 {
			return &oracle.Response{ToolCalls: []oracle.ToolCall{
				call(toolScaleAreas, `{"nodeIds": ["n1"], "factor": 2}`),
			}}, nil
		}
		cancel()
		return nil, ctx.Err()
	}
	orch := newTestOrchestrator(t, fake, 0)

	resp, err := orch.RunTurn(ctx, "double the lobby", program.Selection{}, agentSnapshot())
	require.NoError(t, err)
	assert.Equal(t, TerminalCancelled, resp.Terminal)
	assert.Len(t, resp.Proposals, 1, "work from earlier iterations is kept")
}

func TestRunTurn_OracleFailure(t *testing.T) {
	fake := &fakeOracle{}
	fake.chat = func(ctx context.Context, history []oracle.Message) (*oracle.Response, error) {
		return nil, &oracle.Error{Op: "chat", Err: errors.New("upstream 503")}
	}
	orch := newTestOrchestrator(t, fake, 0)

	_, err := orch.RunTurn(context.Background(), "anything", program.Selection{}, agentSnapshot())
	require.Error(t, err)
	var oerr *oracle.Error
	assert.ErrorAs(t, err, &oerr)
}

func TestRunTurn_GroupTools(t *testing.T) {
	fake := scripted(
		&oracle.Response{ToolCalls: []oracle.ToolCall{
			call(toolSplitGroupEqual, `{"groupName": "Front of house", "targetTotal": 1000}`),
			call(toolRegroupFunctional, `{}`),
		}},
	)
	orch := newTestOrchestrator(t, fake, 0)

	resp, err := orch.RunTurn(context.Background(), "even out the front of house and regroup", program.Selection{}, agentSnapshot())
	require.NoError(t, err)
	require.Len(t, resp.ToolLog, 2)
	assert.False(t, resp.ToolLog[0].IsError)
	assert.False(t, resp.ToolLog[1].IsError)

	equal, ok := resp.Proposals[0].Payload.(program.SplitGroupEqualPayload)
	require.True(t, ok)
	assert.Equal(t, "g1", equal.GroupID)
	var total float64
	for _, u := range equal.Updates {
		total += u.AreaPerUnit * float64(u.Count)
	}
	assert.InDelta(t, 1000.0, total, 1e-9)

	_, ok = resp.Proposals[1].Payload.(program.CreateGroupsPayload)
	assert.True(t, ok)
}

func TestRunTurn_ParseBriefDedup(t *testing.T) {
	brief := "Space overview\nLobby\t400 m²\nRooms\t3360 m²\nRestaurant\t350 m²\nTotal\t4110 m²\n"
	args, err := json.Marshal(parseBriefArgs{Text: brief})
	require.NoError(t, err)

	fake := scripted(
		&oracle.Response{ToolCalls: []oracle.ToolCall{
			{ID: "c1", Name: toolParseBrief, Arguments: args},
			{ID: "c2", Name: toolParseBrief, Arguments: args},
		}},
	)
	fake.json = func(system, user string) (string, error) {
		return `{"targetTotal": 4110, "areas": [
			{"name": "Lobby", "fixedArea": 400},
			{"name": "Rooms", "fixedArea": 28, "count": 120},
			{"name": "Restaurant", "fixedArea": 350}
		]}`, nil
	}
	orch := newTestOrchestrator(t, fake, 0)

	resp, err := orch.RunTurn(context.Background(), "import this brief", program.Selection{}, &program.Context{})
	require.NoError(t, err)
	require.Len(t, resp.ToolLog, 2)
	assert.False(t, resp.ToolLog[0].IsError)
	assert.True(t, resp.ToolLog[1].IsError)
	assert.Contains(t, resp.ToolLog[1].Result, "pending review")
}

func TestRenderTurn(t *testing.T) {
	snap := agentSnapshot()
	sel := program.Selection{NodeIDs: []string{"n1"}}

	out := renderTurn("double the lobby", sel, snap)
	assert.Contains(t, out, "Current program (4110 m² total):")
	assert.Contains(t, out, "- [n2] Guest rooms: 3360 m² (120 × 28 m²)")
	assert.Contains(t, out, "Group [g1] Front of house: 2 member(s)")
	assert.Contains(t, out, "Selected: n1")
	assert.Contains(t, out, "Request: double the lobby")

	empty := renderTurn("hello", program.Selection{}, &program.Context{})
	assert.Contains(t, empty, "Current program: empty.")
}
