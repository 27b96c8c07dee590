package action

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spaceplan/internal/intent"
	"spaceplan/internal/program"
)

func TestParseScaleDirective(t *testing.T) {
	ids := []string{"n1"}

	tests := []struct {
		name    string
		prompt  string
		current float64
		want    program.Intent
	}{
		{"percent increase", "increase by 10%", 1000,
			&program.AdjustPercentIntent{NodeIDs: ids, Percent: 10}},
		{"percent decrease negates", "decrease by 25%", 1000,
			&program.AdjustPercentIntent{NodeIDs: ids, Percent: -25}},
		{"spelled out percent", "shrink by 15 percent", 1000,
			&program.AdjustPercentIntent{NodeIDs: ids, Percent: -15}},
		{"explicit sign is kept", "grow by +20%", 1000,
			&program.AdjustPercentIntent{NodeIDs: ids, Percent: 20}},
		{"absolute target", "reduce to 500 m²", 1000,
			&program.RedistributeIntent{NodeIDs: ids, Factor: 0.5}},
		{"absolute target with k", "scale to 2k sqm", 1000,
			&program.RedistributeIntent{NodeIDs: ids, Factor: 2}},
		{"double", "double the lobby", 1000,
			&program.RedistributeIntent{NodeIDs: ids, Factor: 2}},
		{"halve", "halve everything", 1000,
			&program.RedistributeIntent{NodeIDs: ids, Factor: 0.5}},
		{"triple", "triple the storage", 1000,
			&program.RedistributeIntent{NodeIDs: ids, Factor: 3}},
		{"factor of", "increase by a factor of 1.5", 1000,
			&program.RedistributeIntent{NodeIDs: ids, Factor: 1.5}},
		{"decreasing factor inverts", "reduce by a factor of 4", 1000,
			&program.RedistributeIntent{NodeIDs: ids, Factor: 0.25}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, desc, ok := parseScaleDirective(tt.prompt, ids, tt.current)
			require.True(t, ok)
			assert.NotEmpty(t, desc)
			switch want := tt.want.(type) {
			case *program.AdjustPercentIntent:
				it, ok := got.(*program.AdjustPercentIntent)
				require.True(t, ok)
				assert.InDelta(t, want.Percent, it.Percent, 1e-9)
			case *program.RedistributeIntent:
				it, ok := got.(*program.RedistributeIntent)
				require.True(t, ok)
				assert.InDelta(t, want.Factor, it.Factor, 1e-9)
			}
		})
	}

	t.Run("no recognizable directive", func(t *testing.T) {
		_, _, ok := parseScaleDirective("change the lobby somehow", ids, 1000)
		assert.False(t, ok)
	})
}

func TestScaleAction_Execute(t *testing.T) {
	exec := intent.NewExecutor(nil)
	a := NewScaleAction(exec, nil)

	t.Run("doubles the mentioned node", func(t *testing.T) {
		snap := testSnapshot()
		res, err := a.Execute(context.Background(), "double the lobby", program.Selection{}, snap)
		require.NoError(t, err)
		assert.False(t, res.NeedsClarification)
		require.Len(t, res.Proposals, 1)

		payload, ok := res.Proposals[0].Payload.(program.UpdateAreasPayload)
		require.True(t, ok)
		require.Len(t, payload.Updates, 1)
		assert.Equal(t, "n1", payload.Updates[0].NodeID)
		assert.InDelta(t, 800.0, payload.Updates[0].AreaPerUnit, 1e-9)
	})

	t.Run("absolute target uses the combined current total", func(t *testing.T) {
		snap := testSnapshot()
		sel := program.Selection{NodeIDs: []string{"n1", "n3"}} // 750 m² together
		res, err := a.Execute(context.Background(), "scale these to 1,500 m²", sel, snap)
		require.NoError(t, err)
		require.Len(t, res.Proposals, 1)

		payload := res.Proposals[0].Payload.(program.UpdateAreasPayload)
		var total float64
		for _, u := range payload.Updates {
			total += u.AreaPerUnit * float64(u.Count)
		}
		assert.InDelta(t, 1500.0, total, 1e-9)
	})

	t.Run("unparseable directive asks how", func(t *testing.T) {
		snap := testSnapshot()
		res, err := a.Execute(context.Background(), "resize the lobby", program.Selection{}, snap)
		require.NoError(t, err)
		assert.True(t, res.NeedsClarification)
		require.Len(t, res.ClarificationOptions, 4)
		for _, opt := range res.ClarificationOptions {
			assert.InDelta(t, 0.5, opt.Confidence, 1e-9)
			assert.NotEmpty(t, opt.Prompt)
		}
	})

	t.Run("no resolvable target", func(t *testing.T) {
		_, err := a.Execute(context.Background(), "double the atrium", program.Selection{}, testSnapshot())
		assert.ErrorIs(t, err, ErrNoTargets)
	})

	t.Run("validate rejects an empty prompt", func(t *testing.T) {
		err := a.Validate("   ", program.Selection{}, testSnapshot())
		assert.ErrorIs(t, err, ErrEmptyPrompt)
	})
}
