package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/tactics/internal/game/dice"
)

type fixedSource struct{ values []int }

func (f *fixedSource) Intn(n int) int {
	v := f.values[0] % n
	f.values = f.values[1:]
	return v
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want dice.Expression
	}{
		{"d20", dice.Expression{Count: 1, Sides: 20}},
		{"2d6+3", dice.Expression{Count: 2, Sides: 6, Modifier: 3}},
		{"1d8-1", dice.Expression{Count: 1, Sides: 8, Modifier: -1}},
		{"4d6kh3", dice.Expression{Count: 4, Sides: 6, Keep: 3}},
		{"4D6KH3 + 2", dice.Expression{Count: 4, Sides: 6, Keep: 3, Modifier: 2}},
	}
	for _, tc := range tests {
		got, err := dice.Parse(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParse_Rejects(t *testing.T) {
	for _, in := range []string{"", "20", "0d6", "2d1", "2d6kh2", "2d6kh0", "d", "2d6+", "x2d6"} {
		_, err := dice.Parse(in)
		assert.Error(t, err, in)
	}
}

func TestExpression_StringRoundTrip(t *testing.T) {
	for _, in := range []string{"1d20", "2d6+3", "4d6kh3-1"} {
		e := dice.MustParse(in)
		assert.Equal(t, in, e.String())
	}
}

func TestRoll_KeepHighest(t *testing.T) {
	src := &fixedSource{values: []int{0, 5, 2, 3}}
	res := dice.Roll(dice.MustParse("4d6kh3+1"), src)

	assert.Equal(t, []int{1, 6, 3, 4}, res.Rolled)
	assert.Equal(t, []int{6, 4, 3}, res.Kept)
	assert.Equal(t, 14, res.Total())
}

func TestSeededSource_Deterministic(t *testing.T) {
	a, b := dice.SeededSource(7), dice.SeededSource(7)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Intn(20), b.Intn(20))
	}
}

func TestRoller_LogsRolls(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := dice.NewRoller(dice.SeededSource(1), zap.New(core))

	res, err := r.RollExpr("2d8+2")
	require.NoError(t, err)

	entries := logs.FilterMessage("dice roll").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(res.Total()), entries[0].ContextMap()["total"])

	_, err = r.RollExpr("bogus")
	assert.Error(t, err)
}

func TestRoll_Property_TotalWithinBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		count := rapid.IntRange(1, 10).Draw(rt, "count")
		sides := rapid.IntRange(2, 20).Draw(rt, "sides")
		mod := rapid.IntRange(-10, 10).Draw(rt, "mod")
		e := dice.Expression{Count: count, Sides: sides, Modifier: mod}

		res := dice.Roll(e, dice.SeededSource(rapid.Uint64().Draw(rt, "seed")))

		assert.Len(rt, res.Rolled, count)
		assert.GreaterOrEqual(rt, res.Total(), count+mod)
		assert.LessOrEqual(rt, res.Total(), count*sides+mod)
	})
}

func TestCryptoSource_InRange(t *testing.T) {
	src := dice.CryptoSource()
	for i := 0; i < 100; i++ {
		v := src.Intn(6)
		assert.True(t, v >= 0 && v < 6)
	}
}
