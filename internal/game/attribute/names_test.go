package attribute_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cory-johannsen/tactics/internal/game/attribute"
)

func TestAll_AreValidAndUnique(t *testing.T) {
	seen := map[attribute.Name]bool{}
	for _, n := range attribute.All() {
		assert.True(t, attribute.Valid(n), n)
		assert.False(t, seen[n], "duplicate %s", n)
		seen[n] = true
	}
	assert.False(t, attribute.Valid("luck"))
}

func TestMaxOf(t *testing.T) {
	m, ok := attribute.MaxOf(attribute.HitPoints)
	assert.True(t, ok)
	assert.Equal(t, attribute.MaxHitPoints, m)

	_, ok = attribute.MaxOf(attribute.ArmorClass)
	assert.False(t, ok)
}

func TestReplicated_ExcludesTransientDamage(t *testing.T) {
	assert.False(t, attribute.Replicated(attribute.TmpDamageIncoming))
	assert.True(t, attribute.Replicated(attribute.EncActionPoints))
}

func TestParseModOp(t *testing.T) {
	for _, op := range []attribute.ModOp{attribute.OpAdditive, attribute.OpMultiplicative, attribute.OpOverride} {
		got, err := attribute.ParseModOp(op.String())
		assert.NoError(t, err)
		assert.Equal(t, op, got)
	}
	_, err := attribute.ParseModOp("divide")
	assert.Error(t, err)
}
