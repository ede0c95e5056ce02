package btree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindMissingAsset(t *testing.T) {
	fx := newFixture(t)
	fx.probe("a", StatusSuccess)
	fx.add(seq("root", "a", "ghost"))

	root, _ := fx.lookup.GetAsset(AssetIDFromPath("root"))
	_, err := fx.binder.Bind(root, fx.lookup)
	require.Error(t, err)

	var missing *MissingAssetError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "ghost", missing.Ref)
	assert.Equal(t, "root", missing.Parent)
	assert.Equal(t, AssetIDFromPath("ghost"), missing.ID)

	_, ok := fx.binder.Bound(AssetIDFromPath("root"))
	assert.False(t, ok, "failed binds are not cached")
}

func TestBindCycle(t *testing.T) {
	fx := newFixture(t)
	fx.add(
		seq("root", "loop"),
		&Definition{Path: "loop", Kind: KindInverter, Child: "root"},
	)
	root, _ := fx.lookup.GetAsset(AssetIDFromPath("root"))
	_, err := fx.binder.Bind(root, fx.lookup)
	assert.ErrorIs(t, err, ErrCyclicDefinition)
}

func TestBindNil(t *testing.T) {
	_, err := NewBinder(nil, nil).Bind(nil, defs{})
	assert.ErrorIs(t, err, ErrNilDefinition)
}

func TestBindWithoutLookup(t *testing.T) {
	b := NewBinder(nil, nil)

	g, err := b.Bind(&Definition{Path: "solo", Kind: KindAction, Leaf: "Noop"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())

	_, err = b.Bind(seq("root", "a"), nil)
	var missing *MissingAssetError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "a", missing.Ref)
	assert.Equal(t, "root", missing.Parent)
}

func TestBindMalformed(t *testing.T) {
	cases := []struct {
		name string
		def  *Definition
		is   error
	}{
		{"decorator without child", &Definition{Path: "x", Kind: KindInverter}, nil},
		{"decorator with children", &Definition{Path: "x", Kind: KindInverter, Children: []string{"a"}}, nil},
		{"leaf with child", &Definition{Path: "x", Kind: KindAction, Leaf: "Noop", Child: "a"}, nil},
		{"composite with child", &Definition{Path: "x", Kind: KindSequence, Child: "a"}, nil},
		{"invalid kind", &Definition{Path: "x"}, nil},
		{"abort on composite", &Definition{Path: "x", Kind: KindSelector, Abort: AbortSelf}, nil},
		{"unknown leaf", &Definition{Path: "x", Kind: KindAction, Leaf: "Teleport"}, ErrUnregistered},
		{"unknown condition", &Definition{Path: "x", Kind: KindCondition, Condition: "IsBlue"}, ErrUnregistered},
		{"conditional without condition", &Definition{Path: "x", Kind: KindConditional, Child: "a"}, nil},
		{"bad repeat count", &Definition{Path: "x", Kind: KindRepeater, Child: "a", Params: map[string]any{"times": -2}}, nil},
		{"bad policy", &Definition{Path: "x", Kind: KindParallel, Params: map[string]any{"policy": "most"}}, nil},
		{"builtin param missing", &Definition{Path: "x", Kind: KindCondition, Condition: "IsTrue"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newFixture(t)
			fx.probe("a", StatusSuccess)
			_, err := fx.binder.Bind(tc.def, fx.lookup)

			var malformed *MalformedDefinitionError
			require.True(t, errors.As(err, &malformed), "got %v", err)
			assert.Equal(t, "x", malformed.Path)
			if tc.is != nil {
				assert.ErrorIs(t, err, tc.is)
			}
		})
	}
}

func TestBindLayout(t *testing.T) {
	fx := newFixture(t)
	fx.probe("ok", StatusSuccess)
	fx.probe("run", StatusRunning)
	fx.add(
		guarded("gate", "k", AbortLowerPriority, "wrapped"),
		&Definition{Path: "wrapped", Kind: KindInverter, Abort: AbortSelf, Child: "ok"},
		seq("inner", "gate", "run"),
		&Definition{Path: "deco", Kind: KindSucceeder, Child: "inner"},
		sel("root", "run", "deco"),
	)
	g := fx.bind("root")

	require.Equal(t, 8, g.Len())
	assert.Equal(t, KindSelector, g.Root().Kind())
	assert.Equal(t, int32(-1), g.Root().Parent())

	for i := int32(1); i < int32(g.Len()); i++ {
		n := g.Node(i)
		assert.Less(t, n.Parent(), i, "pre-order places parents first")
		assert.Contains(t, g.Node(n.Parent()).Children(), i)
	}

	gate := fx.node(g, "gate")
	wrapped := fx.node(g, "wrapped")
	inner := fx.node(g, "inner")
	deco := fx.node(g, "deco")

	assert.Equal(t, []int32{gate.Index(), wrapped.Index()}, g.Watchers())
	assert.Equal(t, inner.Index(), gate.scope)
	assert.Equal(t, int32(0), gate.anchor)
	assert.Equal(t, inner.Index(), wrapped.scope, "decorator chains share the enclosing scope")
	assert.Equal(t, int32(0), wrapped.anchor)
	assert.Equal(t, g.Root().Index(), deco.scope)
	assert.Equal(t, int32(1), deco.anchor)

	var path []string
	g.Ancestors(fx.node(g, "ok").Index(), func(n *Node) bool {
		path = append(path, n.Name())
		return true
	})
	assert.Equal(t, []string{"wrapped", "gate", "inner", "deco", "root"}, path)
}

func TestBindSharedDefinitionGetsDistinctNodes(t *testing.T) {
	fx := newFixture(t)
	fx.probe("step", StatusSuccess)
	fx.add(seq("root", "step", "step"))
	g := fx.bind("root")

	require.Equal(t, 3, g.Len())
	a, b := g.Node(1), g.Node(2)
	assert.Equal(t, a.Asset(), b.Asset())
	assert.NotEqual(t, a.ID(), b.ID())

	g2 := NewBinder(fx.reg, nil)
	root, _ := fx.lookup.GetAsset(AssetIDFromPath("root"))
	other, err := g2.Bind(root, fx.lookup)
	require.NoError(t, err)
	assert.Equal(t, a.ID(), other.Node(1).ID(), "node ids are stable across binds")
}

func TestBindIdempotentAndHotReload(t *testing.T) {
	fx := newFixture(t)
	fx.probe("a", StatusSuccess)
	fx.probe("b", StatusFailure)
	fx.add(sel("root", "a"))

	first := fx.bind("root")
	again := fx.bind("root")
	assert.Same(t, first, again)

	// a refreshed cache hands out a new definition for an existing path
	fx.add(sel("root", "b", "a"))
	reloaded := fx.bind("root")
	assert.NotSame(t, first, reloaded)
	assert.NotEqual(t, first.Fingerprint(), reloaded.Fingerprint())
	assert.Equal(t, 3, reloaded.Len())
	assert.Equal(t, 2, first.Len(), "old graph is left untouched")

	current, ok := fx.binder.Bound(AssetIDFromPath("root"))
	require.True(t, ok)
	assert.Same(t, reloaded, current)

	fx.binder.Forget(AssetIDFromPath("root"))
	_, ok = fx.binder.Bound(AssetIDFromPath("root"))
	assert.False(t, ok)
}

func TestBindFingerprintCoversParams(t *testing.T) {
	fx := newFixture(t)
	fx.probe("a", StatusSuccess)
	fx.add(&Definition{Path: "root", Kind: KindRepeater, Child: "a", Params: map[string]any{"times": 2}})
	first := fx.bind("root")

	fx.add(&Definition{Path: "root", Kind: KindRepeater, Child: "a", Params: map[string]any{"times": 3}})
	second := fx.bind("root")
	assert.NotEqual(t, first.Fingerprint(), second.Fingerprint())
}
