package btree

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/zeusync/btcore/internal/core/observability/log"
)

// Binder turns definitions into executable graphs. Bound graphs are cached per root
// asset: binding an unchanged closure again returns the very same *Graph, a changed
// one (hot reload) replaces it.
type Binder struct {
	reg *Registry
	log log.Log

	mu    sync.Mutex
	bound map[AssetID]*Graph
}

func NewBinder(reg *Registry, logger log.Log) *Binder {
	if logger == nil {
		logger = log.NewNop()
	}
	if reg == nil {
		reg = NewRegistry()
		RegisterBuiltins(reg)
	}
	return &Binder{
		reg:   reg,
		log:   logger,
		bound: make(map[AssetID]*Graph),
	}
}

// Bind resolves def and everything it references through lookup.
func (b *Binder) Bind(def *Definition, lookup ResourceLookup) (*Graph, error) {
	if def == nil {
		return nil, ErrNilDefinition
	}
	if lookup == nil {
		lookup = emptyLookup{}
	}

	bc := &bindContext{
		binder:   b,
		lookup:   lookup,
		visiting: make(map[AssetID]bool),
		digest:   xxhash.New(),
		graph:    &Graph{root: def.ID()},
	}
	if _, err := bc.build(def, noIndex, guidFor(def)); err != nil {
		return nil, err
	}
	g := bc.graph
	g.fingerprint = bc.digest.Sum64()
	g.finalize()

	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.bound[g.root]; ok && prev.fingerprint == g.fingerprint {
		return prev, nil
	}
	b.bound[g.root] = g
	b.log.Debug("tree bound",
		log.String("root", def.Path),
		log.Int("nodes", len(g.nodes)),
		log.Int("decorators", g.decorators),
		log.Int("watchers", len(g.watchers)),
	)
	return g, nil
}

// Bound returns the graph last bound for root.
func (b *Binder) Bound(root AssetID) (*Graph, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.bound[root]
	return g, ok
}

// Forget drops the cached graph of root. Runtimes still pointing at it keep working.
func (b *Binder) Forget(root AssetID) {
	b.mu.Lock()
	delete(b.bound, root)
	b.mu.Unlock()
}

// emptyLookup stands in for a nil ResourceLookup: standalone leaves still bind,
// any child reference is missing.
type emptyLookup struct{}

func (emptyLookup) GetAsset(id AssetID) (*Definition, error) {
	return nil, &MissingAssetError{ID: id}
}

type bindContext struct {
	binder   *Binder
	lookup   ResourceLookup
	visiting map[AssetID]bool
	digest   *xxhash.Digest
	graph    *Graph
}

func (bc *bindContext) build(d *Definition, parent int32, id uuid.UUID) (int32, error) {
	aid := d.ID()
	if bc.visiting[aid] {
		return noIndex, fmt.Errorf("%w: %q", ErrCyclicDefinition, d.Path)
	}
	bc.visiting[aid] = true
	defer delete(bc.visiting, aid)

	bc.hash(d)

	idx := int32(len(bc.graph.nodes))
	node := Node{
		index:  idx,
		parent: parent,
		id:     id,
		asset:  aid,
		name:   d.DisplayName(),
		kind:   d.Kind,
		abort:  d.Abort,
		scope:  noIndex,
		anchor: noIndex,
	}
	if err := bc.configure(&node, d); err != nil {
		return noIndex, err
	}
	bc.graph.nodes = append(bc.graph.nodes, node)

	refs := d.refs()
	children := make([]int32, 0, len(refs))
	for ordinal, ref := range refs {
		cid := AssetIDFromPath(ref)
		child, err := bc.lookup.GetAsset(cid)
		if err != nil {
			var missing *MissingAssetError
			if errors.As(err, &missing) {
				missing.Ref, missing.Parent = ref, d.Path
				return noIndex, missing
			}
			return noIndex, fmt.Errorf("resolve %q from %q: %w", ref, d.Path, err)
		}
		if child == nil {
			return noIndex, &MissingAssetError{ID: cid, Ref: ref, Parent: d.Path}
		}
		ci, err := bc.build(child, idx, childID(id, child, ordinal))
		if err != nil {
			return noIndex, err
		}
		children = append(children, ci)
	}
	bc.graph.nodes[idx].children = children
	return idx, nil
}

// configure validates arity and resolves the kind-specific payload.
func (bc *bindContext) configure(n *Node, d *Definition) error {
	malformed := func(reason string, err error) error {
		return &MalformedDefinitionError{Path: d.Path, Reason: reason, Err: err}
	}

	cat := d.Kind.Category()
	switch cat {
	case CategoryInvalid:
		return malformed("unknown node kind", nil)
	case CategoryComposite:
		if d.Child != "" {
			return malformed("composite declares a single child", nil)
		}
	case CategoryDecorator:
		if d.Child == "" || len(d.Children) > 0 {
			return malformed("decorator needs exactly one child", nil)
		}
	case CategoryLeaf:
		if d.Child != "" || len(d.Children) > 0 {
			return malformed("leaf cannot have children", nil)
		}
	}
	if d.Abort != AbortNone && cat != CategoryDecorator {
		return malformed("abort type on a non-decorator", nil)
	}

	reg := bc.binder.reg
	var err error
	switch d.Kind {
	case KindParallel:
		policy, _, perr := paramString(d.Params, "policy")
		switch {
		case perr != nil:
			return malformed("parallel policy", perr)
		case policy == "" || policy == "all":
			n.policy = ParallelRequireAll
		case policy == "one":
			n.policy = ParallelRequireOne
		default:
			return malformed("parallel policy", fmt.Errorf("unknown policy %q", policy))
		}
	case KindRepeater:
		if n.times, _, err = paramUint(d.Params, "times"); err != nil {
			return malformed("repeater times", err)
		}
		if n.stopOnFailure, _, err = paramBool(d.Params, "stop_on_failure"); err != nil {
			return malformed("repeater stop_on_failure", err)
		}
	case KindCooldown:
		if n.cooldown, _, err = paramUint(d.Params, "ticks"); err != nil {
			return malformed("cooldown ticks", err)
		}
	case KindConditional:
		if d.Condition == "" {
			return malformed("conditional without condition", nil)
		}
		if n.guard, err = reg.NewCondition(d.Condition, d.Params); err != nil {
			return malformed("condition "+d.Condition, err)
		}
	case KindCondition:
		if d.Condition == "" {
			return malformed("condition leaf without condition", nil)
		}
		cond, err := reg.NewCondition(d.Condition, d.Params)
		if err != nil {
			return malformed("condition "+d.Condition, err)
		}
		n.leaf = conditionLeaf{cond: cond}
	case KindAction:
		if d.Leaf == "" {
			return malformed("action without leaf", nil)
		}
		params := make(map[string]any, len(d.Params)+1)
		maps.Copy(params, d.Params)
		params[ParamNode] = n.id.String()
		if n.leaf, err = reg.NewLeaf(d.Leaf, params); err != nil {
			return malformed("leaf "+d.Leaf, err)
		}
	}
	return nil
}

// hash feeds the parts of d that affect the bound graph into the closure digest.
func (bc *bindContext) hash(d *Definition) {
	h := bc.digest
	write := func(s string) {
		_, _ = h.WriteString(s)
		_, _ = h.Write([]byte{0})
	}
	write(d.Path)
	write(guidFor(d).String())
	write(d.Name)
	write(d.Kind.String())
	write(d.Abort.String())
	write(d.Leaf)
	write(d.Condition)
	write(d.Child)
	for _, c := range d.Children {
		write(c)
	}
	write(strconv.Itoa(len(d.Children)))

	keys := make([]string, 0, len(d.Params))
	for k := range d.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		write(k)
		write(fmt.Sprintf("%v", d.Params[k]))
	}
}

// childID gives every tree position its own stable id, so a definition used twice
// is still told apart by observers.
func childID(parent uuid.UUID, child *Definition, ordinal int) uuid.UUID {
	guid := guidFor(child)
	return uuid.NewSHA1(parent, append(guid[:], []byte(strconv.Itoa(ordinal))...))
}

// finalize derives abort scopes and the watcher list.
func (g *Graph) finalize() {
	g.watchers = g.watchers[:0]
	g.decorators = 0
	for i := range g.nodes {
		n := &g.nodes[i]
		if !n.IsDecorator() {
			continue
		}
		g.decorators++

		below := n.index
		for p := n.parent; p != noIndex; p = g.nodes[p].parent {
			pn := &g.nodes[p]
			if pn.IsDecorator() {
				below = p
				continue
			}
			if pn.kind == KindSequence || pn.kind == KindSelector {
				n.scope = p
				for ord, c := range pn.children {
					if c == below {
						n.anchor = int32(ord)
						break
					}
				}
			}
			break
		}

		if n.abort != AbortNone {
			g.watchers = append(g.watchers, n.index)
		}
	}
}
