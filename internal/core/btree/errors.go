package btree

import (
	"errors"
	"fmt"
)

var (
	// ErrConcurrentEvaluation is returned when a runtime is evaluated while another
	// evaluation of the same agent is still in progress.
	ErrConcurrentEvaluation = errors.New("concurrent evaluation of agent runtime")
	// ErrCyclicDefinition is returned by Bind when a definition reaches itself.
	ErrCyclicDefinition = errors.New("cyclic tree definition")
	// ErrNilDefinition is returned by Bind for a nil root.
	ErrNilDefinition = errors.New("nil tree definition")
	// ErrUnboundRuntime is returned when a runtime has no graph to evaluate.
	ErrUnboundRuntime = errors.New("runtime is not bound to a graph")
)

// MissingAssetError reports a child reference the resource lookup could not resolve.
// The subtree cannot be bound until the asset exists; binding is not retried.
type MissingAssetError struct {
	ID     AssetID
	Ref    string
	Parent string
}

func (e *MissingAssetError) Error() string {
	if e.Parent == "" {
		return fmt.Sprintf("missing asset %q (%016x)", e.Ref, uint64(e.ID))
	}
	return fmt.Sprintf("missing asset %q (%016x) referenced by %q", e.Ref, uint64(e.ID), e.Parent)
}

// MalformedDefinitionError reports a definition that resolves but cannot form a node.
type MalformedDefinitionError struct {
	Path   string
	Reason string
	Err    error
}

func (e *MalformedDefinitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed definition %q: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed definition %q: %s", e.Path, e.Reason)
}

func (e *MalformedDefinitionError) Unwrap() error { return e.Err }

// InvalidCursorError describes a composite cursor past the end of its children on
// entry. It is logged and the composite reports Failure.
type InvalidCursorError struct {
	Node     string
	Cursor   int
	Children int
}

func (e *InvalidCursorError) Error() string {
	return fmt.Sprintf("cursor %d out of range for %q with %d children", e.Cursor, e.Node, e.Children)
}

// ReentrantAbortError describes an abort dropped because another one was already in
// flight for the agent. It is only ever logged.
type ReentrantAbortError struct {
	Agent    AgentID
	Source   string
	InFlight string
}

func (e *ReentrantAbortError) Error() string {
	return fmt.Sprintf("agent %d: abort from %q suppressed, %q already aborting", e.Agent, e.Source, e.InFlight)
}
