// File: api/handler.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Work object and work-allocator contracts: the only two concepts an
// application supplies to the framework (spec §4.7).

package api

// EventKind enumerates the paired parent/child protocol messages a
// proxying pair of handlers may exchange through the framework.
type EventKind int

const (
	// ParentWrite: parent -> child. Value is the byte count to write
	// from the parent's read buffer onto the child's socket.
	ParentWrite EventKind = iota
	// ParentClose: parent -> child. The parent has closed.
	ParentClose
	// ChildOpen: child -> parent. The outbound connection is established.
	ChildOpen
	// ChildWrite: child -> parent. Value is the byte count to write
	// from the child's read buffer onto the parent's socket.
	ChildWrite
	// ChildClose: child -> parent. The child has closed.
	ChildClose
)

func (k EventKind) String() string {
	switch k {
	case ParentWrite:
		return "parent_write"
	case ParentClose:
		return "parent_close"
	case ChildOpen:
		return "child_open"
	case ChildWrite:
		return "child_write"
	case ChildClose:
		return "child_close"
	default:
		return "unknown"
	}
}

// Event is a single paired-handler protocol message.
type Event struct {
	Kind  EventKind
	Value int // byte count, meaningful only for *Write events.
}

// Work is the application-supplied callback object bound one-to-one
// with a preallocated Handler. Every method is invoked on the owning
// Handler's work loop, with the Handler's storage borrowed for the
// call's duration (spec §4.7, §5).
//
// HandlerRef is deliberately an opaque interface (not the concrete
// handler.Handler type) so that api has no dependency on the handler
// package; the concrete package implements it.
type Work interface {
	// OnOpen fires once, right after the handler is checked out and
	// its socket is live (accepted or connected).
	OnOpen(h HandlerRef)
	// OnRead fires after an AsyncReadSome completes successfully with
	// n bytes now available in h.ReadBuffer()[:n].
	OnRead(h HandlerRef, n int)
	// OnWrite fires after an AsyncWrite completes, having written n
	// bytes.
	OnWrite(h HandlerRef, n int)
	// OnClose is the last callback delivered for a session.
	OnClose(h HandlerRef, err error)
	// OnParent fires when the handler's parent has posted ev.
	OnParent(h HandlerRef, ev Event)
	// OnChild fires when the handler's child has posted ev.
	OnChild(h HandlerRef, ev Event)
	// OnClear resets any residual application state before the
	// handler is recycled back into its pool. It is the framework's
	// only reset hook; the framework clears the connection, loop and
	// parent/child references itself, but leaves buffer contents as the
	// previous session wrote them.
	OnClear(h HandlerRef)
}

// OptionalParentSetter and OptionalChildSetter are implemented by work
// objects that want to be notified when the framework wires a
// parent/child relationship, mirroring the original library's optional
// on_set_parent/on_set_child hooks.
type OptionalParentSetter interface {
	OnSetParent(h HandlerRef, parent HandlerRef)
}

type OptionalChildSetter interface {
	OnSetChild(h HandlerRef, child HandlerRef)
}

// WorkAllocator constructs one Work instance per preallocated handler,
// and deallocates it when the pool is closed (spec §4.7).
type WorkAllocator interface {
	New() Work
	Free(Work)
}

// HandlerRef is the subset of Handler behavior a Work implementation
// may call back into. Defined here to avoid an import cycle between
// api and handler.
type HandlerRef interface {
	// ReadBuffer returns the handler's fixed-size read buffer.
	ReadBuffer() []byte
	// WriteBuffer returns the handler's fixed-size write buffer.
	WriteBuffer() []byte
	// AsyncReadSome schedules a single-shot read on the handler's I/O loop.
	AsyncReadSome()
	// AsyncWrite schedules a write of p (which must be backed by, or
	// copied from, the handler's own buffers) on the handler's I/O loop.
	AsyncWrite(p []byte)
	// PostParent enqueues ev for asynchronous delivery through this
	// handler's own OnParent, on this handler's work loop. A peer
	// holding this handler as its "child" calls PostParent on it to
	// simulate a message arriving from the parent side.
	PostParent(ev Event)
	// PostChild enqueues ev for asynchronous delivery through this
	// handler's own OnChild, on this handler's work loop. A peer
	// holding this handler as its "parent" calls PostChild on it to
	// simulate a message arriving from the child side.
	PostChild(ev Event)
	// Close initiates idempotent shutdown with no reported error.
	Close()
	// CloseErr initiates idempotent shutdown, reporting err to OnClose.
	CloseErr(err error)
	// SetParent records this handler's parent reference, notifying the
	// work object if it opts in. Called by whichever side of a proxy
	// pair establishes the relationship (typically the client, once an
	// outbound connect succeeds).
	SetParent(parent HandlerRef)
	// SetChild records this handler's child reference, notifying the
	// work object if it opts in.
	SetChild(child HandlerRef)
	// Parent returns the current parent reference, or nil.
	Parent() HandlerRef
	// Child returns the current child reference, or nil.
	Child() HandlerRef
}
