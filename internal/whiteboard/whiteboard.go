// Package whiteboard implements the write-once output record of a workflow.
//
// A Whiteboard wraps a pointer to a user struct. While the owning workflow is
// entered, each field may be set at most once; values may be deferred and
// are only resolved when the workflow commits after a successful run. Once
// the workflow closes the board is frozen, whether or not it was committed.
package whiteboard

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/vk/lazyflow/internal/errs"
	"github.com/vk/lazyflow/internal/op"
)

type state int

const (
	idle state = iota
	active
	// sealed boards reject writes but can still be committed.
	sealed
	frozen
)

// Whiteboard tracks field writes against a struct.
type Whiteboard struct {
	mu        sync.Mutex
	target    reflect.Value
	fields    map[string]int
	staged    map[string]any
	order     []string
	state     state
	committed bool
}

// New wraps target, which must be a non-nil pointer to a struct. Exported
// fields are addressable by their Go name or by a `whiteboard:"name"` tag.
func New(target any) (*Whiteboard, error) {
	v := reflect.ValueOf(target)
	if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil, errs.Usage("whiteboard target must be a non-nil pointer to a struct, got %T", target)
	}
	elem := v.Elem()
	fields := make(map[string]int)
	for i := 0; i < elem.NumField(); i++ {
		sf := elem.Type().Field(i)
		if !sf.IsExported() {
			continue
		}
		name := sf.Name
		if tag, ok := sf.Tag.Lookup("whiteboard"); ok && tag != "" && tag != "-" {
			name = tag
		} else if tag == "-" {
			continue
		}
		fields[name] = i
	}
	return &Whiteboard{
		target: elem,
		fields: fields,
		staged: make(map[string]any),
	}, nil
}

// Activate opens the board for writes.
func (w *Whiteboard) Activate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != idle {
		return errs.Usage("whiteboard already used by a workflow")
	}
	w.state = active
	return nil
}

// Set records a value for field. The value may be a deferred result.
func (w *Whiteboard) Set(field string, value any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case idle:
		return &errs.WhiteboardViolation{Field: field, Reason: "workflow is not entered"}
	case sealed, frozen:
		return &errs.WhiteboardViolation{Field: field, Reason: "workflow is closed"}
	}
	idx, ok := w.fields[field]
	if !ok {
		return &errs.WhiteboardViolation{Field: field, Reason: "no such field"}
	}
	if _, written := w.staged[field]; written {
		return &errs.WhiteboardViolation{Field: field, Reason: "already written"}
	}

	if l, ok := value.(op.Lazy); ok && op.Empty(l) {
		return &errs.WhiteboardViolation{Field: field, Reason: "empty deferred value"}
	}
	ft := w.target.Field(idx).Type()
	if vt := op.TypeOf(value); vt != nil && !assignable(vt, ft) {
		return &errs.WhiteboardViolation{Field: field, Reason: fmt.Sprintf("cannot assign %s to %s", vt, ft)}
	}

	w.staged[field] = value
	w.order = append(w.order, field)
	return nil
}

// Get returns the staged value of field, which may still be deferred.
func (w *Whiteboard) Get(field string) (any, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.staged[field]
	return v, ok
}

// Fields returns the written field names in write order.
func (w *Whiteboard) Fields() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.order...)
}

// Known returns every writable field name, sorted.
func (w *Whiteboard) Known() []string {
	names := make([]string, 0, len(w.fields))
	for n := range w.fields {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Commit resolves every staged value and assigns them to the struct. Nothing
// is assigned when any value fails to resolve.
func (w *Whiteboard) Commit(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != active && w.state != sealed {
		return errs.Usage("whiteboard can only be committed before it is frozen")
	}

	resolved := make(map[string]reflect.Value, len(w.staged))
	for _, field := range w.order {
		v := w.staged[field]
		if l, ok := v.(op.Lazy); ok {
			var err error
			if v, err = op.Force(ctx, l); err != nil {
				return fmt.Errorf("resolving whiteboard field %s: %w", field, err)
			}
		}
		ft := w.target.Field(w.fields[field]).Type()
		rv, err := convert(v, ft)
		if err != nil {
			return &errs.WhiteboardViolation{Field: field, Reason: err.Error()}
		}
		resolved[field] = rv
	}

	for field, rv := range resolved {
		w.target.Field(w.fields[field]).Set(rv)
	}
	w.committed = true
	return nil
}

// Seal rejects every later write while keeping the staged values
// committable. The owning workflow seals the board as soon as it starts
// closing.
func (w *Whiteboard) Seal() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == active {
		w.state = sealed
	}
}

// Freeze rejects every later write and commit.
func (w *Whiteboard) Freeze() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = frozen
}

// Committed reports whether the values were written into the struct.
func (w *Whiteboard) Committed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.committed
}

// Frozen reports whether the board rejects writes for good.
func (w *Whiteboard) Frozen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == frozen
}

// Record returns the wrapped struct pointer.
func (w *Whiteboard) Record() any {
	return w.target.Addr().Interface()
}

func assignable(from, to reflect.Type) bool {
	return from.AssignableTo(to) || (to.Kind() == reflect.Interface && from.Implements(to))
}

func convert(v any, to reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(to), nil
	}
	rv := reflect.ValueOf(v)
	if assignable(rv.Type(), to) {
		return rv, nil
	}
	return reflect.Value{}, fmt.Errorf("cannot assign %s to %s", rv.Type(), to)
}
