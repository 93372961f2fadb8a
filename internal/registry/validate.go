package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/vk/lazyflow/internal/ctxlog"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Validate checks that every registered function can move its values through
// channels: each parameter and the result must have a cty equivalent, or be
// an interface, which travels as a dynamic value.
func (r *Registry) Validate(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	var problems []string

	for _, id := range r.Identities() {
		f, _ := r.Lookup(id)
		for i, p := range f.Params() {
			if err := describable(p); err != nil {
				problems = append(problems, fmt.Sprintf("function '%s': parameter %d (%s): %v", id, i, p, err))
			}
		}
		if out := f.OutputType(); out != nil {
			if err := describable(out); err != nil {
				problems = append(problems, fmt.Sprintf("function '%s': result (%s): %v", id, out, err))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	logger.Debug("Registry validated.", "functions", r.Len())
	return nil
}

func describable(t reflect.Type) error {
	switch t.Kind() {
	case reflect.Interface:
		return nil
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return fmt.Errorf("kind %s cannot cross a channel", t.Kind())
	}
	_, err := gocty.ImpliedType(reflect.Zero(t).Interface())
	return err
}
