package alpine

import (
	"reflect"

	"github.com/google/uuid"
)

const (
	spanKeyEventID   = "event.id"
	spanKeyEventType = "event.type"
	spanKeyEventBus  = "event.bus"
	spanKeyListener  = "listener.name"
)

// NewID generates a new unique ID
func NewID() string {
	return uuid.NewString()
}

// typeName returns the dynamic type name of v.
func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}

func typeString(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// isNil reports whether v is nil or a typed nil pointer, map, slice, func,
// channel or interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
