package graph

import (
	"fmt"
	"maps"
	"reflect"
)

// State is a single snapshot of the shared workflow state: a mapping from
// every schema field name to its current value. The engine never mutates a
// snapshot in place; each merge produces a new one.
type State = map[string]any

// FieldType is the declared semantic type of a schema field. Values are
// checked loosely against it when a node's partial update is merged.
type FieldType int

const (
	// TypeAny admits any value.
	TypeAny FieldType = iota

	// TypeString admits string values.
	TypeString

	// TypeInt admits any integer kind.
	TypeInt

	// TypeFloat admits float32 and float64 values.
	TypeFloat

	// TypeBool admits boolean values.
	TypeBool

	// TypeList admits slice and array values. Required for APPEND fields.
	TypeList

	// TypeMap admits map values.
	TypeMap
)

// String returns the lowercase name of the field type.
func (t FieldType) String() string {
	switch t {
	case TypeAny:
		return "any"
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeList:
		return "list"
	case TypeMap:
		return "map"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Reducer combines the current value of a field with an incoming update
// and returns the merged value.
type Reducer func(current, incoming any) (any, error)

// Field describes one declared state field: its semantic type and how
// updates to it are folded into the previous value.
type Field struct {
	// Type is the declared semantic type, checked at merge time.
	Type FieldType

	// Reducer merges updates. Nil means plain replacement.
	Reducer Reducer

	appendSem bool
}

// MapSchema declares the shape of the shared state: an ordered set of named
// fields, each with a semantic type and an optional reducer. Every field a
// node's output touches must be declared here.
type MapSchema struct {
	fields map[string]Field
	order  []string
}

// NewMapSchema creates an empty schema.
func NewMapSchema() *MapSchema {
	return &MapSchema{fields: make(map[string]Field)}
}

// AddField declares a plain REPLACE field. Re-declaring a field overwrites
// its previous declaration. Returns the schema for chaining.
func (s *MapSchema) AddField(name string, typ FieldType) *MapSchema {
	s.put(name, Field{Type: typ})
	return s
}

// AddAppendField declares an APPEND field: a sequence onto which every
// update (itself a sequence) is concatenated. The field type is TypeList.
func (s *MapSchema) AddAppendField(name string) *MapSchema {
	s.put(name, Field{Type: TypeList, Reducer: AppendReducer, appendSem: true})
	return s
}

// RegisterReducer attaches a custom reducer to a field. The field is
// declared as TypeAny if it does not exist yet.
func (s *MapSchema) RegisterReducer(name string, reducer Reducer) *MapSchema {
	f, ok := s.fields[name]
	if !ok {
		f = Field{Type: TypeAny}
	}
	f.Reducer = reducer
	s.put(name, f)
	return s
}

func (s *MapSchema) put(name string, f Field) {
	if _, ok := s.fields[name]; !ok {
		s.order = append(s.order, name)
	}
	s.fields[name] = f
}

// Fields returns the declared field names in declaration order.
func (s *MapSchema) Fields() []string {
	return append([]string(nil), s.order...)
}

// Lookup returns the declaration for a field name.
func (s *MapSchema) Lookup(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// reduce folds one incoming value for a field into its current value,
// after validating the field exists and the value matches its type.
func (s *MapSchema) reduce(name string, current, incoming any) (any, error) {
	f, ok := s.fields[name]
	if !ok {
		return nil, fmt.Errorf("field %q is not declared in the schema", name)
	}
	if err := checkType(name, f.Type, incoming); err != nil {
		return nil, err
	}
	if f.Reducer == nil {
		return incoming, nil
	}
	merged, err := f.Reducer(current, incoming)
	if err != nil {
		return nil, fmt.Errorf("reduce field %q: %w", name, err)
	}
	return merged, nil
}

// Update merges a single partial update into a state snapshot, field by
// field through each field's reducer, and returns a new snapshot. The
// inputs are left untouched.
func (s *MapSchema) Update(current State, update State) (State, error) {
	result := make(State, len(current)+len(update))
	maps.Copy(result, current)

	for k, v := range update {
		merged, err := s.reduce(k, result[k], v)
		if err != nil {
			return nil, err
		}
		result[k] = merged
	}
	return result, nil
}

// checkType validates a value against a declared field type. Nil values
// are always admitted; they mean "unset".
func checkType(name string, typ FieldType, value any) error {
	if value == nil || typ == TypeAny {
		return nil
	}

	kind := reflect.ValueOf(value).Kind()
	ok := false
	switch typ {
	case TypeString:
		ok = kind == reflect.String
	case TypeInt:
		switch kind {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			ok = true
		}
	case TypeFloat:
		ok = kind == reflect.Float32 || kind == reflect.Float64
	case TypeBool:
		ok = kind == reflect.Bool
	case TypeList:
		ok = kind == reflect.Slice || kind == reflect.Array
	case TypeMap:
		ok = kind == reflect.Map
	}
	if !ok {
		return fmt.Errorf("field %q expects %s, got %T", name, typ, value)
	}
	return nil
}

// ReplaceReducer overwrites the current value with the incoming one. This
// is the behavior of fields declared without a reducer.
func ReplaceReducer(current, incoming any) (any, error) {
	return incoming, nil
}

// AppendReducer concatenates the incoming value onto the current slice.
// A non-slice incoming value is appended as a single element. A nil
// incoming value means unset and leaves the current value untouched. When
// element types differ the result falls back to []any so no contribution
// is lost.
func AppendReducer(current, incoming any) (any, error) {
	if incoming == nil {
		return current, nil
	}
	if current == nil {
		newVal := reflect.ValueOf(incoming)
		if newVal.Kind() == reflect.Slice {
			return incoming, nil
		}
		slice := reflect.MakeSlice(reflect.SliceOf(reflect.TypeOf(incoming)), 0, 1)
		return reflect.Append(slice, newVal).Interface(), nil
	}

	currVal := reflect.ValueOf(current)
	newVal := reflect.ValueOf(incoming)

	if currVal.Kind() != reflect.Slice {
		return nil, fmt.Errorf("current value is %T, not a slice", current)
	}

	if newVal.Kind() == reflect.Slice {
		if currVal.Type().Elem() != newVal.Type().Elem() {
			result := make([]any, 0, currVal.Len()+newVal.Len())
			for i := 0; i < currVal.Len(); i++ {
				result = append(result, currVal.Index(i).Interface())
			}
			for i := 0; i < newVal.Len(); i++ {
				result = append(result, newVal.Index(i).Interface())
			}
			return result, nil
		}
		return reflect.AppendSlice(currVal, newVal).Interface(), nil
	}

	if currVal.Type().Elem() != newVal.Type() {
		result := make([]any, 0, currVal.Len()+1)
		for i := 0; i < currVal.Len(); i++ {
			result = append(result, currVal.Index(i).Interface())
		}
		return append(result, incoming), nil
	}
	return reflect.Append(currVal, newVal).Interface(), nil
}

// cloneState returns a shallow copy of a state snapshot.
func cloneState(s State) State {
	result := make(State, len(s))
	maps.Copy(result, s)
	return result
}
