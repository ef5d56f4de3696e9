package lifeline

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// payloadTag is the struct tag naming the variable a field binds to: `prompt:"name"` or `prompt:"name,omitempty"`.
const payloadTag = "prompt"

type payloadField struct {
	index     int
	name      string
	omitEmpty bool
}

type payloadSchema struct {
	fields []payloadField
}

var payloadCache sync.Map // reflect.Type -> *payloadSchema

// VarsFromStruct builds a variable bag from a struct (or pointer to struct) whose fields carry prompt tags.
// Pointer and interface fields are followed to their value at any depth. A nil on the way
// leaves the field out of the bag, as does a zero value in a field tagged omitempty.
// Fields of string, bool, integer, float or string-slice kind are accepted, including named types.
func VarsFromStruct(payload any) (Vars, error) {
	if payload == nil {
		return nil, ErrInvalidPayload
	}
	v := reflect.ValueOf(payload)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, ErrInvalidPayload
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, ErrInvalidPayload
	}
	schema, err := schemaFor(v.Type())
	if err != nil {
		return nil, err
	}
	vars := make(Vars, len(schema.fields))
fields:
	for _, fi := range schema.fields {
		fv := v.Field(fi.index)
		for fv.Kind() == reflect.Pointer || fv.Kind() == reflect.Interface {
			if fv.IsNil() {
				continue fields
			}
			fv = fv.Elem()
		}
		if fi.omitEmpty && fv.IsZero() {
			continue
		}
		val, err := fieldValue(fv)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", fi.name, err)
		}
		vars[fi.name] = val
	}
	return vars, nil
}

func fieldValue(fv reflect.Value) (Value, error) {
	if fv.CanInterface() {
		if v, ok := fv.Interface().(Value); ok {
			return cloneValue(v), nil
		}
	}
	switch fv.Kind() {
	case reflect.String:
		return Text(fv.String()), nil
	case reflect.Bool:
		return Bool(fv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Number(float64(fv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Number(float64(fv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return Number(fv.Float()), nil
	case reflect.Slice:
		if fv.Type().Elem().Kind() == reflect.String {
			out := make(List, fv.Len())
			for i := range out {
				out[i] = fv.Index(i).String()
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedValue, fv.Type())
}

func schemaFor(typ reflect.Type) (*payloadSchema, error) {
	if cached, ok := payloadCache.Load(typ); ok {
		return cached.(*payloadSchema), nil
	}
	schema := &payloadSchema{}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get(payloadTag)
		if tag == "" || tag == "-" || !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			continue
		}
		schema.fields = append(schema.fields, payloadField{index: i, name: name, omitEmpty: opts == "omitempty"})
	}
	if len(schema.fields) == 0 {
		return nil, fmt.Errorf("%w: %s has no prompt tags", ErrInvalidPayload, typ)
	}
	payloadCache.Store(typ, schema)
	return schema, nil
}

// RenderStruct renders template id with variables taken from a tagged struct. See VarsFromStruct.
func (e *Engine) RenderStruct(id string, payload any) (string, error) {
	vars, err := VarsFromStruct(payload)
	if err != nil {
		return "", err
	}
	return e.Render(id, vars)
}
