package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"github.com/go-playground/validator/v10"
)

// coerceScalar converts a decoded JSON value to the target field type.
// Bodies are decoded with json.Number, so numerics arrive as Number. A value
// of the wrong shape is a type error, never a silent conversion.
func coerceScalar(raw any, target reflect.Type) (any, error) {
	switch target.Kind() {
	case reflect.String:
		s, ok := raw.(string)
		if !ok {
			return nil, errInvalidType
		}
		return s, nil

	case reflect.Bool:
		b, ok := raw.(bool)
		if !ok {
			return nil, errInvalidType
		}
		return b, nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := coerceInt(raw)
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(n).Convert(target).Interface(), nil

	case reflect.Float32, reflect.Float64:
		f, err := coerceFloat(raw)
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(f).Convert(target).Interface(), nil

	default:
		return nil, errInvalidType
	}
}

var errInvalidType = fmt.Errorf("invalid data type")

func coerceInt(raw any) (int64, error) {
	switch v := raw.(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, errInvalidType
		}
		return n, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, errInvalidType
		}
		return int64(v), nil
	default:
		return 0, errInvalidType
	}
}

func coerceFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, errInvalidType
		}
		return f, nil
	case float64:
		return v, nil
	default:
		return 0, errInvalidType
	}
}

// coerceID accepts the identifier forms a payload may carry for a record
// reference: a JSON number or a numeric string.
func coerceID(raw any) (int64, bool) {
	switch v := raw.(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	case string:
		var n int64
		_, err := fmt.Sscanf(v, "%d", &n)
		return n, err == nil
	default:
		return 0, false
	}
}

// setField assigns a value to a struct field by index on a Record.
func setField(rec Record, index int, value any) {
	fv := reflect.ValueOf(rec).Elem().Field(index)
	if value == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return
	}
	fv.Set(reflect.ValueOf(value))
}

// setFieldByName assigns a value to a named struct field on a Record.
func setFieldByName(rec Record, goName string, value any) error {
	fv := reflect.ValueOf(rec).Elem().FieldByName(goName)
	if !fv.IsValid() {
		return fmt.Errorf("no field %s on %T", goName, rec)
	}
	rv := reflect.ValueOf(value)
	if !rv.Type().AssignableTo(fv.Type()) {
		if rv.Type().ConvertibleTo(fv.Type()) {
			rv = rv.Convert(fv.Type())
		} else {
			return fmt.Errorf("cannot assign %T to field %s of %T", value, goName, rec)
		}
	}
	fv.Set(rv)
	return nil
}

// fieldValue reads a struct field by index from a Record.
func fieldValue(rec Record, index int) any {
	return reflect.ValueOf(rec).Elem().Field(index).Interface()
}

// setRecordSlice assigns a []Record to a slice-of-pointers struct field,
// converting each element to the field's concrete element type.
func setRecordSlice(rec Record, index int, members []Record) {
	fv := reflect.ValueOf(rec).Elem().Field(index)
	slice := reflect.MakeSlice(fv.Type(), 0, len(members))
	for _, m := range members {
		slice = reflect.Append(slice, reflect.ValueOf(m))
	}
	fv.Set(slice)
}

// replaceSliceField sets a named slice-of-pointers field to the given
// members, converting each to the field's concrete element type.
func replaceSliceField(rec Record, goField string, members []Record) error {
	fv := reflect.ValueOf(rec).Elem().FieldByName(goField)
	if !fv.IsValid() || fv.Kind() != reflect.Slice {
		return fmt.Errorf("no slice field %s on %T", goField, rec)
	}
	slice := reflect.MakeSlice(fv.Type(), 0, len(members))
	for _, m := range members {
		mv := reflect.ValueOf(m)
		if !mv.Type().AssignableTo(fv.Type().Elem()) {
			return fmt.Errorf("cannot place %T in field %s of %T", m, goField, rec)
		}
		slice = reflect.Append(slice, mv)
	}
	fv.Set(slice)
	return nil
}

// ruleMessage renders one failed validation rule as a client-facing message.
func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return msgRequired
	case "email":
		return "Invalid email address."
	case "min":
		return fmt.Sprintf("Must be at least %s.", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s.", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s.", fe.Param())
	default:
		return fmt.Sprintf("Failed validation rule: %s.", fe.Tag())
	}
}
