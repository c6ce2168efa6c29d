package types

import (
	"regexp"
	"strconv"
	"strings"
)

var decimalPattern = regexp.MustCompile(`^decimal\((\d+),\s*(\d+)\)$`)
var fixedPattern = regexp.MustCompile(`^fixed\((\d+)\)$`)

var primitiveNames = map[string]Kind{
	"boolean": Boolean, "int": Int32, "long": Int64, "float": Float32,
	"double": Float64, "string": String, "binary": Binary, "date": Date,
	"time": Time, "timestamp": Timestamp, "timestamptz": TimestampTz, "uuid": UUID,
}

// Parse parses a type string of the form produced by DataType.String() back
// into a DataType: primitive names, "decimal(p,s)", "fixed(n)",
// "list<elem>", "map<key,value>" and "struct<name:type,...>".
func Parse(s string) (DataType, error) {
	s = strings.TrimSpace(s)

	if kind, ok := primitiveNames[s]; ok {
		return NewPrimitive(kind), nil
	}
	if m := decimalPattern.FindStringSubmatch(s); m != nil {
		precision, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, errorsNew(ErrInvalidDecimalPrecision, "invalid decimal precision", m[1])
		}
		scale, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, errorsNew(ErrInvalidDecimalScale, "invalid decimal scale", m[2])
		}
		d := NewDecimal(precision, scale)
		return d, d.Validate()
	}
	if m := fixedPattern.FindStringSubmatch(s); m != nil {
		length, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, errorsNew(ErrInvalidFixedLength, "invalid fixed length", m[1])
		}
		f := NewFixed(length)
		return f, f.Validate()
	}
	if strings.HasPrefix(s, "list<") && strings.HasSuffix(s, ">") {
		return parseList(s)
	}
	if strings.HasPrefix(s, "map<") && strings.HasSuffix(s, ">") {
		return parseMap(s)
	}
	if strings.HasPrefix(s, "struct<") && strings.HasSuffix(s, ">") {
		return parseStruct(s)
	}
	return nil, errorsNew(ErrUnsupportedType, "unsupported type string", s)
}

func parseList(s string) (DataType, error) {
	inner := strings.TrimSpace(s[len("list<") : len(s)-1])
	if inner == "" {
		return nil, errorsNew(ErrInvalidListElement, "list element type cannot be empty", s)
	}
	elem, err := Parse(inner)
	if err != nil {
		return nil, errorsNew(ErrInvalidListElement, "invalid list element type", inner)
	}
	return NewList(elem, true), nil
}

func parseMap(s string) (DataType, error) {
	inner := strings.TrimSpace(s[len("map<") : len(s)-1])
	idx := topLevelComma(inner)
	if idx == -1 {
		return nil, errorsNew(ErrTypeValidationFailed, "map must have key and value types separated by comma", s)
	}
	keyStr := strings.TrimSpace(inner[:idx])
	valStr := strings.TrimSpace(inner[idx+1:])
	if keyStr == "" {
		return nil, errorsNew(ErrInvalidMapKeyType, "map key type cannot be empty", s)
	}
	if valStr == "" {
		return nil, errorsNew(ErrInvalidMapValueType, "map value type cannot be empty", s)
	}
	key, err := Parse(keyStr)
	if err != nil {
		return nil, errorsNew(ErrInvalidMapKeyType, "invalid map key type", keyStr)
	}
	val, err := Parse(valStr)
	if err != nil {
		return nil, errorsNew(ErrInvalidMapValueType, "invalid map value type", valStr)
	}
	return NewMap(key, val, true), nil
}

func parseStruct(s string) (DataType, error) {
	inner := strings.TrimSpace(s[len("struct<") : len(s)-1])
	if inner == "" {
		return nil, errorsNew(ErrInvalidStructField, "struct must have at least one field", s)
	}
	parts := splitTopLevelCommas(inner)
	fields := make([]Field, 0, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		colon := strings.Index(part, ":")
		if colon == -1 {
			return nil, errorsNew(ErrInvalidStructField, "struct field missing name:type separator", part)
		}
		name := strings.TrimSpace(part[:colon])
		typeStr := strings.TrimSpace(part[colon+1:])
		if name == "" {
			return nil, errorsNew(ErrInvalidStructField, "struct field name cannot be empty", "")
		}
		fieldType, err := Parse(typeStr)
		if err != nil {
			return nil, errorsNew(ErrInvalidStructField, "invalid struct field type", typeStr)
		}
		fields = append(fields, NewField(i+1, name, fieldType, true))
	}
	return NewStruct(fields...), nil
}

// topLevelComma finds the first comma not nested inside <...>.
func topLevelComma(s string) int {
	depth := 0
	for i, r := range s {
		switch r {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func splitTopLevelCommas(s string) []string {
	var result []string
	var cur strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '<':
			depth++
			cur.WriteRune(r)
		case '>':
			depth--
			cur.WriteRune(r)
		case ',':
			if depth == 0 {
				result = append(result, cur.String())
				cur.Reset()
			} else {
				cur.WriteRune(r)
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		result = append(result, cur.String())
	}
	return result
}
