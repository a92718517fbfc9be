package definitions

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// fieldKind is a MAVLink primitive field type.
type fieldKind int

const (
	kindChar fieldKind = iota
	kindU8
	kindU16
	kindU32
	kindU64
	kindI8
	kindI16
	kindI32
	kindI64
	kindF32
	kindF64
)

var kindNames = map[string]fieldKind{
	"char":     kindChar,
	"uint8_t":  kindU8,
	"uint16_t": kindU16,
	"uint32_t": kindU32,
	"uint64_t": kindU64,
	"int8_t":   kindI8,
	// The generated headers treat this alias as a plain byte.
	"uint8_t_mavlink_version": kindI8,
	"int16_t":                 kindI16,
	"int32_t":                 kindI32,
	"int64_t":                 kindI64,
	"float":                   kindF32,
	"double":                  kindF64,
}

var kindSizes = map[fieldKind]int{
	kindChar: 1,
	kindU8:   1,
	kindU16:  2,
	kindU32:  4,
	kindU64:  8,
	kindI8:   1,
	kindI16:  2,
	kindI32:  4,
	kindI64:  8,
	kindF32:  4,
	kindF64:  8,
}

func (k fieldKind) size() int {
	return kindSizes[k]
}

// parseFieldType splits a type attribute like "uint16_t[4]" into the primitive
// kind and the array multiplicity.
func parseFieldType(s string) (fieldKind, int, error) {
	name := s
	multiplicity := 1
	if i := strings.IndexByte(s, '['); i >= 0 {
		end := strings.IndexByte(s[i:], ']')
		if end < 0 {
			return 0, 0, ErrMalformedArraySize
		}
		n, err := strconv.Atoi(s[i+1 : i+end])
		if err != nil {
			return 0, 0, fmt.Errorf("%q: %w", s, ErrFailedToParseArraySize)
		}
		if n == 0 {
			return 0, 0, ErrZeroArraySize
		}
		name = s[:i]
		multiplicity = n
	}
	kind, ok := kindNames[name]
	if !ok {
		return 0, 0, fmt.Errorf("%q: %w", s, ErrUnknownType)
	}
	return kind, multiplicity, nil
}

// messageField is one <field> of a message.
type messageField struct {
	name         string
	kind         fieldKind
	multiplicity int
}

func (f messageField) size() int {
	return f.kind.size() * f.multiplicity
}

func fieldFromElement(start xml.StartElement) (messageField, error) {
	var name, typ string
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "name":
			name = attr.Value
		case "type":
			typ = attr.Value
		}
	}
	if name == "" {
		return messageField{}, ErrFieldWithoutName
	}
	if typ == "" {
		return messageField{}, ErrFieldWithoutType
	}
	kind, multiplicity, err := parseFieldType(typ)
	if err != nil {
		return messageField{}, err
	}
	return messageField{name: name, kind: kind, multiplicity: multiplicity}, nil
}

// parseMessage consumes the body of one <message> element, up to and including
// its end tag, and computes the targeting offsets. targeted is false when the
// message declares no targeting fields.
func parseMessage(dec *xml.Decoder) (offsets Offsets, targeted bool, err error) {
	var fields []messageField
	extensionsStart := -1

	for {
		tok, err := dec.Token()
		if err != nil {
			return Offsets{}, false, skipErr(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "field":
				field, err := fieldFromElement(t)
				if err != nil {
					return Offsets{}, false, err
				}
				if field.name == "target_system" || field.name == "target_component" {
					if field.kind != kindU8 {
						return Offsets{}, false, ErrTargetFieldNotU8
					}
					if field.multiplicity != 1 {
						return Offsets{}, false, ErrTargetFieldNotSingleValue
					}
					targeted = true
				}
				fields = append(fields, field)
				if err := dec.Skip(); err != nil {
					return Offsets{}, false, skipErr(err)
				}
			case "extensions":
				if extensionsStart >= 0 {
					return Offsets{}, false, ErrMultipleExtensionsFields
				}
				extensionsStart = len(fields)
				if err := dec.Skip(); err != nil {
					return Offsets{}, false, skipErr(err)
				}
			default:
				if err := dec.Skip(); err != nil {
					return Offsets{}, false, skipErr(err)
				}
			}
		case xml.EndElement:
			if t.Name.Local != "message" {
				continue
			}
			if !targeted {
				return Offsets{}, false, nil
			}
			offsets, err := computeOffsets(fields, extensionsStart)
			return offsets, err == nil, err
		}
	}
}

// skipErr maps the end of input inside a message to ErrUnexpectedEOF. The XML
// decoder reports an end of input with elements still open as a syntax error.
func skipErr(err error) error {
	var syntaxErr *xml.SyntaxError
	if err == io.EOF || (errors.As(err, &syntaxErr) && syntaxErr.Msg == "unexpected EOF") {
		return ErrUnexpectedEOF
	}
	return err
}

// computeOffsets applies the MAVLink payload reordering and locates the
// targeting fields. Base fields are sorted by descending primitive size with
// declaration order preserved between equal sizes; extension fields keep
// declaration order after all base fields.
func computeOffsets(fields []messageField, extensionsStart int) (Offsets, error) {
	base := fields
	if extensionsStart >= 0 {
		base = fields[:extensionsStart]
	}
	sort.SliceStable(base, func(i, j int) bool {
		return base[i].kind.size() > base[j].kind.size()
	})

	systemID := -1
	componentID := -1
	offset := 0
	for _, field := range fields {
		switch field.name {
		case "target_system":
			systemID = offset
		case "target_component":
			componentID = offset
		}
		offset += field.size()
	}

	if systemID < 0 {
		return Offsets{}, ErrMissingTargetSystem
	}
	return Offsets{SystemID: systemID, ComponentID: componentID}, nil
}
