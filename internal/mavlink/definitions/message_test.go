package definitions

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-test/deep"
)

// parseString runs the parser over an inline dialect document.
func parseString(t *testing.T, content string) ([]targetedMessage, error) {
	t.Helper()
	p := newParser()
	err := p.parse(strings.NewReader(content), "")
	return p.targeted, err
}

func TestParseContent(t *testing.T) {
	targeted, err := parseString(t, `
		<mavlink>
			<message id="1" name="msg1">
				<field type="uint8_t" name="something_else">Something else</field>
				<field type="uint8_t" name="target_system">Target system ID</field>
				<field type="uint8_t" name="target_component">Target component ID</field>
			</message>
			<message id="2" name="msg2">
				<field type="uint8_t" name="target_system">Target system ID</field>
				<field type="uint8_t" name="something_else">Something else</field>
			</message>
		</mavlink>`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	want := []targetedMessage{
		{id: 1, offsets: Offsets{SystemID: 1, ComponentID: 2}},
		{id: 2, offsets: Offsets{SystemID: 0, ComponentID: -1}},
	}
	if diff := deep.Equal(targeted, want); diff != nil {
		t.Error(diff)
	}
}

func TestParseOffsets(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want Offsets
	}{
		{
			name: "targets first",
			xml: `<message id="1">
				<field type="uint8_t" name="target_system">s</field>
				<field type="uint8_t" name="target_component">c</field>
				<field type="uint8_t" name="something_else">x</field>
			</message>`,
			want: Offsets{SystemID: 0, ComponentID: 1},
		},
		{
			name: "no component field",
			xml: `<message id="1">
				<field type="uint8_t" name="target_system">s</field>
				<field type="uint8_t" name="something_else">x</field>
			</message>`,
			want: Offsets{SystemID: 0, ComponentID: -1},
		},
		{
			name: "extension fields keep declaration order",
			xml: `<message id="1">
				<field type="uint8_t" name="target_system">s</field>
				<field type="uint8_t" name="target_component">c</field>
				<field type="uint8_t" name="something_else">x</field>
				<extensions/>
				<field type="uint8_t" name="extension1">e1</field>
				<field type="uint8_t" name="extension2">e2</field>
			</message>`,
			want: Offsets{SystemID: 0, ComponentID: 1},
		},
		{
			name: "targets after other fields",
			xml: `<message id="1">
				<field type="uint8_t" name="something_else">x</field>
				<field type="uint8_t" name="target_system">s</field>
				<field type="uint8_t" name="target_component">c</field>
			</message>`,
			want: Offsets{SystemID: 1, ComponentID: 2},
		},
		{
			name: "bigger fields sort before targets",
			xml: `<message id="1">
				<field type="uint8_t" name="target_system">s</field>
				<field type="uint8_t" name="target_component">c</field>
				<field type="uint16_t" name="something_else">x</field>
			</message>`,
			want: Offsets{SystemID: 2, ComponentID: 3},
		},
		{
			name: "arrays count their full size",
			xml: `<message id="1">
				<field type="uint8_t[3]" name="something">a</field>
				<field type="uint8_t[2]" name="something1">b</field>
				<field type="uint16_t" name="something_else">x</field>
				<field type="uint8_t" name="target_system">s</field>
				<field type="uint8_t" name="target_component">c</field>
			</message>`,
			want: Offsets{SystemID: 7, ComponentID: 8},
		},
		{
			name: "extensions are not reordered",
			xml: `<message id="1">
				<field type="uint8_t[3]" name="something">a</field>
				<field type="uint8_t[2]" name="something1">b</field>
				<field type="uint16_t" name="something_else">x</field>
				<field type="uint8_t" name="target_system">s</field>
				<field type="uint8_t" name="target_component">c</field>
				<extensions/>
				<field type="uint16_t" name="extension1">e1</field>
				<field type="uint16_t" name="extension2">e2</field>
			</message>`,
			want: Offsets{SystemID: 7, ComponentID: 8},
		},
		{
			name: "equal sizes keep declaration order",
			xml: `<message id="1">
				<field type="uint32_t" name="a">a</field>
				<field type="float" name="b">b</field>
				<field type="int32_t" name="c">c</field>
				<field type="uint8_t" name="target_system">s</field>
			</message>`,
			want: Offsets{SystemID: 12, ComponentID: -1},
		},
		{
			name: "mavlink version alias is one byte",
			xml: `<message id="1">
				<field type="uint8_t_mavlink_version" name="mavlink_version">v</field>
				<field type="uint8_t" name="target_system">s</field>
			</message>`,
			want: Offsets{SystemID: 1, ComponentID: -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			targeted, err := parseString(t, "<mavlink>"+tt.xml+"</mavlink>")
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if len(targeted) != 1 {
				t.Fatalf("got %d targeted messages, want 1", len(targeted))
			}
			if targeted[0].offsets != tt.want {
				t.Errorf("offsets = %+v, want %+v", targeted[0].offsets, tt.want)
			}
		})
	}
}

// Reordering depends only on field sizes and declaration order, so permuting
// same-size fields around the targets must not move the target offsets.
func TestParseOffsetsInvariantUnderSameSizePermutation(t *testing.T) {
	variants := []string{
		`<message id="1">
			<field type="uint16_t" name="a">a</field>
			<field type="uint16_t" name="b">b</field>
			<field type="uint8_t" name="target_system">s</field>
		</message>`,
		`<message id="1">
			<field type="uint16_t" name="b">b</field>
			<field type="uint16_t" name="a">a</field>
			<field type="uint8_t" name="target_system">s</field>
		</message>`,
	}
	want := Offsets{SystemID: 4, ComponentID: -1}

	for i, xml := range variants {
		targeted, err := parseString(t, "<mavlink>"+xml+"</mavlink>")
		if err != nil {
			t.Fatalf("variant %d: parse failed: %v", i, err)
		}
		if targeted[0].offsets != want {
			t.Errorf("variant %d: offsets = %+v, want %+v", i, targeted[0].offsets, want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want error
	}{
		{
			name: "message without id",
			xml: `<message name="msg1">
				<field type="uint8_t" name="target_system">s</field>
			</message>`,
			want: ErrMessageWithoutID,
		},
		{
			name: "invalid message id",
			xml: `<message id="invalid" name="msg1">
				<field type="uint8_t" name="target_system">s</field>
			</message>`,
			want: ErrInvalidMessageID,
		},
		{
			name: "field without name",
			xml: `<message id="1">
				<field type="uint8_t" name="target_system">s</field>
				<field type="uint8_t">c</field>
			</message>`,
			want: ErrFieldWithoutName,
		},
		{
			name: "field without type",
			xml: `<message id="1">
				<field type="uint8_t" name="target_system">s</field>
				<field name="target_component">c</field>
			</message>`,
			want: ErrFieldWithoutType,
		},
		{
			name: "unknown type",
			xml: `<message id="1">
				<field type="uint8" name="target_system">s</field>
			</message>`,
			want: ErrUnknownType,
		},
		{
			name: "malformed array size",
			xml: `<message id="1">
				<field type="uint8_t[" name="target_system">s</field>
			</message>`,
			want: ErrMalformedArraySize,
		},
		{
			name: "unparsable array size",
			xml: `<message id="1">
				<field type="uint8_t[abc]" name="x">x</field>
			</message>`,
			want: ErrFailedToParseArraySize,
		},
		{
			name: "zero array size",
			xml: `<message id="1">
				<field type="uint8_t[0]" name="x">x</field>
			</message>`,
			want: ErrZeroArraySize,
		},
		{
			name: "target field not u8",
			xml: `<message id="1">
				<field type="uint8_t" name="target_system">s</field>
				<field type="uint16_t" name="target_component">c</field>
			</message>`,
			want: ErrTargetFieldNotU8,
		},
		{
			name: "target field not single value",
			xml: `<message id="1">
				<field type="uint8_t[2]" name="target_system">s</field>
				<field type="uint8_t" name="target_component">c</field>
			</message>`,
			want: ErrTargetFieldNotSingleValue,
		},
		{
			name: "component without system",
			xml: `<message id="1">
				<field type="uint8_t" name="target_component">c</field>
				<field type="uint8_t" name="something_else">x</field>
			</message>`,
			want: ErrMissingTargetSystem,
		},
		{
			name: "multiple extensions markers",
			xml: `<message id="1">
				<field type="uint8_t" name="target_system">s</field>
				<extensions/>
				<field type="uint8_t" name="extension1">e1</field>
				<extensions/>
				<field type="uint8_t" name="extension2">e2</field>
			</message>`,
			want: ErrMultipleExtensionsFields,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseString(t, "<mavlink>"+tt.xml+"</mavlink>")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseUnexpectedEOF(t *testing.T) {
	_, err := parseString(t, `<mavlink><message id="1">
		<field type="uint8_t" name="target_system">s</field>`)
	if !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("err = %v, want ErrUnexpectedEOF", err)
	}
}

func TestParseUntargetedMessageOmitted(t *testing.T) {
	targeted, err := parseString(t, `<mavlink>
		<message id="5">
			<field type="uint8_t" name="something_else">x</field>
		</message>
	</mavlink>`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(targeted) != 0 {
		t.Errorf("got %d targeted messages, want 0", len(targeted))
	}
}

func TestParseFieldType(t *testing.T) {
	kind, multiplicity, err := parseFieldType("uint8_t[3]")
	if err != nil {
		t.Fatalf("parseFieldType failed: %v", err)
	}
	if kind != kindU8 || multiplicity != 3 {
		t.Errorf("got (%v, %d), want (kindU8, 3)", kind, multiplicity)
	}
}

func TestMessageFieldSize(t *testing.T) {
	field := messageField{name: "x", kind: kindU16, multiplicity: 3}
	if field.size() != 6 {
		t.Errorf("size = %d, want 6", field.size())
	}
}
