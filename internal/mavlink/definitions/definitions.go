// Package definitions loads MAVLink XML dialect files and computes, for every
// targeted message, the byte offsets of the target_system and target_component
// fields inside the reordered payload. The resulting table is all the router
// needs from a dialect; field values, units and enums are ignored.
package definitions

import (
	"errors"
	"fmt"
)

// Errors reported while loading a dialect. Loading is strict: any of these
// aborts startup.
var (
	ErrFileDoesNotExist           = errors.New("definition file does not exist")
	ErrNotAFile                   = errors.New("definition path is not a file")
	ErrMessageWithoutID           = errors.New("message definition has no id")
	ErrInvalidMessageID           = errors.New("message definition has an invalid id")
	ErrMultipleMessagesWithSameID = errors.New("multiple targeted messages share an id")
	ErrFieldWithoutName           = errors.New("field definition has no name")
	ErrFieldWithoutType           = errors.New("field definition has no type")
	ErrUnknownType                = errors.New("unknown field type")
	ErrMalformedArraySize         = errors.New("field has a malformed array size")
	ErrFailedToParseArraySize     = errors.New("failed to parse field array size")
	ErrZeroArraySize              = errors.New("field has a zero array size")
	ErrMultipleExtensionsFields   = errors.New("message has multiple extensions markers")
	ErrTargetFieldNotU8           = errors.New("target field is not a uint8_t")
	ErrTargetFieldNotSingleValue  = errors.New("target field is not a single value")
	ErrMissingTargetSystem        = errors.New("message has target_component but no target_system")
	ErrUnexpectedEOF              = errors.New("message definition has no closing tag")
)

// Offsets locates the targeting fields inside a reordered payload.
// ComponentID is -1 when the message declares no target_component field.
type Offsets struct {
	SystemID    int
	ComponentID int
}

// HasComponentID reports whether the message declares a target_component
// field.
func (o Offsets) HasComponentID() bool {
	return o.ComponentID >= 0
}

// Table maps a message id to the targeting offsets of that message. Messages
// absent from the table carry no target and are routed as full broadcast.
type Table map[uint32]Offsets

// targetedMessage is one message that declares targeting fields.
type targetedMessage struct {
	id      uint32
	offsets Offsets
}

// Load parses the dialect rooted at path, following <include> elements
// recursively, and returns the offset table.
func Load(path string) (Table, error) {
	p := newParser()
	if err := p.parseFile(path); err != nil {
		return nil, err
	}

	table := make(Table, len(p.targeted))
	for _, m := range p.targeted {
		if _, ok := table[m.id]; ok {
			return nil, fmt.Errorf("message id %d: %w", m.id, ErrMultipleMessagesWithSameID)
		}
		table[m.id] = m.offsets
	}
	return table, nil
}
