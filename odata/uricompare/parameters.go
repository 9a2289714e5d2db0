package uricompare

import (
	"fmt"

	"github.com/wbrown/janus-odata/odata"
	"github.com/wbrown/janus-odata/odata/query"
)

// SlotKey identifies a parameterizable literal of the reference AST: the
// Constant node, or the Request / ExpandItem owning a skip, top or skip
// token value. Keys compare by pointer identity of the owner.
type SlotKey = query.Position

// Parameter is one literal captured during a successful comparison. Key
// points into the reference AST, Value comes from the candidate and Type is
// the declared type at that position.
type Parameter struct {
	Key   SlotKey
	Value interface{}
	Type  odata.TypeRef
}

// Parameters accumulates parameters in traversal order. Each comparison
// owns its own accumulator; it is never shared between calls.
type Parameters struct {
	items []Parameter
}

func (p *Parameters) add(key SlotKey, value interface{}, t odata.TypeRef) {
	p.items = append(p.items, Parameter{Key: key, Value: value, Type: t})
}

// Len returns the number of captured parameters
func (p *Parameters) Len() int {
	if p == nil {
		return 0
	}
	return len(p.items)
}

// Items returns the captured parameters in traversal order
func (p *Parameters) Items() []Parameter {
	if p == nil {
		return nil
	}
	return p.items
}

// Values returns the captured values in traversal order
func (p *Parameters) Values() []interface{} {
	if p == nil {
		return nil
	}
	values := make([]interface{}, len(p.items))
	for i, item := range p.items {
		values[i] = item.Value
	}
	return values
}

// Slot is a named, typed placeholder registered for one literal position of
// a compiled AST. Slots never change once registered.
type Slot struct {
	Index int
	Name  string
	Key   SlotKey
	Type  odata.TypeRef
}

// Binding is a value bound to a slot
type Binding struct {
	Slot  Slot
	Value interface{}
}

// RegisterSlots assigns a slot to every parameterizable literal of req, in
// the order the comparer visits them. Slot names are p0, p1, ...
func RegisterSlots(req *query.Request) []Slot {
	params, ok := Compare(req, req)
	if !ok {
		// Compare is reflexive for every AST it can traverse
		panic(fmt.Sprintf("uricompare: request %s is not equivalent to itself", req))
	}
	slots := make([]Slot, params.Len())
	for i, p := range params.Items() {
		slots[i] = Slot{
			Index: i,
			Name:  fmt.Sprintf("p%d", i),
			Key:   p.Key,
			Type:  p.Type,
		}
	}
	return slots
}

// Bind pairs the n-th parameter with the n-th slot and coerces each value to
// the slot's declared type. A value that cannot be coerced fails the whole
// bind with a *BindingError.
func (p *Parameters) Bind(slots []Slot) ([]Binding, error) {
	items := p.Items()
	if len(items) != len(slots) {
		return nil, &BindingError{
			Err: fmt.Errorf("%d parameters for %d slots", len(items), len(slots)),
		}
	}

	bindings := make([]Binding, len(slots))
	for i, slot := range slots {
		item := items[i]
		if item.Key != slot.Key {
			return nil, &BindingError{Slot: slot, Value: item.Value, Err: fmt.Errorf("parameter %d belongs to a different position", i)}
		}
		v, err := odata.Coerce(item.Value, slot.Type)
		if err != nil {
			return nil, &BindingError{Slot: slot, Value: item.Value, Err: err}
		}
		bindings[i] = Binding{Slot: slot, Value: v}
	}
	return bindings, nil
}
