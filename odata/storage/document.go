package storage

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/wbrown/janus-odata/odata"
)

// EncodeDocument serializes an entity, including any embedded related
// entities, as a JSON document
func EncodeDocument(e odata.Entity) ([]byte, error) {
	data, err := json.Marshal(map[string]interface{}(e))
	if err != nil {
		return nil, fmt.Errorf("failed to encode entity: %w", err)
	}
	return data, nil
}

// DecodeDocument parses a document written by EncodeDocument back into
// typed values, using t to restore property types and related entities
func DecodeDocument(t *odata.EntityType, data []byte) (odata.Entity, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s document: %w", t.QualifiedName(), err)
	}
	return decodeEntity(t, raw)
}

func decodeEntity(t *odata.EntityType, raw map[string]interface{}) (odata.Entity, error) {
	out := make(odata.Entity, len(raw))
	for name, v := range raw {
		if p, ok := t.Property(name); ok {
			typed, err := decodeValue(v, p.Type)
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", t.Name, name, err)
			}
			out[name] = typed
			continue
		}

		if nav, ok := t.Navigation(name); ok {
			related, err := decodeNavigation(nav, v)
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", t.Name, name, err)
			}
			out[name] = related
			continue
		}

		if !t.Open {
			return nil, fmt.Errorf("%s has no property %s", t.QualifiedName(), name)
		}
		out[name] = dynamicValue(v)
	}
	return out, nil
}

func decodeNavigation(nav *odata.NavigationProperty, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if !nav.Collection {
		obj, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("expected an object, got %T", v)
		}
		return decodeEntity(nav.Target, obj)
	}

	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected an array, got %T", v)
	}
	out := make([]odata.Entity, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("item %d: expected an object, got %T", i, item)
		}
		related, err := decodeEntity(nav.Target, obj)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out[i] = related
	}
	return out, nil
}

// decodeValue restores a primitive value to the runtime type of t
func decodeValue(v interface{}, t odata.TypeRef) (interface{}, error) {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			v = i
		} else if f, err := n.Float64(); err == nil {
			v = f
		} else {
			return nil, fmt.Errorf("invalid number %s", n)
		}
	}
	return odata.Coerce(v, t)
}

// dynamicValue converts a dynamic property value of an open type. Numbers
// become int64 when integral and float64 otherwise.
func dynamicValue(v interface{}) interface{} {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
