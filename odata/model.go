package odata

import (
	"fmt"
)

// Entity is a single entity instance. Structural properties map to runtime
// values, collection navigations to []Entity and single navigations to Entity.
// Open entity types may carry additional dynamic properties.
type Entity map[string]interface{}

// Model is an EDM schema: entity types and the entity sets exposing them
type Model struct {
	Namespace   string
	EntityTypes []*EntityType
	EntitySets  []*EntitySet

	typesByName map[string]*EntityType
	setsByName  map[string]*EntitySet
}

// EntityType describes the shape of an entity
type EntityType struct {
	ID          ID
	Name        string
	Namespace   string
	Open        bool // Open types allow dynamic properties
	Key         *Property
	Properties  []*Property
	Navigations []*NavigationProperty

	props map[string]*Property
	navs  map[string]*NavigationProperty
}

// Property is a structural property of an entity type
type Property struct {
	ID            ID
	Name          string
	Type          TypeRef
	DeclaringType *EntityType
}

// NavigationProperty links an entity type to another entity type
type NavigationProperty struct {
	ID            ID
	Name          string
	Target        *EntityType
	Collection    bool
	DeclaringType *EntityType
}

// EntitySet is a named, addressable collection of entities
type EntitySet struct {
	ID   ID
	Name string
	Type *EntityType
}

// NewModel creates an empty model in the given namespace
func NewModel(namespace string) *Model {
	return &Model{
		Namespace:   namespace,
		typesByName: make(map[string]*EntityType),
		setsByName:  make(map[string]*EntitySet),
	}
}

// AddEntityType declares a new entity type
func (m *Model) AddEntityType(name string, open bool) *EntityType {
	t := &EntityType{
		Name:      name,
		Namespace: m.Namespace,
		Open:      open,
		props:     make(map[string]*Property),
		navs:      make(map[string]*NavigationProperty),
	}
	t.ID = InternIdentifier("type:" + t.QualifiedName())
	m.EntityTypes = append(m.EntityTypes, t)
	if _, dup := m.typesByName[name]; !dup {
		m.typesByName[name] = t
	}
	return t
}

// AddEntitySet exposes an entity type as a named entity set
func (m *Model) AddEntitySet(name string, t *EntityType) *EntitySet {
	s := &EntitySet{
		ID:   InternIdentifier("set:" + m.Namespace + "." + name),
		Name: name,
		Type: t,
	}
	m.EntitySets = append(m.EntitySets, s)
	if _, dup := m.setsByName[name]; !dup {
		m.setsByName[name] = s
	}
	return s
}

// EntityType looks up an entity type by name
func (m *Model) EntityType(name string) (*EntityType, bool) {
	t, ok := m.typesByName[name]
	return t, ok
}

// EntitySet looks up an entity set by name
func (m *Model) EntitySet(name string) (*EntitySet, bool) {
	s, ok := m.setsByName[name]
	return s, ok
}

// Validate checks the model for structural problems
func (m *Model) Validate() error {
	seenTypes := make(map[string]bool, len(m.EntityTypes))
	known := make(map[*EntityType]bool, len(m.EntityTypes))
	for _, t := range m.EntityTypes {
		if seenTypes[t.Name] {
			return fmt.Errorf("duplicate entity type %s", t.QualifiedName())
		}
		seenTypes[t.Name] = true
		known[t] = true
	}

	for _, t := range m.EntityTypes {
		if t.Key == nil {
			return fmt.Errorf("entity type %s has no key", t.QualifiedName())
		}
		names := make(map[string]bool)
		for _, p := range t.Properties {
			if names[p.Name] {
				return fmt.Errorf("duplicate member %s on %s", p.Name, t.QualifiedName())
			}
			names[p.Name] = true
		}
		for _, n := range t.Navigations {
			if names[n.Name] {
				return fmt.Errorf("duplicate member %s on %s", n.Name, t.QualifiedName())
			}
			names[n.Name] = true
			if !known[n.Target] {
				return fmt.Errorf("navigation %s/%s targets a type outside the model", t.Name, n.Name)
			}
		}
	}

	seenSets := make(map[string]bool, len(m.EntitySets))
	for _, s := range m.EntitySets {
		if seenSets[s.Name] {
			return fmt.Errorf("duplicate entity set %s", s.Name)
		}
		seenSets[s.Name] = true
		if !known[s.Type] {
			return fmt.Errorf("entity set %s exposes a type outside the model", s.Name)
		}
	}
	return nil
}

// QualifiedName returns Namespace.Name
func (t *EntityType) QualifiedName() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// AddKey declares the key property of the entity type
func (t *EntityType) AddKey(name string, typ TypeRef) *Property {
	p := t.AddProperty(name, typ)
	t.Key = p
	return p
}

// AddProperty declares a structural property
func (t *EntityType) AddProperty(name string, typ TypeRef) *Property {
	p := &Property{
		ID:            InternIdentifier("prop:" + t.QualifiedName() + "/" + name),
		Name:          name,
		Type:          typ,
		DeclaringType: t,
	}
	t.Properties = append(t.Properties, p)
	if _, dup := t.props[name]; !dup {
		t.props[name] = p
	}
	return p
}

// AddNavigation declares a navigation property to target
func (t *EntityType) AddNavigation(name string, target *EntityType, collection bool) *NavigationProperty {
	n := &NavigationProperty{
		ID:            InternIdentifier("nav:" + t.QualifiedName() + "/" + name),
		Name:          name,
		Target:        target,
		Collection:    collection,
		DeclaringType: t,
	}
	t.Navigations = append(t.Navigations, n)
	if _, dup := t.navs[name]; !dup {
		t.navs[name] = n
	}
	return n
}

// Property looks up a structural property by name
func (t *EntityType) Property(name string) (*Property, bool) {
	p, ok := t.props[name]
	return p, ok
}

// Navigation looks up a navigation property by name
func (t *EntityType) Navigation(name string) (*NavigationProperty, bool) {
	n, ok := t.navs[name]
	return n, ok
}

// MustProperty is like Property but panics when the property is missing.
// Use only in tests or when building fixed models.
func (t *EntityType) MustProperty(name string) *Property {
	p, ok := t.Property(name)
	if !ok {
		panic(fmt.Sprintf("entity type %s has no property %s", t.QualifiedName(), name))
	}
	return p
}

// MustNavigation is like Navigation but panics when the navigation is missing.
func (t *EntityType) MustNavigation(name string) *NavigationProperty {
	n, ok := t.Navigation(name)
	if !ok {
		panic(fmt.Sprintf("entity type %s has no navigation %s", t.QualifiedName(), name))
	}
	return n
}

// String returns the property name
func (p *Property) String() string {
	return p.Name
}

// String returns the navigation name
func (n *NavigationProperty) String() string {
	return n.Name
}

// Type returns the type reference produced by following the navigation
func (n *NavigationProperty) Type() TypeRef {
	t := EntityRef(n.Target)
	if n.Collection {
		return CollectionOf(t)
	}
	return t
}

// String returns the entity set name
func (s *EntitySet) String() string {
	return s.Name
}
