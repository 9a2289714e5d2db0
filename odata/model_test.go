package odata

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelLookup(t *testing.T) {
	m := NewModel("Test.Shop")
	product := m.AddEntityType("Product", false)
	id := product.AddKey("Id", Int32)
	price := product.AddProperty("Price", Double)
	category := m.AddEntityType("Category", true)
	category.AddKey("Id", Int32)
	nav := product.AddNavigation("Category", category, false)
	set := m.AddEntitySet("Products", product)
	require.NoError(t, m.Validate())

	assert.Equal(t, "Test.Shop.Product", product.QualifiedName())
	assert.Same(t, id, product.Key)

	p, ok := product.Property("Price")
	require.True(t, ok)
	assert.Same(t, price, p)
	assert.Same(t, product, p.DeclaringType)

	n, ok := product.Navigation("Category")
	require.True(t, ok)
	assert.Same(t, nav, n)
	assert.Equal(t, EntityRef(category), n.Type())

	found, ok := m.EntitySet("Products")
	require.True(t, ok)
	assert.Same(t, set, found)

	_, ok = m.EntitySet("Orders")
	assert.False(t, ok)

	// IDs are stable per qualified name
	again := NewModel("Test.Shop").AddEntityType("Product", false)
	assert.Equal(t, product.ID, again.ID)
	assert.NotEqual(t, product.ID, category.ID)
}

func TestModelValidate(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		m := NewModel("T")
		m.AddEntityType("Keyless", false)
		assert.Error(t, m.Validate())
	})

	t.Run("duplicate member", func(t *testing.T) {
		m := NewModel("T")
		e := m.AddEntityType("E", false)
		e.AddKey("Id", Int32)
		e.AddNavigation("Id", e, false)
		assert.Error(t, m.Validate())
	})

	t.Run("foreign navigation target", func(t *testing.T) {
		m := NewModel("T")
		e := m.AddEntityType("E", false)
		e.AddKey("Id", Int32)
		other := NewModel("U").AddEntityType("F", false)
		e.AddNavigation("F", other, true)
		assert.Error(t, m.Validate())
	})

	t.Run("duplicate entity set", func(t *testing.T) {
		m := NewModel("T")
		e := m.AddEntityType("E", false)
		e.AddKey("Id", Int32)
		m.AddEntitySet("Es", e)
		m.AddEntitySet("Es", e)
		assert.Error(t, m.Validate())
	})
}

func TestInternConcurrent(t *testing.T) {
	in := &IdentifierIntern{}
	names := []string{"A.x", "A.y", "B.x", "B.y"}

	var wg sync.WaitGroup
	results := make([][]ID, 16)
	for g := range results {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for _, name := range names {
				results[g] = append(results[g], in.Intern(name))
			}
		}(g)
	}
	wg.Wait()

	for g := 1; g < len(results); g++ {
		assert.Equal(t, results[0], results[g])
	}
	assert.Equal(t, len(names), in.Len())

	id, ok := in.Lookup("B.x")
	require.True(t, ok)
	assert.Equal(t, results[0][2], id)
	_, ok = in.Lookup("C.z")
	assert.False(t, ok)
}
