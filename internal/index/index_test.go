package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counted struct {
	id    string
	count int
}

func upsertCounted(c *Collection[string, *counted], id string) (*counted, bool) {
	return c.Upsert(id,
		func() *counted { return &counted{id: id, count: 1} },
		func(v *counted) { v.count++ },
	)
}

func TestCollection(t *testing.T) {
	t.Run("Upsert appends new keys in order", func(t *testing.T) {
		c := New[string, *counted](0)

		_, added := upsertCounted(c, "a")
		require.True(t, added)
		_, added = upsertCounted(c, "b")
		require.True(t, added)

		assert.Equal(t, 2, c.Len())
		assert.Equal(t, []string{"a", "b"}, c.Keys())
		assert.Equal(t, "b", c.At(1).id)
	})

	t.Run("duplicates merge instead of appending", func(t *testing.T) {
		c := New[string, *counted](0)
		sequence := []string{"x", "y", "x", "z", "x", "y"}
		for _, k := range sequence {
			upsertCounted(c, k)
		}

		require.Equal(t, 3, c.Len())
		want := map[string]int{}
		for _, k := range sequence {
			want[k]++
		}
		c.Each(func(k string, v *counted) {
			assert.Equal(t, want[k], v.count, "count for %s", k)
		})
	})

	t.Run("positions are stable and injective", func(t *testing.T) {
		c := New[string, *counted](4)
		seen := map[string]int{}
		for _, k := range []string{"p", "q", "p", "r", "q", "s", "p"} {
			upsertCounted(c, k)
			pos, ok := c.Position(k)
			require.True(t, ok)
			if prev, ok := seen[k]; ok {
				assert.Equal(t, prev, pos, "position of %s moved", k)
			}
			seen[k] = pos
			assert.Equal(t, k, c.At(pos).id)
		}

		owners := map[int]string{}
		for k, pos := range seen {
			if other, ok := owners[pos]; ok {
				t.Fatalf("keys %s and %s share position %d", k, other, pos)
			}
			owners[pos] = k
		}
	})

	t.Run("Get and Has", func(t *testing.T) {
		c := New[string, *counted](0)
		upsertCounted(c, "a")

		v, ok := c.Get("a")
		require.True(t, ok)
		assert.Equal(t, "a", v.id)
		assert.True(t, c.Has("a"))

		_, ok = c.Get("missing")
		assert.False(t, ok)
		assert.False(t, c.Has("missing"))
		_, ok = c.Position("missing")
		assert.False(t, ok)
	})

	t.Run("nil onDuplicate is allowed", func(t *testing.T) {
		c := New[int, int](0)
		c.Upsert(1, func() int { return 10 }, nil)
		v, added := c.Upsert(1, func() int { return 20 }, nil)
		assert.False(t, added)
		assert.Equal(t, 10, v)
	})

	t.Run("Filter and Values keep insertion order", func(t *testing.T) {
		c := New[string, *counted](0)
		for _, k := range []string{"a", "b", "a", "c", "a", "c"} {
			upsertCounted(c, k)
		}

		kept := c.Filter(func(v *counted) bool { return v.count >= 2 })
		require.Len(t, kept, 2)
		assert.Equal(t, "a", kept[0].id)
		assert.Equal(t, "c", kept[1].id)

		values := c.Values()
		values[0] = nil
		assert.NotNil(t, c.At(0), "Values must return a copy")
	})

	t.Run("Add builds id sets", func(t *testing.T) {
		set := New[string, string](0)
		assert.True(t, Add(set, "c1"))
		assert.False(t, Add(set, "c1"))
		assert.True(t, Add(set, "c2"))
		assert.Equal(t, []string{"c1", "c2"}, set.Values())
	})

	t.Run("nil collection has zero length", func(t *testing.T) {
		var c *Collection[string, string]
		assert.Equal(t, 0, c.Len())
	})
}
