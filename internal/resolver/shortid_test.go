package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var candidates = []string{
	"a1b2c3d4-0000-0000-0000-000000000001",
	"a1b2c3d4-0000-0000-0000-000000000002",
	"ffffffff-0000-0000-0000-000000000003",
}

func TestResolve(t *testing.T) {
	t.Run("full UUID passes through without matching", func(t *testing.T) {
		id := "99999999-9999-9999-9999-999999999999"
		got, err := Resolve(candidates, id)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	})

	t.Run("unique prefix resolves", func(t *testing.T) {
		got, err := Resolve(candidates, "ffffff")
		require.NoError(t, err)
		assert.Equal(t, "ffffffff-0000-0000-0000-000000000003", got)
	})

	t.Run("too short prefix rejected", func(t *testing.T) {
		_, err := Resolve(candidates, "a1b2")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 6 characters")
	})

	t.Run("no match", func(t *testing.T) {
		_, err := Resolve(candidates, "deadbe")
		require.Error(t, err)
		assert.True(t, IsNotFoundError(err))
	})

	t.Run("ambiguous prefix", func(t *testing.T) {
		_, err := Resolve(candidates, "a1b2c3")
		require.Error(t, err)
		require.True(t, IsAmbiguousError(err))

		var ambErr *AmbiguousError
		require.ErrorAs(t, err, &ambErr)
		assert.Len(t, ambErr.Matches, 2)
	})

	t.Run("empty candidate set", func(t *testing.T) {
		_, err := Resolve(nil, "a1b2c3")
		assert.True(t, IsNotFoundError(err))
	})
}

func TestFormatAmbiguousError(t *testing.T) {
	t.Run("lists all matches when few", func(t *testing.T) {
		msg := FormatAmbiguousError(&AmbiguousError{
			ShortID: "a1b2c3",
			Matches: []string{"a1b2c3-x", "a1b2c3-y"},
		})
		assert.Contains(t, msg, "a1b2c3-x")
		assert.Contains(t, msg, "a1b2c3-y")
	})

	t.Run("truncates past ten matches", func(t *testing.T) {
		matches := make([]string, 14)
		for i := range matches {
			matches[i] = "a1b2c3-match"
		}
		msg := FormatAmbiguousError(&AmbiguousError{ShortID: "a1b2c3", Matches: matches})
		assert.Contains(t, msg, "...and 4 more")
	})
}
