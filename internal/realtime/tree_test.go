package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: ""},
		{in: "/", want: ""},
		{in: "/users/u1/", want: "users/u1"},
		{in: "users//u1", wantErr: true},
		{in: "users/a.b", wantErr: true},
		{in: "users/$id", wantErr: true},
		{in: "tasks/[0]", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Clean(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAncestors(t *testing.T) {
	assert.Equal(t, []string{"a", "a/b"}, ancestors("a/b/c"))
	assert.Empty(t, ancestors("a"))
	assert.Empty(t, ancestors(""))
}

func TestFlattenAndAssemble(t *testing.T) {
	value, err := normalize(map[string]any{
		"text": "hi",
		"meta": map[string]any{"n": 3, "ok": true},
		"tags": []string{"x", "y"},
		"none": map[string]any{},
	})
	require.NoError(t, err)

	leaves := map[string]any{}
	flatten("messages/m1", value, leaves)
	assert.Equal(t, map[string]any{
		"messages/m1/text":    "hi",
		"messages/m1/meta/n":  float64(3),
		"messages/m1/meta/ok": true,
		"messages/m1/tags/0":  "x",
		"messages/m1/tags/1":  "y",
	}, leaves)

	assert.Equal(t, map[string]any{"n": float64(3), "ok": true}, assemble("messages/m1/meta", leaves))
	assert.Equal(t, "hi", assemble("messages/m1/text", leaves))
	assert.Nil(t, assemble("messages/m2", leaves))
	// A shared textual prefix is not a parent.
	assert.Nil(t, assemble("messages/m", leaves))
}

func TestCheckOverlap(t *testing.T) {
	assert.NoError(t, checkOverlap([]string{"a/b", "a/c", "ab"}))
	assert.ErrorIs(t, checkOverlap([]string{"a", "a/b"}), ErrInvalidPath)
	assert.ErrorIs(t, checkOverlap([]string{"", "x"}), ErrInvalidPath)
}

func TestPrepareUpdateRejectsRootScalar(t *testing.T) {
	_, _, err := prepareUpdate(map[string]any{"/": "x"})
	assert.ErrorIs(t, err, ErrInvalidPath)
}
