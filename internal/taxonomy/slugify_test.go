package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already a slug", "tummy-tuck", "tummy-tuck"},
		{"display name", "Tummy Tuck", "tummy-tuck"},
		{"mixed case and punctuation", "Breast Augmentation (Implants)", "breast-augmentation-implants"},
		{"underscores", "mommy_makeover", "mommy-makeover"},
		{"leading and trailing junk", "  --Lipo 360--  ", "lipo-360"},
		{"consecutive separators collapse", "face   &   neck", "face-neck"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"digits survive", "CoolSculpting 2", "coolsculpting-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.input))
		})
	}
}

func TestProcedure_CanonicalID(t *testing.T) {
	t.Run("first id is canonical", func(t *testing.T) {
		p := Procedure{Name: "Liposuction", Slug: "liposuction", IDs: []int{42, 77}}
		id, ok := p.CanonicalID()
		assert.True(t, ok)
		assert.Equal(t, 42, id)
	})

	t.Run("empty id list is unresolvable", func(t *testing.T) {
		p := Procedure{Name: "Orphaned", Slug: "orphaned"}
		id, ok := p.CanonicalID()
		assert.False(t, ok)
		assert.Zero(t, id)
	})
}
