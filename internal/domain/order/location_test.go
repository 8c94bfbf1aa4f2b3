package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name      string
		modelName string
		want      *Location
	}{
		{
			name:      "full tag with box",
			modelName: "[12N3-4] Red / L",
			want:      &Location{Shelf: "12", Level: "3", Box: "4"},
		},
		{
			name:      "tag without box",
			modelName: "[5N1]",
			want:      &Location{Shelf: "5", Level: "1"},
		},
		{
			name:      "no tag",
			modelName: "Blue / M",
			want:      nil,
		},
		{
			name:      "tag in the middle of the name",
			modelName: "Hoodie [7N2-12] Black",
			want:      &Location{Shelf: "7", Level: "2", Box: "12"},
		},
		{
			name:      "alphanumeric shelf",
			modelName: "[A2N1] Green",
			want:      &Location{Shelf: "A2", Level: "1"},
		},
		{
			name:      "empty name",
			modelName: "",
			want:      nil,
		},
		{
			name:      "brackets without the tag grammar",
			modelName: "[SALE] Blue / M",
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLocation(tt.modelName)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestParseLocation_Deterministic(t *testing.T) {
	first := ParseLocation("[12N3-4] Red / L")
	second := ParseLocation("[12N3-4] Red / L")
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, *first, *second)
}
