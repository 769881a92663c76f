package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLanguages(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"empty defaults to english", nil, []string{"eng"}},
		{"blank entries ignored", []string{" ", ""}, []string{"eng"}},
		{"iso codes mapped", []string{"en", "th"}, []string{"eng", "tha"}},
		{"tesseract codes kept", []string{"deu", "chi_sim"}, []string{"deu", "chi_sim"}},
		{"case folded and deduplicated", []string{"ENG", "en", "eng"}, []string{"eng"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeLanguages(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeLanguages_Invalid(t *testing.T) {
	for _, in := range []string{"../eng", "eng+tha", "e n", "1eng"} {
		_, err := NormalizeLanguages([]string{in})
		assert.Error(t, err, in)
	}
}
