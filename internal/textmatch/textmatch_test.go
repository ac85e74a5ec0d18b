package textmatch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "casi nunca", Normalize("  Casi Nunca \n"))
	assert.Equal(t, "", Normalize("   "))
}

func TestStripDiacritics(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sí", "si"},
		{"estrés", "estres"},
		{"fisiológico", "fisiologico"},
		{"ñandú", "nandu"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, StripDiacritics(tt.in))
		})
	}
}

func TestFold(t *testing.T) {
	assert.Equal(t, Fold("Sí"), Fold("si"))
	assert.Equal(t, "evaluacion", Fold(" EVALUACIÓN "))
}

func TestSimilarity(t *testing.T) {
	t.Run("identical after folding", func(t *testing.T) {
		assert.Equal(t, 1.0, Similarity("A menudo", "a menudo"))
		assert.Equal(t, 1.0, Similarity("sí", "SI"))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Equal(t, 0.0, Similarity("", "nunca"))
		assert.Equal(t, 0.0, Similarity("nunca", "   "))
	})

	t.Run("known ratio", func(t *testing.T) {
		// "abcd" vs "bcde": 3 matching runes over 8 total.
		assert.InDelta(t, 0.75, Similarity("abcd", "bcde"), 1e-9)
	})

	t.Run("disjoint", func(t *testing.T) {
		assert.Equal(t, 0.0, Similarity("xyz", "abc"))
	})

	t.Run("bounded and symmetric", func(t *testing.T) {
		pairs := [][2]string{
			{"casi nunca", "nunca"},
			{"de vez en cuando", "a veces"},
			{"muy a menudo", "a menudo"},
			{"bastante", "basta"},
		}
		for _, p := range pairs {
			ab := Similarity(p[0], p[1])
			ba := Similarity(p[1], p[0])
			assert.GreaterOrEqual(t, ab, 0.0)
			assert.LessOrEqual(t, ab, 1.0)
			assert.True(t, math.Abs(ab-ba) < 1e-9, "%q/%q: %v vs %v", p[0], p[1], ab, ba)
		}
	})
}

func TestContainsAny(t *testing.T) {
	p, ok := ContainsAny("Creo que CASI NUNCA me pasa", []string{"siempre", "casi nunca", "nunca"})
	assert.True(t, ok)
	assert.Equal(t, "casi nunca", p)

	p, ok = ContainsAny("me siento con estrés", []string{"estres"})
	assert.True(t, ok)
	assert.Equal(t, "estres", p)

	_, ok = ContainsAny("hola", []string{"adios"})
	assert.False(t, ok)

	_, ok = ContainsAny("", []string{""})
	assert.False(t, ok)
}

func TestEqualsAny(t *testing.T) {
	assert.True(t, EqualsAny(" Reiniciar ", []string{"borrar memoria", "reiniciar"}))
	assert.False(t, EqualsAny("reiniciar ya", []string{"reiniciar"}))
}
