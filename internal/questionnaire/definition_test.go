package questionnaire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBandBoundaries(t *testing.T) {
	pss, _ := Lookup(PSS14)
	fisio, _ := Lookup(Fisio)

	tests := []struct {
		def   *Definition
		total int
		want  Level
	}{
		{pss, 0, LevelLow},
		{pss, 19, LevelLow},
		{pss, 20, LevelModerate},
		{pss, 25, LevelModerate},
		{pss, 26, LevelHigh},
		{pss, 56, LevelHigh},
		{fisio, 0, LevelLow},
		{fisio, 4, LevelLow},
		{fisio, 5, LevelModerate},
		{fisio, 9, LevelModerate},
		{fisio, 10, LevelHigh},
		{fisio, 15, LevelHigh},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.def.Band(tt.total), "%s total=%d", tt.def.ID, tt.total)
	}
}

func TestReversalProperty(t *testing.T) {
	d, _ := Lookup(PSS14)
	max := d.ScaleMax()
	require.Equal(t, 4, max)

	for pos := 1; pos <= len(d.Questions); pos++ {
		for v := 0; v <= max; v++ {
			answers := make([]int, len(d.Questions))
			answers[pos-1] = v
			_, scored := d.Score(answers)

			flipped := make([]int, len(d.Questions))
			flipped[pos-1] = max - v
			_, scoredFlipped := d.Score(flipped)

			delta := scoredFlipped[pos-1] - scored[pos-1]
			if d.IsReversed(pos) {
				assert.Equal(t, v-(max-v), delta, "pos %d v %d", pos, v)
				assert.Equal(t, max-v, scored[pos-1])
			} else {
				assert.Equal(t, (max-v)-v, delta, "pos %d v %d", pos, v)
				assert.Equal(t, v, scored[pos-1])
			}
		}
	}
}

func TestScoreBounded(t *testing.T) {
	for _, d := range All() {
		for v := d.ScaleMin(); v <= d.ScaleMax(); v++ {
			answers := make([]int, len(d.Questions))
			for i := range answers {
				answers[i] = v
			}
			total, _ := d.Score(answers)
			again, _ := d.Score(answers)
			assert.Equal(t, total, again)
			assert.GreaterOrEqual(t, total, 0)
			assert.LessOrEqual(t, total, d.MaxTotal)
		}
	}
}

func TestDefinitionShape(t *testing.T) {
	pss, _ := Lookup(PSS14)
	assert.Len(t, pss.Questions, 14)
	assert.Equal(t, []int{4, 5, 6, 7, 9, 10, 13}, pss.Reversed)
	assert.Equal(t, "Muy a menudo", pss.Label(4))
	assert.Equal(t, "", pss.Label(9))

	fisio, _ := Lookup(Fisio)
	assert.Len(t, fisio.Questions, 5)
	assert.Equal(t, 3, fisio.ScaleMax())
	assert.True(t, fisio.InScale(0))
	assert.False(t, fisio.InScale(4))

	ids := []ID{}
	for _, d := range All() {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []ID{PSS14, Fisio}, ids)
}

func TestStripOrdinal(t *testing.T) {
	assert.Equal(t, "¿Cómo estás?", StripOrdinal("1) ¿Cómo estás?"))
	assert.Equal(t, "¿Cómo estás?", StripOrdinal("  12) ¿Cómo estás?"))
	assert.Equal(t, "¿Cómo estás?", StripOrdinal("3. ¿Cómo estás?"))
	assert.Equal(t, "Sin prefijo 1)", StripOrdinal("Sin prefijo 1)"))
}

func TestFingerprintStable(t *testing.T) {
	d, _ := Lookup(PSS14)
	a, err := d.Fingerprint()
	require.NoError(t, err)
	b, err := d.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	other, _ := Lookup(Fisio)
	c, err := other.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
