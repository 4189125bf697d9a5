package instrument

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup_Known(t *testing.T) {
	inst := Lookup("basse")
	assert.Equal(t, "Basse", inst.Name)
	assert.Equal(t, 33, inst.Program)
	assert.Equal(t, "bass", inst.Clef)
	assert.Equal(t, 28, inst.LowNote)
	assert.Equal(t, 60, inst.HighNote)
}

func TestLookup_UnknownFallsBackToFullRange(t *testing.T) {
	inst := Lookup("theremin")
	assert.Equal(t, "theremin", inst.ID)
	assert.Equal(t, 0, inst.Program)
	assert.Equal(t, "treble", inst.Clef)
	assert.True(t, inst.InRange(0))
	assert.True(t, inst.InRange(127))
}

func TestInRange(t *testing.T) {
	piano := Lookup("piano")
	assert.True(t, piano.InRange(21))
	assert.True(t, piano.InRange(108))
	assert.False(t, piano.InRange(20))
	assert.False(t, piano.InRange(109))
}

func TestCatalogOrder(t *testing.T) {
	ids := make([]string, len(All))
	for i, inst := range All {
		ids[i] = inst.ID
	}
	assert.Equal(t, []string{"piano", "guitare", "basse", "violon", "flute", "voix", "saxophone", "trompette"}, ids)
}
