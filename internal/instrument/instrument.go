// Package instrument is the catalog of supported instruments: display
// metadata for the API plus the MIDI program, pitch range, and clef used
// when filtering transcriptions and engraving scores.
package instrument

// Instrument describes one supported instrument.
type Instrument struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Icon     string `json:"icon"`
	Program  int    `json:"-"` // General MIDI program number
	LowNote  int    `json:"-"` // lowest playable MIDI pitch
	HighNote int    `json:"-"` // highest playable MIDI pitch
	Clef     string `json:"-"`
}

// All is the catalog in display order.
var All = []Instrument{
	{ID: "piano", Name: "Piano", Icon: "🎹", Program: 0, LowNote: 21, HighNote: 108, Clef: "treble"},
	{ID: "guitare", Name: "Guitare", Icon: "🎸", Program: 25, LowNote: 40, HighNote: 88, Clef: "treble"},
	{ID: "basse", Name: "Basse", Icon: "🎸", Program: 33, LowNote: 28, HighNote: 60, Clef: "bass"},
	{ID: "violon", Name: "Violon", Icon: "🎻", Program: 40, LowNote: 55, HighNote: 103, Clef: "treble"},
	{ID: "flute", Name: "Flûte", Icon: "🪈", Program: 73, LowNote: 60, HighNote: 96, Clef: "treble"},
	{ID: "voix", Name: "Voix", Icon: "🎤", Program: 52, LowNote: 48, HighNote: 84, Clef: "treble"},
	{ID: "saxophone", Name: "Saxophone", Icon: "🎷", Program: 65, LowNote: 49, HighNote: 80, Clef: "treble"},
	{ID: "trompette", Name: "Trompette", Icon: "🎺", Program: 56, LowNote: 55, HighNote: 82, Clef: "treble"},
}

// Default is used when a submission omits the instrument.
const Default = "piano"

// Lookup returns the instrument for id, falling back to a full-range
// treble-clef piano profile for unknown ids so a job never fails on an
// unrecognized instrument name.
func Lookup(id string) Instrument {
	for _, inst := range All {
		if inst.ID == id {
			return inst
		}
	}
	return Instrument{ID: id, Name: id, Program: 0, LowNote: 0, HighNote: 127, Clef: "treble"}
}

// InRange reports whether pitch is playable on the instrument.
func (i Instrument) InRange(pitch int) bool {
	return pitch >= i.LowNote && pitch <= i.HighNote
}
