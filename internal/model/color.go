package model

// Color is a card swatch name.
type Color string

const (
	RaspberrySunset Color = "raspberrySunset"
	OrangeJuice     Color = "orangeJuice"
	ForgetMeNot     Color = "forgetMeNot"
	Latte           Color = "latte"
	Overcast        Color = "overcast"
	BlueRose        Color = "blueRose"
	YoungLeaf       Color = "youngLeaf"
)

// DefaultColor is palette index 1.
const DefaultColor = RaspberrySunset

// Palette is ordered by swatch index, starting at 1.
var Palette = []Color{RaspberrySunset, OrangeJuice, ForgetMeNot, Latte, Overcast, BlueRose, YoungLeaf}

// Index returns the 1-based palette index, or 0 for unknown names.
func (c Color) Index() int {
	for i, p := range Palette {
		if p == c {
			return i + 1
		}
	}
	return 0
}

// Valid reports whether c belongs to the palette.
func (c Color) Valid() bool {
	return c.Index() != 0
}

// ColorForIndex returns the swatch with the given 1-based index, falling back
// to DefaultColor.
func ColorForIndex(index int) Color {
	if index < 1 || index > len(Palette) {
		return DefaultColor
	}
	return Palette[index-1]
}

// Emoji is the marker used in chat cards.
func (c Color) Emoji() string {
	switch c {
	case OrangeJuice:
		return "🟠"
	case ForgetMeNot:
		return "🔵"
	case Latte:
		return "🟤"
	case Overcast:
		return "⚪"
	case BlueRose:
		return "🟣"
	case YoungLeaf:
		return "🟢"
	default:
		return "🔴"
	}
}
