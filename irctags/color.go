package irctags

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is a chat username color: either one of Twitch's named defaults
// or an explicit RGB triple parsed from a "#rrggbb" tag value.
type Color struct {
	Name       string // the raw value when it is not a "#rrggbb" triple; HasRGB only for a recognized name
	R, G, B    uint8
	HasRGB     bool
}

var namedColors = map[string][3]uint8{
	"Blue":        {0, 0, 255},
	"BlueViolet":  {138, 43, 226},
	"CadetBlue":   {95, 158, 160},
	"Chocolate":   {210, 105, 30},
	"Coral":       {255, 127, 80},
	"DodgerBlue":  {30, 144, 255},
	"Firebrick":   {178, 34, 34},
	"GoldenRod":   {218, 165, 32},
	"Green":       {0, 255, 0},
	"HotPink":     {255, 105, 180},
	"OrangeRed":   {255, 69, 0},
	"Red":         {255, 0, 0},
	"SeaGreen":    {46, 139, 87},
	"SpringGreen": {0, 255, 127},
	"YellowGreen": {154, 205, 50},
}

// ParseColor parses a "color" tag value. An empty string yields the zero
// Color (HasRGB false, Name "").
func ParseColor(raw string) Color {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Color{}
	}
	if strings.HasPrefix(raw, "#") && len(raw) == 7 {
		r, errR := strconv.ParseUint(raw[1:3], 16, 8)
		g, errG := strconv.ParseUint(raw[3:5], 16, 8)
		b, errB := strconv.ParseUint(raw[5:7], 16, 8)
		if errR == nil && errG == nil && errB == nil {
			return Color{R: uint8(r), G: uint8(g), B: uint8(b), HasRGB: true}
		}
	}
	if rgb, ok := namedColors[raw]; ok {
		return Color{Name: raw, R: rgb[0], G: rgb[1], B: rgb[2], HasRGB: true}
	}
	return Color{Name: raw}
}

// Hex renders the color as "#rrggbb"; it returns "" if no RGB value is known.
func (c Color) Hex() string {
	if !c.HasRGB {
		return ""
	}
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// Color returns the parsed "color" tag.
func (t Tags) Color() Color {
	return ParseColor(t.Raw("color"))
}
