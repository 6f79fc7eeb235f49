package codegen

import (
	"encoding/binary"
	"fmt"

	"github.com/glint-lang/glintc/internal/builtins"
	"github.com/glint-lang/glintc/internal/ir"
)

// placeString interns s as an active data segment laid out the way
// internal/builtins' string built-ins expect: a 4-byte little-endian
// UTF-16 code-unit count followed by that many 2-byte code units.
// Identical literals share one segment.
func (g *Generator) placeString(s string) (*ir.DataSegment, error) {
	if g.strings == nil {
		g.strings = make(map[string]*ir.DataSegment)
	}
	if d, ok := g.strings[s]; ok {
		return d, nil
	}
	units, err := builtins.EncodeUTF16(s)
	if err != nil {
		return nil, err
	}
	count, err := builtins.CodeUnitCount(s)
	if err != nil {
		return nil, err
	}
	bytes := make([]byte, 4+len(units))
	binary.LittleEndian.PutUint32(bytes[0:4], count)
	copy(bytes[4:], units)

	d := g.bc.PlaceData(g.dataBase, fmt.Sprintf("str%d", len(g.strings)), bytes)
	g.strings[s] = d
	return d, nil
}
