// Package layout computes RTMC's Struct Layout Table: per-field byte/bit
// offsets, alignment, union overlap, inheritance flattening, and bit-field
// packing into 32-bit words.
package layout

import (
	"fmt"

	"github.com/rtmc-lang/rtmc/internal/ast"
	"github.com/rtmc-lang/rtmc/internal/diag"
)

const wordBits = 32
const wordBytes = 4

// FieldLayout is one resolved struct/union member.
type FieldLayout struct {
	Name       string
	Type       ast.Type
	ByteOffset int
	Size       int // bytes; 0 for bit-fields (BitWidth/BitOffset apply instead)
	IsBitField bool
	BitOffset  int // bit position within the 32-bit word at ByteOffset
	BitWidth   int
}

// StructLayout is the resolved shape of one struct/union declaration.
type StructLayout struct {
	Name    string
	IsUnion bool
	Size    int // total bytes, 4-byte aligned
	Fields  map[string]*FieldLayout
	Order   []string // declaration order, base fields first
}

// Table maps every struct/union name to its resolved layout.
type Table struct {
	Structs map[string]*StructLayout
}

// PrimitiveSize returns a primitive type's size in bytes: char and bool are
// one byte, int and float a 32-bit VM word. Array elements are packed at
// this size; a struct field still takes its own 4-byte-aligned slot.
func PrimitiveSize(kind string) int {
	switch kind {
	case "char", "bool":
		return 1
	case "int", "float":
		return 4
	case "void":
		return 0
	}
	return 4
}

func TypeSize(t ast.Type, table *Table) int {
	switch v := t.(type) {
	case *ast.Primitive:
		return PrimitiveSize(v.Kind)
	case *ast.PointerType:
		return 4
	case *ast.ArrayType:
		return TypeSize(v.Element, table) * v.Size
	case *ast.StructType:
		if table != nil {
			if sl, ok := table.Structs[v.Name]; ok {
				return sl.Size
			}
		}
		return 0
	case *ast.UnionType:
		if table != nil {
			if sl, ok := table.Structs[v.Name]; ok {
				return sl.Size
			}
		}
		return 0
	}
	return 4
}

// Build resolves every struct/union's layout. Structs may reference other
// structs (by value or inheritance); Build resolves them in dependency
// order, detecting cycles as a LayoutError.
func Build(structs map[string]*ast.StructDecl) (*Table, *diag.Bag) {
	bag := &diag.Bag{}
	table := &Table{Structs: map[string]*StructLayout{}}
	building := map[string]bool{}

	var resolve func(name string) *StructLayout
	resolve = func(name string) *StructLayout {
		if sl, ok := table.Structs[name]; ok {
			return sl
		}
		sd, ok := structs[name]
		if !ok {
			return nil
		}
		if building[name] {
			bag.Addf(diag.StageLayout, sd.Pos(), "circular struct definition involving %q", name)
			return nil
		}
		building[name] = true
		defer delete(building, name)

		sl := layoutOne(sd, structs, resolve, bag)
		table.Structs[name] = sl
		return sl
	}

	for name := range structs {
		resolve(name)
	}
	return table, bag
}

func layoutOne(sd *ast.StructDecl, structs map[string]*ast.StructDecl, resolve func(string) *StructLayout, bag *diag.Bag) *StructLayout {
	sl := &StructLayout{Name: sd.Name, IsUnion: sd.IsUnion, Fields: map[string]*FieldLayout{}}

	baseSize := 0
	if sd.BaseName != "" {
		if base := resolve(sd.BaseName); base != nil {
			for _, n := range base.Order {
				bf := *base.Fields[n]
				sl.Fields[n] = &bf
				sl.Order = append(sl.Order, n)
			}
			baseSize = base.Size
		}
	}

	cursor := baseSize  // next free byte offset for non-bit-field members
	var bitCursor int    // next free bit within the in-progress bit-field word
	bitWordOffset := -1  // byte offset of the word currently being packed

	flushBitWord := func() {
		if bitWordOffset >= 0 {
			cursor = bitWordOffset + wordBytes
		}
		bitWordOffset = -1
		bitCursor = 0
	}

	maxSize := 0
	for _, f := range sd.Fields {
		if f.IsBitField {
			if bitWordOffset < 0 || bitCursor+f.BitWidth > wordBits {
				if bitWordOffset >= 0 {
					flushBitWord()
				}
				bitWordOffset = cursor
				bitCursor = 0
			}
			fl := &FieldLayout{
				Name: f.Name, Type: f.Type, ByteOffset: bitWordOffset,
				IsBitField: true, BitOffset: bitCursor, BitWidth: f.BitWidth,
			}
			sl.Fields[f.Name] = fl
			sl.Order = append(sl.Order, f.Name)
			bitCursor += f.BitWidth
			if sd.IsUnion {
				if wordBytes > maxSize {
					maxSize = wordBytes
				}
			} else if bitWordOffset+wordBytes > maxSize {
				maxSize = bitWordOffset + wordBytes
			}
			continue
		}

		flushBitWord()
		size := resolveFieldSize(f.Type, structs, resolve)
		offset := cursor
		if sd.IsUnion {
			offset = 0
		}
		fl := &FieldLayout{Name: f.Name, Type: f.Type, ByteOffset: offset, Size: size}
		sl.Fields[f.Name] = fl
		sl.Order = append(sl.Order, f.Name)
		if sd.IsUnion {
			if size > maxSize {
				maxSize = size
			}
		} else {
			cursor += alignUp(size)
			if cursor > maxSize {
				maxSize = cursor
			}
		}
	}
	flushBitWord()
	if !sd.IsUnion && cursor > maxSize {
		maxSize = cursor
	}

	sl.Size = alignUp(maxSize)
	if sl.Size == 0 {
		sl.Size = wordBytes
	}
	return sl
}

func alignUp(n int) int {
	if n%wordBytes == 0 {
		return n
	}
	return n + (wordBytes - n%wordBytes)
}

func resolveFieldSize(t ast.Type, structs map[string]*ast.StructDecl, resolve func(string) *StructLayout) int {
	switch v := t.(type) {
	case *ast.Primitive:
		return PrimitiveSize(v.Kind)
	case *ast.PointerType:
		return wordBytes
	case *ast.ArrayType:
		return resolveFieldSize(v.Element, structs, resolve) * v.Size
	case *ast.StructType:
		if sl := resolve(v.Name); sl != nil {
			return sl.Size
		}
	case *ast.UnionType:
		if sl := resolve(v.Name); sl != nil {
			return sl.Size
		}
	}
	return wordBytes
}

// MemberOffset computes a (possibly nested) member access's absolute byte
// offset as parentOffset + fieldOffset.
func MemberOffset(parentOffset int, field *FieldLayout) int {
	return parentOffset + field.ByteOffset
}

// LookupField finds a field by name in a struct's own layout, which
// already has its base chain's fields flattened in by Build.
func (t *Table) LookupField(structName, field string) (*FieldLayout, error) {
	sl, ok := t.Structs[structName]
	if !ok {
		return nil, fmt.Errorf("unknown struct %q", structName)
	}
	if fl, ok := sl.Fields[field]; ok {
		return fl, nil
	}
	return nil, fmt.Errorf("struct %q has no member %q", structName, field)
}
