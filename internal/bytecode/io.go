package bytecode

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// Magic identifies a .vmb file; Version is bumped whenever the on-disk
// layout changes.
const Magic = "MINICRTOS"
const Version uint32 = 1

// Write serializes prog to w: magic, version, constant pool, string pool,
// symbol table, function table, struct layouts, instruction stream — all
// little-endian.
func Write(w io.Writer, prog *BytecodeProgram) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(Magic); err != nil {
		return err
	}
	if err := writeU32(bw, Version); err != nil {
		return err
	}

	if err := writeU32(bw, uint32(len(prog.Constants))); err != nil {
		return err
	}
	for _, c := range prog.Constants {
		if err := bw.WriteByte(byte(c.Tag)); err != nil {
			return err
		}
		switch c.Tag {
		case ConstInt:
			if err := writeU32(bw, c.Int); err != nil {
				return err
			}
		case ConstFloat:
			if err := writeU32(bw, math.Float32bits(c.Float)); err != nil {
				return err
			}
		case ConstString:
			if err := writeString16(bw, c.Str); err != nil {
				return err
			}
		default:
			return fmt.Errorf("bytecode: unknown constant tag %d", c.Tag)
		}
	}

	if err := writeU32(bw, uint32(len(prog.Strings))); err != nil {
		return err
	}
	for _, s := range prog.Strings {
		if err := writeString16(bw, s); err != nil {
			return err
		}
	}

	if err := writeU32(bw, uint32(len(prog.SymbolOrder))); err != nil {
		return err
	}
	for _, name := range prog.SymbolOrder {
		if err := writeString16(bw, name); err != nil {
			return err
		}
		if err := writeU32(bw, prog.Symbols[name]); err != nil {
			return err
		}
	}

	if err := writeU32(bw, uint32(len(prog.FunctionOrder))); err != nil {
		return err
	}
	for _, name := range prog.FunctionOrder {
		if err := writeString16(bw, name); err != nil {
			return err
		}
		if err := writeU32(bw, prog.Functions[name]); err != nil {
			return err
		}
	}

	if err := writeU32(bw, uint32(len(prog.Structs))); err != nil {
		return err
	}
	for _, s := range prog.Structs {
		if err := writeString16(bw, s.Name); err != nil {
			return err
		}
		if err := writeU32(bw, uint32(len(s.Fields))); err != nil {
			return err
		}
		for _, f := range s.Fields {
			if err := writeString16(bw, f.Name); err != nil {
				return err
			}
			if err := writeU32(bw, f.Offset); err != nil {
				return err
			}
		}
	}

	if err := writeU32(bw, uint32(len(prog.Instructions))); err != nil {
		return err
	}
	for _, instr := range prog.Instructions {
		if err := bw.WriteByte(byte(instr.Op)); err != nil {
			return err
		}
		if err := bw.WriteByte(byte(len(instr.Operand))); err != nil {
			return err
		}
		for _, op := range instr.Operand {
			if err := writeU32(bw, op); err != nil {
				return err
			}
		}
	}

	return bw.Flush()
}

// Read deserializes a .vmb stream produced by Write. Mode, DebugInfo and
// each instruction's line/column are not part of the format, so Read
// returns them as zero values.
func Read(r io.Reader) (*BytecodeProgram, error) {
	br := bufio.NewReader(r)

	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("bytecode: reading magic: %w", err)
	}
	if string(magic) != Magic {
		return nil, fmt.Errorf("bytecode: bad magic %q", magic)
	}
	version, err := readU32(br)
	if err != nil {
		return nil, err
	}
	if version != Version {
		return nil, fmt.Errorf("bytecode: unsupported version %d", version)
	}

	prog := NewProgram()

	constCount, err := readU32(br)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < constCount; i++ {
		tag, err := br.ReadByte()
		if err != nil {
			return nil, err
		}
		switch ConstTag(tag) {
		case ConstInt:
			v, err := readU32(br)
			if err != nil {
				return nil, err
			}
			prog.Constants = append(prog.Constants, IntConst(v))
		case ConstFloat:
			v, err := readU32(br)
			if err != nil {
				return nil, err
			}
			prog.Constants = append(prog.Constants, FloatConst(math.Float32frombits(v)))
		case ConstString:
			s, err := readString16(br)
			if err != nil {
				return nil, err
			}
			prog.Constants = append(prog.Constants, StringConst(s))
		default:
			return nil, fmt.Errorf("bytecode: unknown constant tag %d", tag)
		}
	}

	strCount, err := readU32(br)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < strCount; i++ {
		s, err := readString16(br)
		if err != nil {
			return nil, err
		}
		prog.Strings = append(prog.Strings, s)
	}

	symCount, err := readU32(br)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < symCount; i++ {
		name, err := readString16(br)
		if err != nil {
			return nil, err
		}
		addr, err := readU32(br)
		if err != nil {
			return nil, err
		}
		prog.AddSymbol(name, addr)
	}

	fnCount, err := readU32(br)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < fnCount; i++ {
		name, err := readString16(br)
		if err != nil {
			return nil, err
		}
		addr, err := readU32(br)
		if err != nil {
			return nil, err
		}
		prog.AddFunction(name, addr)
	}

	structCount, err := readU32(br)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < structCount; i++ {
		name, err := readString16(br)
		if err != nil {
			return nil, err
		}
		fieldCount, err := readU32(br)
		if err != nil {
			return nil, err
		}
		entry := StructLayoutEntry{Name: name}
		for j := uint32(0); j < fieldCount; j++ {
			fname, err := readString16(br)
			if err != nil {
				return nil, err
			}
			offset, err := readU32(br)
			if err != nil {
				return nil, err
			}
			entry.Fields = append(entry.Fields, FieldLayout{Name: fname, Offset: offset})
		}
		prog.Structs = append(prog.Structs, entry)
	}

	instrCount, err := readU32(br)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < instrCount; i++ {
		opByte, err := br.ReadByte()
		if err != nil {
			return nil, err
		}
		operandCount, err := br.ReadByte()
		if err != nil {
			return nil, err
		}
		operands := make([]uint32, operandCount)
		for j := range operands {
			v, err := readU32(br)
			if err != nil {
				return nil, err
			}
			operands[j] = v
		}
		prog.Instructions = append(prog.Instructions, Instruction{Op: Opcode(opByte), Operand: operands})
	}

	return prog, nil
}

// WriteFile writes prog to path, creating or truncating it.
func WriteFile(path string, prog *BytecodeProgram) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Write(f, prog)
}

// ReadFile loads a .vmb file from path.
func ReadFile(path string) (*BytecodeProgram, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func writeString16(w io.Writer, s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("bytecode: string too long (%d bytes)", len(s))
	}
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(s)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString16(r io.Reader) (string, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	n := binary.LittleEndian.Uint16(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
