package sim

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// The persisted model form is an ordered record stream with no semantic
// coupling to any file container:
//
//	stageCount uint32
//	stageCount times: depth uint32, name string, typeText string, reported uint8
//	castingCount uint32
//	castingCount times: name string, rows uint32, cols uint32, rows*cols float64
//
// Stages are written in pre-order with their distance from the root (root =
// 0); parent references and hierarchical ids are not persisted. typeText is
// the type label for Direct/Success/Sink stages and the casting reference
// for Caster stages. All integers are little-endian; strings are
// length-prefixed UTF-8; values are IEEE 754 bits.

// stageRecord is one flattened stage entry in the persisted stream.
type stageRecord struct {
	depth    uint32
	name     string
	typeText string
	reported bool
}

// Encode writes the tree and castings to w in the flat persisted form.
func Encode(w io.Writer, tree *Tree, reg *Registry) error {
	bw := bufio.NewWriter(w)

	var records []stageRecord
	var dump func(s *Stage, depth uint32)
	dump = func(s *Stage, depth uint32) {
		records = append(records, stageRecord{
			depth:    depth,
			name:     s.Name,
			typeText: s.typeText(),
			reported: s.Reported,
		})
		for _, c := range s.Children {
			dump(c, depth+1)
		}
	}
	dump(tree.Root, 0)

	if err := writeUint32(bw, uint32(len(records))); err != nil {
		return err
	}
	for _, rec := range records {
		if err := writeUint32(bw, rec.depth); err != nil {
			return err
		}
		if err := writeString(bw, rec.name); err != nil {
			return err
		}
		if err := writeString(bw, rec.typeText); err != nil {
			return err
		}
		var reported uint8
		if rec.reported {
			reported = 1
		}
		if err := bw.WriteByte(reported); err != nil {
			return err
		}
	}

	castings := reg.All()
	if err := writeUint32(bw, uint32(len(castings))); err != nil {
		return err
	}
	for _, c := range castings {
		if err := writeString(bw, c.Name()); err != nil {
			return err
		}
		if err := writeUint32(bw, uint32(c.Rows())); err != nil {
			return err
		}
		if err := writeUint32(bw, uint32(c.Cols())); err != nil {
			return err
		}
		for r := 0; r < c.Rows(); r++ {
			for col := 0; col < c.Cols(); col++ {
				if err := writeFloat64(bw, c.At(r, col)); err != nil {
					return err
				}
			}
		}
	}
	return bw.Flush()
}

// Decode reads the flat persisted form and reconstructs the tree and casting
// registry.
//
// The stage sequence is buffered fully, then consumed from the end: for each
// taken entry of depth d, the remaining buffer is scanned backward for the
// nearest entry of depth d-1, and the taken entry's node is attached as that
// entry's FIRST child. A pre-order dump lists every parent before all of its
// descendants, so the closest preceding depth-(d-1) entry is always the true
// parent, and prepending while consuming in reverse restores the original
// child order. The entry with no parent (depth 0) is the root. Index-based,
// no recursion: the buffer can be arbitrarily deep.
func Decode(r io.Reader) (*Tree, *Registry, error) {
	br := bufio.NewReader(r)

	stageCount, err := readUint32(br)
	if err != nil {
		return nil, nil, fmt.Errorf("reading stage count: %w", err)
	}
	if stageCount == 0 {
		return nil, nil, fmt.Errorf("model has no stages")
	}
	records := make([]stageRecord, stageCount)
	nodes := make([]*Stage, stageCount)
	for i := range records {
		if records[i].depth, err = readUint32(br); err != nil {
			return nil, nil, fmt.Errorf("reading stage %d: %w", i, err)
		}
		if records[i].name, err = readString(br); err != nil {
			return nil, nil, fmt.Errorf("reading stage %d: %w", i, err)
		}
		if records[i].typeText, err = readString(br); err != nil {
			return nil, nil, fmt.Errorf("reading stage %d: %w", i, err)
		}
		reported, err := br.ReadByte()
		if err != nil {
			return nil, nil, fmt.Errorf("reading stage %d: %w", i, err)
		}
		records[i].reported = reported != 0

		typ, castRef := stageFromTypeText(records[i].typeText)
		nodes[i] = &Stage{
			Name:     records[i].name,
			Type:     typ,
			Casting:  castRef,
			Reported: records[i].reported,
		}
	}

	var root *Stage
	for i := int(stageCount) - 1; i >= 0; i-- {
		if records[i].depth == 0 {
			root = nodes[i]
			if i != 0 {
				return nil, nil, fmt.Errorf("stage %d: root entry not first in pre-order dump", i)
			}
			break
		}
		parentDepth := records[i].depth - 1
		parent := -1
		for j := i - 1; j >= 0; j-- {
			if records[j].depth == parentDepth {
				parent = j
				break
			}
		}
		if parent < 0 {
			return nil, nil, fmt.Errorf("stage %d (%q): no entry at depth %d precedes it", i, records[i].name, parentDepth)
		}
		nodes[parent].Children = append([]*Stage{nodes[i]}, nodes[parent].Children...)
	}
	if root == nil {
		return nil, nil, fmt.Errorf("model has no root stage")
	}

	castingCount, err := readUint32(br)
	if err != nil {
		return nil, nil, fmt.Errorf("reading casting count: %w", err)
	}
	reg := NewRegistry()
	for i := 0; i < int(castingCount); i++ {
		name, err := readString(br)
		if err != nil {
			return nil, nil, fmt.Errorf("reading casting %d: %w", i, err)
		}
		rows, err := readUint32(br)
		if err != nil {
			return nil, nil, fmt.Errorf("reading casting %q: %w", name, err)
		}
		cols, err := readUint32(br)
		if err != nil {
			return nil, nil, fmt.Errorf("reading casting %q: %w", name, err)
		}
		c := NewCasting(name, int(rows), int(cols))
		for r := 0; r < int(rows); r++ {
			for col := 0; col < int(cols); col++ {
				v, err := readFloat64(br)
				if err != nil {
					return nil, nil, fmt.Errorf("reading casting %q row %d: %w", name, r+1, err)
				}
				c.data[r][col] = v
			}
		}
		if err := reg.Add(c); err != nil {
			return nil, nil, fmt.Errorf("casting %d: %w", i, err)
		}
	}

	return &Tree{Root: root}, reg, nil
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func writeFloat64(w io.Writer, v float64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	_, err := w.Write(buf[:])
	return err
}

func readFloat64(r io.Reader) (float64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[:])), nil
}

func writeString(w io.Writer, s string) error {
	if err := writeUint32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
