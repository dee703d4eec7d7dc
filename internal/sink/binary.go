package sink

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Binary wire format: column-ordered, BIGINT is 64-bit signed big-endian,
// REAL is IEEE-754 single precision. One function pair per table keeps the
// encoding colocated with the row type it serialises.

func writeInt64(w io.Writer, v int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	_, err := w.Write(buf[:])
	return err
}

func readInt64(r io.Reader) (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}

func writeFloat32(w io.Writer, v float32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], math.Float32bits(v))
	_, err := w.Write(buf[:])
	return err
}

func readFloat32(r io.Reader) (float32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(buf[:])), nil
}

// EncodeIsomorphismRows writes rows in (obs BIGINT, abs BIGINT) order.
func EncodeIsomorphismRows(w io.Writer, rows []IsomorphismRow) error {
	for _, r := range rows {
		if err := writeInt64(w, r.Obs); err != nil {
			return fmt.Errorf("sink: encode isomorphism row: %w", err)
		}
		if err := writeInt64(w, r.Abs); err != nil {
			return fmt.Errorf("sink: encode isomorphism row: %w", err)
		}
	}
	return nil
}

// DecodeIsomorphismRows reads rows until r is exhausted.
func DecodeIsomorphismRows(r io.Reader) ([]IsomorphismRow, error) {
	var rows []IsomorphismRow
	for {
		obs, err := readInt64(r)
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		abs, err := readInt64(r)
		if err != nil {
			return nil, fmt.Errorf("sink: truncated isomorphism row: %w", err)
		}
		rows = append(rows, IsomorphismRow{Obs: obs, Abs: abs})
	}
}

// EncodeMetricRows writes rows in (xor BIGINT, dx REAL) order.
func EncodeMetricRows(w io.Writer, rows []MetricRow) error {
	for _, r := range rows {
		if err := writeInt64(w, r.Xor); err != nil {
			return err
		}
		if err := writeFloat32(w, r.Dx); err != nil {
			return err
		}
	}
	return nil
}

// DecodeMetricRows reads rows until r is exhausted.
func DecodeMetricRows(r io.Reader) ([]MetricRow, error) {
	var rows []MetricRow
	for {
		xor, err := readInt64(r)
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		dx, err := readFloat32(r)
		if err != nil {
			return nil, fmt.Errorf("sink: truncated metric row: %w", err)
		}
		rows = append(rows, MetricRow{Xor: xor, Dx: dx})
	}
}

// EncodeTransitionRows writes rows in (prev BIGINT, next BIGINT, dx REAL) order.
func EncodeTransitionRows(w io.Writer, rows []TransitionRow) error {
	for _, r := range rows {
		if err := writeInt64(w, r.Prev); err != nil {
			return err
		}
		if err := writeInt64(w, r.Next); err != nil {
			return err
		}
		if err := writeFloat32(w, r.Dx); err != nil {
			return err
		}
	}
	return nil
}

// DecodeTransitionRows reads rows until r is exhausted.
func DecodeTransitionRows(r io.Reader) ([]TransitionRow, error) {
	var rows []TransitionRow
	for {
		prev, err := readInt64(r)
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		next, err := readInt64(r)
		if err != nil {
			return nil, fmt.Errorf("sink: truncated transition row: %w", err)
		}
		dx, err := readFloat32(r)
		if err != nil {
			return nil, fmt.Errorf("sink: truncated transition row: %w", err)
		}
		rows = append(rows, TransitionRow{Prev: prev, Next: next, Dx: dx})
	}
}

// EncodeBlueprintRows writes rows in (past, present, future, edge BIGINT,
// policy, regret REAL) order.
func EncodeBlueprintRows(w io.Writer, rows []BlueprintRow) error {
	for _, r := range rows {
		for _, v := range []int64{r.Past, r.Present, r.Future, r.Edge} {
			if err := writeInt64(w, v); err != nil {
				return err
			}
		}
		if err := writeFloat32(w, r.Policy); err != nil {
			return err
		}
		if err := writeFloat32(w, r.Regret); err != nil {
			return err
		}
	}
	return nil
}

// DecodeBlueprintRows reads rows until r is exhausted.
func DecodeBlueprintRows(r io.Reader) ([]BlueprintRow, error) {
	var rows []BlueprintRow
	for {
		past, err := readInt64(r)
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		present, err := readInt64(r)
		if err != nil {
			return nil, err
		}
		future, err := readInt64(r)
		if err != nil {
			return nil, err
		}
		edge, err := readInt64(r)
		if err != nil {
			return nil, err
		}
		policy, err := readFloat32(r)
		if err != nil {
			return nil, err
		}
		regret, err := readFloat32(r)
		if err != nil {
			return nil, err
		}
		rows = append(rows, BlueprintRow{Past: past, Present: present, Future: future, Edge: edge, Policy: policy, Regret: regret})
	}
}
