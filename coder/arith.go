// Package coder entropy-codes quantizer state streams with a binary
// arithmetic coder and adaptive frequency models.
package coder

import "io"

// 64-bit Moffat-style arithmetic coder. The interval [lo, lo+width) is
// renormalized whenever width falls to a quarter of the register,
// emitting known bits and carrying straddle bits as outstanding.
const (
	codeBits        = 64
	halfInterval    = uint64(1) << (codeBits - 1)
	quarterInterval = uint64(1) << (codeBits - 2)
)

type arithEncoder struct {
	w           *bitWriter
	lo          uint64
	width       uint64
	outstanding uint64
}

func newArithEncoder(w io.Writer) *arithEncoder {
	return &arithEncoder{
		w:     newBitWriter(w),
		width: halfInterval,
	}
}

func (e *arithEncoder) bitPlusFollow(bit byte) error {
	if err := e.w.WriteBit(bit); err != nil {
		return err
	}
	follow := byte(1) - bit
	for ; e.outstanding > 0; e.outstanding-- {
		if err := e.w.WriteBit(follow); err != nil {
			return err
		}
	}
	return nil
}

func (e *arithEncoder) renormalize() error {
	for e.width <= quarterInterval {
		switch {
		case e.lo >= halfInterval:
			if err := e.bitPlusFollow(1); err != nil {
				return err
			}
			e.lo -= halfInterval
		case e.lo+e.width <= halfInterval:
			if err := e.bitPlusFollow(0); err != nil {
				return err
			}
		default:
			e.outstanding++
			e.lo -= quarterInterval
		}
		e.lo <<= 1
		e.width <<= 1
	}
	return nil
}

// Encode narrows the interval to the symbol occupying [cum, cum+freq)
// out of total.
func (e *arithEncoder) Encode(cum, freq, total uint64) error {
	r := e.width / total
	e.lo += r * cum
	if cum+freq < total {
		e.width = r * freq
	} else {
		e.width -= r * cum
	}
	return e.renormalize()
}

// Finish emits the remaining register bits and flushes the stream.
func (e *arithEncoder) Finish() error {
	for i := 0; i < codeBits; i++ {
		if err := e.bitPlusFollow(byte(e.lo >> (codeBits - 1))); err != nil {
			return err
		}
		e.lo <<= 1
	}
	return e.w.Flush()
}

type arithDecoder struct {
	r     *bitReader
	d     uint64 // distance of the coded value above the interval base
	width uint64
	rTmp  uint64 // r from the preceding Target call, reused by Consume
}

func newArithDecoder(r io.Reader) *arithDecoder {
	dec := &arithDecoder{
		r:     newBitReader(r),
		width: halfInterval,
	}
	for i := 0; i < codeBits; i++ {
		dec.d = dec.d<<1 | uint64(dec.r.ReadBit())
	}
	return dec
}

// Target returns the cumulative-frequency value the coded stream points
// at, in [0, total).
func (d *arithDecoder) Target(total uint64) uint64 {
	d.rTmp = d.width / total
	t := d.d / d.rTmp
	if t >= total {
		t = total - 1
	}
	return t
}

// Consume removes the decoded symbol's interval [cum, cum+freq) of
// total from the stream. Must follow a Target call with the same total.
func (d *arithDecoder) Consume(cum, freq, total uint64) {
	d.d -= d.rTmp * cum
	if cum+freq < total {
		d.width = d.rTmp * freq
	} else {
		d.width -= d.rTmp * cum
	}
	for d.width <= quarterInterval {
		d.d = d.d<<1 | uint64(d.r.ReadBit())
		d.width <<= 1
	}
}
