// Copyright ©2023 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Decoded video frame abstractions.

package frame

import (
	"fmt"
	"io"
)

// Buffer holds a single decoded frame in planar YUV 4:2:0 layout: a full
// resolution luma plane followed by two quarter resolution chroma planes.
type Buffer struct {
	Width  int
	Height int
	Data   []byte
}

// NewBuffer allocates a Buffer for given frame dimensions.
func NewBuffer(width, height int) *Buffer {
	return &Buffer{
		Width:  width,
		Height: height,
		Data:   make([]byte, BufferSize(width, height)),
	}
}

// BufferSize returns the byte size of a single YUV 4:2:0 frame.
func BufferSize(width, height int) int {
	return width*height + 2*(width*height/4)
}

// Luma returns the luma plane of the frame.
func (b *Buffer) Luma() []byte {
	return b.Data[:b.Width*b.Height]
}

// Producer is the interface wrapping a stateful, sequential frame decoder.
//
// Next returns the next decoded frame. It returns io.EOF when the stream is
// cleanly exhausted, any other error indicates a decode failure. Produced
// sequence is finite and non-restartable.
type Producer interface {
	Next() (*Buffer, error)
}

// Pair is one reference frame matched with its distorted counterpart.
//
// Index is the ordinal position in the (possibly strided) pair sequence,
// starting at 0. Ownership of both buffers transfers to the consumer.
type Pair struct {
	Index     uint64
	Reference *Buffer
	Distorted *Buffer
}

// PairSource yields matched frame pairs from two producers.
//
// With stride N it advances both producers by N frames per step, discarding
// intermediate frames on both sides identically, so temporal alignment is
// preserved. The sequence terminates cleanly only when both producers report
// exhaustion at the same step.
type PairSource struct {
	ref     Producer
	dist    Producer
	stride  int
	started bool
	// Count of frames pulled from each producer so far.
	refFrames  uint64
	distFrames uint64
	// Next pair ordinal to hand out.
	next uint64
}

// NewPairSource pairs reference and distorted producers with given stride.
// Stride values < 1 are treated as 1.
func NewPairSource(ref, dist Producer, stride int) *PairSource {
	if stride < 1 {
		stride = 1
	}
	return &PairSource{ref: ref, dist: dist, stride: stride}
}

// Next returns the next frame pair. It returns io.EOF on clean simultaneous
// exhaustion of both streams. Length mismatch, decode failure and frame
// dimension mismatch are fatal errors.
func (s *PairSource) Next() (*Pair, error) {
	// Discard stride-1 frames on both sides before pulling the pair. Skipped
	// frames still have to be decoded, so decode errors surface here too.
	if s.started {
		for i := 1; i < s.stride; i++ {
			if _, _, err := s.step(); err != nil {
				return nil, err
			}
		}
	}
	s.started = true

	ref, dist, err := s.step()
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return nil, io.EOF
	}

	if ref.Width != dist.Width || ref.Height != dist.Height {
		return nil, &DimensionMismatchError{
			Index:      s.next,
			RefWidth:   ref.Width,
			RefHeight:  ref.Height,
			DistWidth:  dist.Width,
			DistHeight: dist.Height,
		}
	}

	p := &Pair{Index: s.next, Reference: ref, Distorted: dist}
	s.next++
	return p, nil
}

// step advances both producers by one frame. Returns nil buffers when both
// streams ended at this step.
func (s *PairSource) step() (ref, dist *Buffer, err error) {
	ref, refErr := s.ref.Next()
	dist, distErr := s.dist.Next()

	switch {
	case refErr == io.EOF && distErr == io.EOF:
		return nil, nil, nil
	case refErr != nil && refErr != io.EOF:
		return nil, nil, &DecodeError{Stream: StreamReference, Index: s.refFrames, Err: refErr}
	case distErr != nil && distErr != io.EOF:
		return nil, nil, &DecodeError{Stream: StreamDistorted, Index: s.distFrames, Err: distErr}
	case refErr == io.EOF || distErr == io.EOF:
		// One stream ran dry while the other still yields frames. The longer
		// side counts its first frame past the short side's end.
		n := s.refFrames
		m := s.distFrames
		if refErr == io.EOF {
			m++
		} else {
			n++
		}
		return nil, nil, &LengthMismatchError{RefFrames: n, DistFrames: m}
	}

	s.refFrames++
	s.distFrames++
	return ref, dist, nil
}

// Stream labels used in decode errors.
const (
	StreamReference = "reference"
	StreamDistorted = "distorted"
)

// DecodeError is a fatal per-frame decode failure.
type DecodeError struct {
	// Which stream failed, StreamReference or StreamDistorted.
	Stream string
	// Ordinal of the offending frame within its stream.
	Index uint64
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s stream frame %d: %v", e.Stream, e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DimensionMismatchError is a fatal mismatch of paired frame dimensions.
type DimensionMismatchError struct {
	Index      uint64
	RefWidth   int
	RefHeight  int
	DistWidth  int
	DistHeight int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("frame pair %d dimension mismatch: reference %dx%d != distorted %dx%d",
		e.Index, e.RefWidth, e.RefHeight, e.DistWidth, e.DistHeight)
}

// LengthMismatchError is a fatal mismatch of stream lengths, raised when one
// producer exhausts before the other. Frame counts are the final number of
// frames observed on each side, the longer side counts its first frame past
// the short side's end.
type LengthMismatchError struct {
	RefFrames  uint64
	DistFrames uint64
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("stream length mismatch: reference has %d frames, distorted has %d", e.RefFrames, e.DistFrames)
}
