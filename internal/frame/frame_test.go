// Copyright ©2023 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package frame

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceProducer yields pre-built frames. A nil element makes Next fail with
// errBadFrame at that position.
type sliceProducer struct {
	frames []*Buffer
	pos    int
}

var errBadFrame = errors.New("bad frame")

func (p *sliceProducer) Next() (*Buffer, error) {
	if p.pos >= len(p.frames) {
		return nil, io.EOF
	}
	f := p.frames[p.pos]
	p.pos++
	if f == nil {
		return nil, errBadFrame
	}
	return f, nil
}

// makeFrames creates count frames with the frame ordinal stamped into the
// first luma byte, so tests can tell which source frames got paired.
func makeFrames(count, width, height int) []*Buffer {
	frames := make([]*Buffer, count)
	for i := range frames {
		f := NewBuffer(width, height)
		f.Data[0] = byte(i)
		frames[i] = f
	}
	return frames
}

func TestBufferSize(t *testing.T) {
	// One luma byte per pixel plus two quarter size chroma planes.
	assert.Equal(t, 6, BufferSize(2, 2))
	assert.Equal(t, 3110400, BufferSize(1920, 1080))

	b := NewBuffer(4, 2)
	assert.Len(t, b.Data, 12)
	assert.Len(t, b.Luma(), 8)
}

func TestPairSource(t *testing.T) {
	src := NewPairSource(
		&sliceProducer{frames: makeFrames(3, 2, 2)},
		&sliceProducer{frames: makeFrames(3, 2, 2)},
		1)

	for i := 0; i < 3; i++ {
		p, err := src.Next()
		require.NoError(t, err)
		assert.Equal(t, uint64(i), p.Index)
		assert.Equal(t, byte(i), p.Reference.Data[0])
		assert.Equal(t, byte(i), p.Distorted.Data[0])
	}

	_, err := src.Next()
	assert.Equal(t, io.EOF, err)
	// Exhaustion is sticky.
	_, err = src.Next()
	assert.Equal(t, io.EOF, err)
}

func TestPairSourceStride(t *testing.T) {
	// 9 frames with stride 2 pair up source frames 0, 2, 4, 6, 8.
	src := NewPairSource(
		&sliceProducer{frames: makeFrames(9, 2, 2)},
		&sliceProducer{frames: makeFrames(9, 2, 2)},
		2)

	var indexes []uint64
	var sourceFrames []byte
	for {
		p, err := src.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		indexes = append(indexes, p.Index)
		sourceFrames = append(sourceFrames, p.Reference.Data[0])
	}

	assert.Equal(t, []uint64{0, 1, 2, 3, 4}, indexes)
	assert.Equal(t, []byte{0, 2, 4, 6, 8}, sourceFrames)
}

func TestPairSourceStrideCeiling(t *testing.T) {
	// Pair count is ⌈frames/stride⌉ for equal length streams.
	tests := []struct {
		frames, stride, wantPairs int
	}{
		{10, 1, 10},
		{10, 2, 5},
		{10, 3, 4},
		{10, 10, 1},
		{10, 15, 1},
		{1, 5, 1},
		{0, 3, 0},
	}
	for _, tc := range tests {
		src := NewPairSource(
			&sliceProducer{frames: makeFrames(tc.frames, 2, 2)},
			&sliceProducer{frames: makeFrames(tc.frames, 2, 2)},
			tc.stride)
		var got int
		for {
			_, err := src.Next()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			got++
		}
		assert.Equal(t, tc.wantPairs, got, "frames=%d stride=%d", tc.frames, tc.stride)
	}
}

func TestPairSourceLengthMismatch(t *testing.T) {
	src := NewPairSource(
		&sliceProducer{frames: makeFrames(10, 2, 2)},
		&sliceProducer{frames: makeFrames(9, 2, 2)},
		1)

	for i := 0; i < 9; i++ {
		_, err := src.Next()
		require.NoError(t, err)
	}

	_, err := src.Next()
	var lenErr *LengthMismatchError
	require.ErrorAs(t, err, &lenErr)
	assert.Equal(t, uint64(10), lenErr.RefFrames)
	assert.Equal(t, uint64(9), lenErr.DistFrames)
}

func TestPairSourceDecodeError(t *testing.T) {
	// Distorted frame 5 fails to decode.
	distorted := makeFrames(10, 2, 2)
	distorted[5] = nil
	src := NewPairSource(
		&sliceProducer{frames: makeFrames(10, 2, 2)},
		&sliceProducer{frames: distorted},
		1)

	for i := 0; i < 5; i++ {
		_, err := src.Next()
		require.NoError(t, err)
	}

	_, err := src.Next()
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, StreamDistorted, decErr.Stream)
	assert.Equal(t, uint64(5), decErr.Index)
	assert.ErrorIs(t, err, errBadFrame)
}

func TestPairSourceDecodeErrorBeatsLengthMismatch(t *testing.T) {
	// Reference ends while distorted fails at the same step: the decode
	// failure is the reported cause.
	distorted := makeFrames(4, 2, 2)
	distorted[3] = nil
	src := NewPairSource(
		&sliceProducer{frames: makeFrames(3, 2, 2)},
		&sliceProducer{frames: distorted},
		1)

	for i := 0; i < 3; i++ {
		_, err := src.Next()
		require.NoError(t, err)
	}

	_, err := src.Next()
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, StreamDistorted, decErr.Stream)
}

func TestPairSourceDimensionMismatch(t *testing.T) {
	src := NewPairSource(
		&sliceProducer{frames: makeFrames(2, 4, 2)},
		&sliceProducer{frames: makeFrames(2, 2, 2)},
		1)

	_, err := src.Next()
	var dimErr *DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, uint64(0), dimErr.Index)
	assert.Equal(t, 4, dimErr.RefWidth)
	assert.Equal(t, 2, dimErr.DistWidth)
}

func TestPairSourceDecodeErrorInDiscardedFrame(t *testing.T) {
	// With stride 3 frame 1 is never paired, its decode failure still aborts.
	reference := makeFrames(6, 2, 2)
	reference[1] = nil
	src := NewPairSource(
		&sliceProducer{frames: reference},
		&sliceProducer{frames: makeFrames(6, 2, 2)},
		3)

	_, err := src.Next()
	require.NoError(t, err)

	_, err = src.Next()
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, StreamReference, decErr.Stream)
	assert.Equal(t, uint64(1), decErr.Index)
}
