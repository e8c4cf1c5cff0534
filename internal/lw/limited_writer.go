// Copyright ©2023 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// A capped writer for bounded capture of subprocess output.
//
// Holds on to the head of a decoder's stderr for error reports without
// letting a chatty process grow the capture without bound. Writes past the
// cap are silently discarded and the writer never fails, so the wrapped
// process is not disturbed mid-run.
package lw

import "io"

type LimitedWriter struct {
	// Capture into this Writer.
	W io.Writer
	// Remaining capture budget in bytes.
	N uint
}

// Write implements io.Writer for *LimitedWriter. It always reports the full
// input length as consumed, only the first N bytes reach the wrapped writer.
func (s *LimitedWriter) Write(b []byte) (int, error) {
	if s.N == 0 {
		return len(b), nil
	}

	keep := b
	if uint(len(keep)) > s.N {
		keep = keep[:s.N]
	}
	n, err := s.W.Write(keep)
	s.N -= uint(n)
	if err != nil {
		return n, err
	}
	return len(b), nil
}

func LimitWriter(w io.Writer, n uint) io.Writer {
	return &LimitedWriter{w, n}
}
