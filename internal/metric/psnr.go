// Copyright ©2023 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Built-in per-frame quality metric.
//
// The pipeline treats the metric as an external collaborator behind the
// pipeline.Scorer seam. PSNR over the luma plane ships as the default so the
// tool works without wiring in an out-of-process metric.

package metric

import (
	"fmt"
	"math"

	"github.com/evolution-gaming/vqcmp/internal/frame"
)

// Clamp for the sum of squared errors, same trick ffmpeg's psnr filter uses
// so identical frames score a large finite value instead of +Inf.
const minSSE = 1e-9

// PSNR computes peak signal-to-noise ratio over the luma plane of a frame
// pair. Pure and safe for concurrent use, it satisfies pipeline.Scorer.
func PSNR(ref, dist *frame.Buffer) (float64, error) {
	r := ref.Luma()
	d := dist.Luma()
	if len(r) != len(d) {
		return 0, fmt.Errorf("luma plane size mismatch: %d != %d", len(r), len(d))
	}
	if len(r) == 0 {
		return 0, fmt.Errorf("empty luma plane")
	}

	var sse float64
	for i := range r {
		diff := float64(r[i]) - float64(d[i])
		sse += diff * diff
	}
	if sse < minSSE {
		sse = minSSE
	}

	mse := sse / float64(len(r))
	return 10 * math.Log10(255*255/mse), nil
}
