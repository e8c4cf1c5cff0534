// Copyright ©2023 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Frame producers backed by an ffmpeg decode subprocess.
//
// Decoding is inherently sequential per stream, ffmpeg writes raw YUV 4:2:0
// frames to a pipe and FfmpegSource slices them into frame Buffers one
// Next() call at a time.

package decode

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"text/template"

	"github.com/evolution-gaming/vqcmp/internal/frame"
	"github.com/evolution-gaming/vqcmp/internal/logging"
	"github.com/evolution-gaming/vqcmp/internal/lw"
	"github.com/google/shlex"
)

// DefaultFfmpegDecodeTemplate is the argument template for the decode
// subprocess. Exposed via configuration so exotic inputs can tweak it.
var DefaultFfmpegDecodeTemplate = "-hide_banner -nostats -loglevel error " +
	"-i {{.InputFile}} -f rawvideo -pix_fmt yuv420p -"

// Cap on captured decoder stderr carried in error reports.
const stderrCaptureLimit = 8 << 10

// FfmpegSourceConfig exposes parameters for FfmpegSource creation.
type FfmpegSourceConfig struct {
	FfmpegPath     string
	DecodeTemplate string
}

// FfmpegSource implements frame.Producer by reading raw frames from a
// running ffmpeg process. It is lazy, finite and non-restartable.
type FfmpegSource struct {
	cmd       *exec.Cmd
	stdout    *bufio.Reader
	stderr    bytes.Buffer
	inputFile string
	width     int
	height    int
	// Count of frames handed out so far.
	frames uint64
	done   bool
	// Latched first failure, re-reported on any further Next call so a
	// retry can never observe a clean EOF after an error.
	readErr error
}

// NewFfmpegSource starts an ffmpeg decode subprocess for inputFile. Frame
// dimensions must be known up-front (from ffprobe metadata), raw video
// output carries no framing.
func NewFfmpegSource(cfg *FfmpegSourceConfig, inputFile string, width, height int) (*FfmpegSource, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("NewFfmpegSource() invalid dimensions %dx%d", width, height)
	}

	tplContext := struct {
		InputFile string
	}{
		InputFile: inputFile,
	}

	var args strings.Builder
	tpl, err := template.New("ffmpeg-decode").Parse(cfg.DecodeTemplate)
	if err != nil {
		return nil, fmt.Errorf("NewFfmpegSource() parse template: %w", err)
	}
	if err := tpl.Execute(&args, tplContext); err != nil {
		return nil, fmt.Errorf("NewFfmpegSource() execute template: %w", err)
	}
	ffmpegArgs, err := shlex.Split(args.String())
	if err != nil {
		return nil, fmt.Errorf("NewFfmpegSource() prepare command: %w", err)
	}

	s := &FfmpegSource{
		inputFile: inputFile,
		width:     width,
		height:    height,
	}

	s.cmd = exec.Command(cfg.FfmpegPath, ffmpegArgs...) //#nosec G204
	s.cmd.Stderr = lw.LimitWriter(&s.stderr, stderrCaptureLimit)
	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("NewFfmpegSource() stdout pipe: %w", err)
	}
	s.stdout = bufio.NewReaderSize(stdout, 1<<20)

	logging.Debugf("Decoder command: %v", s.cmd.Args)
	if err := s.cmd.Start(); err != nil {
		return nil, fmt.Errorf("NewFfmpegSource() starting ffmpeg: %w", err)
	}

	return s, nil
}

// Next implements frame.Producer. It returns io.EOF after the last full
// frame once the decoder exited cleanly.
func (s *FfmpegSource) Next() (*frame.Buffer, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	if s.done {
		return nil, io.EOF
	}

	buf := frame.NewBuffer(s.width, s.height)
	_, err := io.ReadFull(s.stdout, buf.Data)
	switch {
	case err == io.EOF:
		s.done = true
		if werr := s.cmd.Wait(); werr != nil {
			s.readErr = s.decodeFailure(werr)
			return nil, s.readErr
		}
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		// Stream ended mid-frame, the decoder bailed out.
		s.done = true
		werr := s.cmd.Wait()
		s.readErr = s.decodeFailure(fmt.Errorf("truncated frame %d: %w", s.frames, errors.Join(err, werr)))
		return nil, s.readErr
	case err != nil:
		s.readErr = fmt.Errorf("reading frame %d of %s: %w", s.frames, s.inputFile, err)
		return nil, s.readErr
	}

	s.frames++
	return buf, nil
}

// Close releases the subprocess. Needed only when the source is abandoned
// before exhaustion, e.g. when the pipeline cancels.
func (s *FfmpegSource) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	if err := s.cmd.Process.Kill(); err != nil {
		return err
	}
	_ = s.cmd.Wait()
	return nil
}

func (s *FfmpegSource) decodeFailure(err error) error {
	if s.stderr.Len() > 0 {
		return fmt.Errorf("ffmpeg decode of %s: %w\ndecoder output:\n%s",
			s.inputFile, err, s.stderr.String())
	}
	return fmt.Errorf("ffmpeg decode of %s: %w", s.inputFile, err)
}
