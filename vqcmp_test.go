// Copyright ©2023 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Tests for vqcmp tool subcommands.
package main

import (
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Error cases for score sub-command flags.
func Test_ScoreApp_Run_FlagErrors(t *testing.T) {
	tempDir := t.TempDir()
	// An existing file to stand in for one side of the pair.
	existing := path.Join(tempDir, "video.mp4")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o600))

	tests := map[string]struct {
		// substring in Error()
		want      string
		givenArgs []string
	}{
		"Wrong flags": {
			givenArgs: []string{"-zzz", "aaaa", "-ref", existing, "-dist", existing},
			want:      "score usage error",
		},
		"Mandatory ref flag missing": {
			givenArgs: []string{"-dist", existing},
			want:      "mandatory options -ref and -dist are missing",
		},
		"Mandatory dist flag missing": {
			givenArgs: []string{"-ref", existing},
			want:      "mandatory options -ref and -dist are missing",
		},
		"Reference file does not exist": {
			givenArgs: []string{"-ref", path.Join(tempDir, "nope.mp4"), "-dist", existing},
			want:      "video file does not exist",
		},
		"Distorted file does not exist": {
			givenArgs: []string{"-ref", existing, "-dist", path.Join(tempDir, "nope.mp4")},
			want:      "video file does not exist",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			app := CreateScoreCommand()
			err := app.Run(tt.givenArgs)
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func Test_ScoreApp_Run_BadPercentiles(t *testing.T) {
	tempDir := t.TempDir()
	existing := path.Join(tempDir, "video.mp4")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o600))

	app := CreateScoreCommand()
	err := app.Run([]string{"-ref", existing, "-dist", existing, "-percentiles", "5,wat"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "invalid percentile")
}

func Test_root(t *testing.T) {
	tests := map[string]struct {
		givenArgs    []string
		wantExitCode int
	}{
		"No arguments":    {givenArgs: []string{}, wantExitCode: 2},
		"Unknown command": {givenArgs: []string{"frobnicate"}, wantExitCode: 2},
		"Help flag":       {givenArgs: []string{"-h"}, wantExitCode: 2},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := root(tt.givenArgs)
			require.Error(t, err)
			var appErr *AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.wantExitCode, appErr.ExitCode())
		})
	}
}

func Test_root_Version(t *testing.T) {
	assert.NoError(t, root([]string{"version"}))
}
