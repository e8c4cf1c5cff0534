// Copyright ©2023 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Application Config related tests.
package main

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_loadDefaultConfig(t *testing.T) {
	c, err := loadDefaultConfig()
	assert.NoError(t, err, "Should create DefaultConfig without errors")

	assert.NoError(t, c.Verify(), "DefaultConfig should be valid")
}

func Test_loadDefaultConfig_Negative(t *testing.T) {
	// Messing up PATH should result in failure detecting ffmpeg and ffprobe which
	// should result in error from calling DefaultConfig().
	t.Setenv("PATH", "")
	_, err := loadDefaultConfig()
	assert.ErrorContains(t, err, "DefaultConfig: ")
}

func Test_loadConfigFile(t *testing.T) {
	// For this case we do not strictly need config that is valid as per Config.Verify(),
	// just verify that loading configuration from file works.
	tests := map[string]struct {
		want  Config
		given []byte
	}{
		"Full": {
			given: []byte(`{
				"ffmpeg_path": "test_ffmpeg",
				"ffprobe_path": "test_ffprobe",
				"ffmpeg_decode_template": "test template",
				"report_file_name": "test_report.json",
				"workers": 4,
				"stride": 2,
				"percentiles": [1, 50, 99]
			}`),
			want: Config{
				FfmpegPath:           NewConfigVal("test_ffmpeg"),
				FfprobePath:          NewConfigVal("test_ffprobe"),
				FfmpegDecodeTemplate: NewConfigVal("test template"),
				ReportFileName:       NewConfigVal("test_report.json"),
				Workers:              NewConfigVal(4),
				Stride:               NewConfigVal(2),
				Percentiles:          NewConfigVal([]float64{1, 50, 99}),
			},
		},
		"Partial": {
			given: []byte(`{
				"ffmpeg_path": "test_ffmpeg",
				"workers": 4
			}`),
			want: Config{
				FfmpegPath: NewConfigVal("test_ffmpeg"),
				Workers:    NewConfigVal(4),
			},
		},
		"Empty JSON": {
			given: []byte(`{}`),
			want:  Config{},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			// Create config file with given contents.
			confFile := path.Join(t.TempDir(), fmt.Sprintf("config.%s", "json"))
			err := os.WriteFile(confFile, tt.given, 0o600)
			require.NoError(t, err)

			// Load config and assert contents are as expected.
			got, err := loadConfigFromFile(confFile)
			assert.NoError(t, err, "Should be no error loading configuration from file")

			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_Config_OverrideFrom(t *testing.T) {
	fixBaseConf := func() Config {
		return Config{
			FfmpegPath:           NewConfigVal("base_ffmpeg"),
			FfprobePath:          NewConfigVal("base_ffprobe"),
			FfmpegDecodeTemplate: NewConfigVal("base template"),
			ReportFileName:       NewConfigVal("base_report.json"),
			Workers:              NewConfigVal(1),
			Stride:               NewConfigVal(1),
			Percentiles:          NewConfigVal([]float64{5, 50, 95}),
		}
	}

	tests := map[string]struct {
		want        Config
		overrideSrc Config
	}{
		"Full config overrides all fields": {
			overrideSrc: Config{
				FfmpegPath:           NewConfigVal("test_ffmpeg"),
				FfprobePath:          NewConfigVal("test_ffprobe"),
				FfmpegDecodeTemplate: NewConfigVal("test template"),
				ReportFileName:       NewConfigVal("test_report.json"),
				Workers:              NewConfigVal(8),
				Stride:               NewConfigVal(5),
				Percentiles:          NewConfigVal([]float64{50}),
			},
			want: Config{
				FfmpegPath:           NewConfigVal("test_ffmpeg"),
				FfprobePath:          NewConfigVal("test_ffprobe"),
				FfmpegDecodeTemplate: NewConfigVal("test template"),
				ReportFileName:       NewConfigVal("test_report.json"),
				Workers:              NewConfigVal(8),
				Stride:               NewConfigVal(5),
				Percentiles:          NewConfigVal([]float64{50}),
			},
		},
		"Partial config overrides partial fields": {
			overrideSrc: Config{
				FfmpegPath: NewConfigVal("test_ffmpeg"),
				Workers:    NewConfigVal(8),
			},
			want: Config{
				// Overridden fields.
				FfmpegPath: NewConfigVal("test_ffmpeg"),
				Workers:    NewConfigVal(8),
				// Unmodified fields.
				FfprobePath:          NewConfigVal("base_ffprobe"),
				FfmpegDecodeTemplate: NewConfigVal("base template"),
				ReportFileName:       NewConfigVal("base_report.json"),
				Stride:               NewConfigVal(1),
				Percentiles:          NewConfigVal([]float64{5, 50, 95}),
			},
		},
		"Empty config does not override any fields": {
			overrideSrc: Config{},
			want:        fixBaseConf(),
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			// Create a base Config object. This is the Config that we shall attempt to
			// override.
			given := fixBaseConf()

			// Attempt to override config from overrideSrc.
			given.OverrideFrom(tt.overrideSrc)

			assert.Equal(t, tt.want, given)
		})
	}
}

func Test_Config_Verify_Negative(t *testing.T) {
	// Start from a broken Config and check all complaints show up.
	c := Config{}
	err := c.Verify()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorContains(t, err, "invalid ffmpeg path")
	assert.ErrorContains(t, err, "invalid ffprobe path")
	assert.ErrorContains(t, err, "empty ffmpeg decode template")
	assert.ErrorContains(t, err, "empty report file name")
	assert.ErrorContains(t, err, "workers must be >= 1")
	assert.ErrorContains(t, err, "stride must be >= 1")
}

func Test_DumpConfApp_Run(t *testing.T) {
	commandOutput := &bytes.Buffer{}
	// This is one option we try to make sure is in dumped config file.
	want := `"report_file_name": "test_report.json"`

	// Create config file with given contents.
	configRaw := []byte("{" + want + "}")
	confFile := path.Join(t.TempDir(), fmt.Sprintf("config.%s", "json"))
	require.NoError(t, os.WriteFile(confFile, configRaw, 0o600))

	cmd, ok := CreateDumpConfCommand().(*DumpConfApp)
	require.True(t, ok)

	// Redirect output to buffer
	cmd.out = commandOutput

	err := cmd.Run([]string{"-conf", confFile})
	assert.NoError(t, err, "Unexpected error running dump-conf")
	// Check that config dump contains options we specified in config file.
	assert.Contains(t, commandOutput.String(), want)
}
