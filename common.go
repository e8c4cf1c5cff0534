// Copyright ©2023 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Reusable parts of vqcmp application and subcommand infrastructure.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Commander interface should be implemented by commands and sub-commands.
type Commander interface {
	Run([]string) error
	Name() string
	Help()
}

// AppError a custom error returned from CLI application.
//
// AppError is handy error type envisioned to be used in CLI's main.
// ExitCode() should be used as argument for os.Exit().
type AppError struct {
	msg      string
	exitCode int
}

// Error implements error interface for AppError.
func (e *AppError) Error() string {
	return e.msg
}

// ExitCode returns CLI application's exit code.
func (e *AppError) ExitCode() int {
	return e.exitCode
}

// printSubCommandUsage helper to format and print subcommand's usage.
func printSubCommandUsage(longHelp string, fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage of sub-command %s:\n\n", fs.Name())
	fmt.Fprintf(fs.Output(), "%s\n\n", longHelp)
	fs.PrintDefaults()
}

// fileExists is a simple helper to check if file exists.
func fileExists(f string) bool {
	fi, err := os.Stat(f)
	if err != nil {
		return false
	}
	return fi.Mode().IsRegular()
}

// parsePercentiles parses comma separated percentile ranks, e.g. "5,50,95".
func parsePercentiles(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	ranks := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid percentile %q: %w", p, err)
		}
		if v < 0 || v > 100 {
			return nil, fmt.Errorf("percentile %v out of range [0, 100]", v)
		}
		ranks = append(ranks, v)
	}
	return ranks, nil
}
