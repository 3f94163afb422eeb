// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// mfmode - MXCHIP manufacturing test console
//
// Runs the factory-test session on a module and drives it from the
// manufacturing-line station.

package main

import (
	"os"

	"github.com/Thermoquad/mfmode/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
