// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package platform adapts the host machine's radios and identity to the
// factory-test session.
package platform

import (
	"strings"

	"github.com/denisbrodbeck/machineid"
)

// AppID keys the protected machine ID so it is stable per application.
const AppID = "mfmode"

// SerialNumber returns configured when set, otherwise an identifier derived
// from the machine ID, upper-cased and cut to 16 characters.
func SerialNumber(configured string) string {
	if configured != "" {
		return configured
	}
	id, err := machineid.ProtectedID(AppID)
	if err != nil {
		return "unknown"
	}
	id = strings.ToUpper(id)
	if len(id) > 16 {
		id = id[:16]
	}
	return id
}
