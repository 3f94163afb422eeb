// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package image

import (
	"errors"
	"fmt"
)

// ErrUnknownRegion is returned when a storage has no region by that name.
var ErrUnknownRegion = errors.New("unknown storage region")

// StorageReadError indicates that a window could not be read from storage.
// The checksum run it belongs to is abandoned.
type StorageReadError struct {
	Region string
	Offset int64
	Length int
	Err    error
}

func (e *StorageReadError) Error() string {
	return fmt.Sprintf("read %s at 0x%X (%d bytes): %v", e.Region, e.Offset, e.Length, e.Err)
}

func (e *StorageReadError) Unwrap() error {
	return e.Err
}
