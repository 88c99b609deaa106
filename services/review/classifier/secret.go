// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classifier

import (
	"fmt"

	"github.com/awnumar/memguard"
)

// Secret holds an API key encrypted in a memguard enclave.
//
// # Description
//
// The plaintext only exists in locked memory for the duration of a Use
// callback. A nil *Secret means "no key" and Use passes "".
//
// # Thread Safety
//
// Safe for concurrent use.
type Secret struct {
	enclave *memguard.Enclave
}

// NewSecret seals value. Returns nil for an empty value.
func NewSecret(value string) *Secret {
	if value == "" {
		return nil
	}
	return &Secret{enclave: memguard.NewEnclave([]byte(value))}
}

// Use opens the enclave and passes the plaintext to fn. The string must
// not be retained after fn returns.
func (s *Secret) Use(fn func(key string) error) error {
	if s == nil || s.enclave == nil {
		return fn("")
	}

	buf, err := s.enclave.Open()
	if err != nil {
		return fmt.Errorf("opening key enclave: %w", err)
	}
	defer buf.Destroy()

	return fn(buf.String())
}

// IsSet reports whether a key is present.
func (s *Secret) IsSet() bool {
	return s != nil && s.enclave != nil
}
