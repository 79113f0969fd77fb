// PulseWave Core
// Copyright (c) 2026 The PulseWave Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of PulseWave Core.
//
// PulseWave Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// PulseWave Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with PulseWave Core.  If not, see <http://www.gnu.org/licenses/>.

package readers

import (
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"strings"
)

// ChannelID returns a stable id of the form "{driver}-{hash}" for a channel
// opened on path. The hash is 8 lowercase base32 characters taken from a
// SHA-256 of the normalized inputs, so the same port keeps its id across
// restarts and platforms.
func ChannelID(driver, path string) string {
	d := NormalizeDriverID(driver)
	p := strings.ToLower(strings.ReplaceAll(path, "\\", "/"))

	sum := sha256.Sum256([]byte(d + "\x00" + p))
	enc := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:5])

	return fmt.Sprintf("%s-%s", d, strings.ToLower(enc))
}
