/*
Copyright © 2019 the retinotopy authors.
This file is part of retinotopy.

retinotopy is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

retinotopy is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with retinotopy.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package hash creates deterministic identifiers for cache keys and
// file names.
package hash

import (
	"crypto/sha256"
	"encoding/gob"
	"fmt"
)

// Hash returns a hex-encoded digest of the gob encoding of data.
// It panics if data cannot be gob-encoded; it is meant for strings
// and plain exported-field structs.
func Hash(data interface{}) string {
	h := sha256.New()
	if err := gob.NewEncoder(h).Encode(data); err != nil {
		panic(fmt.Errorf("hash: encoding %T: %v", data, err))
	}
	return fmt.Sprintf("%x", h.Sum(nil)[0:16])
}
