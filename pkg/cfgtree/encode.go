// SPDX-License-Identifier: MPL-2.0

package cfgtree

import (
	"bytes"
	"encoding/json"
)

// Encode renders v as indented JSON with map keys sorted, followed by a
// newline. HTML characters are not escaped so commands print verbatim.
func Encode(v Value, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(ToAny(v)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
