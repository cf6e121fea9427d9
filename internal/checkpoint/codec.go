// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package checkpoint

import (
	"encoding/json"
	"fmt"
)

func encode(cp Checkpoint) ([]byte, error) {
	buf, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("checkpoint: encode: %w", err)
	}
	return buf, nil
}

func decode(buf []byte) (Checkpoint, error) {
	var cp Checkpoint
	if err := json.Unmarshal(buf, &cp); err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint: decode: %w", err)
	}
	return cp, nil
}
