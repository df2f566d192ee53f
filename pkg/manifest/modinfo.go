package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// ModInfoFile is the name of the legacy mod metadata file at an archive root.
const ModInfoFile = "mcmod.info"

// ModInfo is the subset of legacy mod metadata used for conflict checks.
type ModInfo struct {
	ModID   string `json:"modid"`
	Version string `json:"version"`
}

// ParseModInfo reads legacy mod metadata. Both historical shapes are
// accepted: a bare array of mod objects, and {"modListVersion": 2,
// "modList": [...]}. Mods without an id are dropped.
func ParseModInfo(r io.Reader) ([]ModInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var mods []ModInfo
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &mods); err != nil {
			return nil, fmt.Errorf("parse %s: %w", ModInfoFile, err)
		}
	case '{':
		var wrapped struct {
			ModList []ModInfo `json:"modList"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("parse %s: %w", ModInfoFile, err)
		}
		mods = wrapped.ModList
	default:
		return nil, fmt.Errorf("parse %s: unexpected content", ModInfoFile)
	}

	out := mods[:0]
	for _, m := range mods {
		if m.ModID != "" {
			out = append(out, m)
		}
	}
	return out, nil
}
