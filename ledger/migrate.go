package ledger

import (
	"encoding/json"
	"fmt"
)

// Migrate parses a raw state document, upgrading the legacy layout where
// needed. The legacy format stored positions directly at the top level,
// keyed by symbol, with no wrapper object; the current format wraps them
// under "positions" alongside cash, history and stats.
func Migrate(raw []byte) (Snapshot, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Snapshot{}, fmt.Errorf("parse state: %w", err)
	}
	if len(doc) == 0 {
		return Snapshot{}, nil
	}

	if _, ok := doc["positions"]; ok {
		var snap Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return Snapshot{}, fmt.Errorf("parse state: %w", err)
		}
		return snap, nil
	}

	if !looksLikeLegacyPositions(doc) {
		// Current format with no open positions.
		var snap Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return Snapshot{}, fmt.Errorf("parse state: %w", err)
		}
		return snap, nil
	}

	positions := make(map[string]Position, len(doc))
	for symbol, rawPos := range doc {
		var p Position
		if err := json.Unmarshal(rawPos, &p); err != nil {
			return Snapshot{}, fmt.Errorf("migrate legacy position %q: %w", symbol, err)
		}
		if p.Symbol == "" {
			p.Symbol = symbol
		}
		positions[symbol] = p
	}
	return Snapshot{Positions: positions}, nil
}

// looksLikeLegacyPositions reports whether every top-level value is an object
// carrying the position fields.
func looksLikeLegacyPositions(doc map[string]json.RawMessage) bool {
	for _, rawVal := range doc {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(rawVal, &obj); err != nil {
			return false
		}
		if _, ok := obj["entryPrice"]; !ok {
			return false
		}
		if _, ok := obj["quantity"]; !ok {
			return false
		}
	}
	return true
}
