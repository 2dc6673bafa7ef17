// Package save implements JSON serialization and deserialization of game progress.
package save

import (
	"encoding/json"
	"fmt"

	"github.com/nathoo/questweave/engine/quest"
	"github.com/nathoo/questweave/types"
)

// FormatVersion is bumped whenever SaveData changes incompatibly.
const FormatVersion = 1

// SaveData is the JSON-serializable save format.
type SaveData struct {
	Format    int                    `json:"format"`
	Version   string                 `json:"version"`
	Game      string                 `json:"game"`
	Quests    map[string]quest.Saved `json:"quests"`
	Variables map[string]types.Value `json:"variables"`
	Consumed  []string               `json:"consumed"`
	Focus     string                 `json:"focus,omitempty"`
	Day       int                    `json:"day"`
	Hour      int                    `json:"hour"`
	Counters  map[string]int         `json:"counters,omitempty"`
	Log       []string               `json:"command_log"`
}

// Save serializes save data to indented JSON bytes.
func Save(sd *SaveData) ([]byte, error) {
	sd.Format = FormatVersion
	return json.MarshalIndent(sd, "", "  ")
}

// Load deserializes JSON bytes into SaveData.
func Load(data []byte) (*SaveData, error) {
	var sd SaveData
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, err
	}
	if sd.Format > FormatVersion {
		return nil, fmt.Errorf("save format %d is newer than supported %d", sd.Format, FormatVersion)
	}
	// Ensure maps are never nil after load.
	if sd.Quests == nil {
		sd.Quests = map[string]quest.Saved{}
	}
	if sd.Variables == nil {
		sd.Variables = map[string]types.Value{}
	}
	if sd.Consumed == nil {
		sd.Consumed = []string{}
	}
	if sd.Counters == nil {
		sd.Counters = map[string]int{}
	}
	if sd.Log == nil {
		sd.Log = []string{}
	}
	if sd.Day < 1 {
		sd.Day = 1
	}
	return &sd, nil
}
