package save

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/nathoo/questweave/engine/quest"
	"github.com/nathoo/questweave/types"
)

func TestRoundTrip(t *testing.T) {
	sd := &SaveData{
		Version: "1.0",
		Game:    "Test Hub",
		Quests: map[string]quest.Saved{
			"boxes":  {State: types.InProgress, Step: 1, Count: 2},
			"mixing": {State: types.RequirementsNotMet},
		},
		Variables: map[string]types.Value{
			"met_keeper": types.BoolValue(true),
			"coins":      types.IntValue(3),
			"mood":       types.StringValue("calm"),
			"ratio":      types.FloatValue(0.5),
		},
		Consumed: []string{"box1", "box2"},
		Focus:    "keeper",
		Day:      2,
		Hour:     14,
		Counters: map[string]int{"coins": 3},
		Log:      []string{"go box", ""},
	}

	data, err := Save(sd)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(data)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Format != FormatVersion {
		t.Errorf("format = %d", got.Format)
	}
	if !reflect.DeepEqual(got, sd) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, sd)
	}
}

func TestLoad_FillsEmptyFields(t *testing.T) {
	sd, err := Load([]byte(`{"game":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	if sd.Quests == nil || sd.Variables == nil || sd.Consumed == nil || sd.Counters == nil || sd.Log == nil {
		t.Errorf("nil collections after load: %+v", sd)
	}
	if sd.Day != 1 {
		t.Errorf("day = %d, want 1", sd.Day)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	if _, err := Load([]byte("{nope")); err == nil {
		t.Error("expected error")
	}
}

func TestLoad_NewerFormat(t *testing.T) {
	data, _ := json.Marshal(map[string]any{"format": FormatVersion + 1})
	_, err := Load(data)
	if err == nil || !strings.Contains(err.Error(), "newer") {
		t.Errorf("err = %v", err)
	}
}
