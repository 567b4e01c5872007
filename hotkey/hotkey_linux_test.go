//go:build linux

package hotkey

import "testing"

func TestComboState(t *testing.T) {
	type ev struct {
		code  uint16
		value int32
		want  edge
	}
	tests := []struct {
		name   string
		events []ev
	}{
		{"space alone", []ev{{keySpace, 1, edgeNone}, {keySpace, 0, edgeNone}}},
		{"ctrl only", []ev{{keyLCtrl, 1, edgeNone}, {keySpace, 1, edgeNone}}},
		{"combo", []ev{
			{keyLCtrl, 1, edgeNone}, {keyRShift, 1, edgeNone},
			{keySpace, 1, edgeDown}, {keySpace, 2, edgeNone}, {keySpace, 0, edgeUp},
		}},
		{"modifier released first", []ev{
			{keyRCtrl, 1, edgeNone}, {keyLShift, 1, edgeNone}, {keySpace, 1, edgeDown},
			{keyLShift, 0, edgeNone}, {keySpace, 0, edgeUp},
		}},
		{"modifiers dropped before repeat", []ev{
			{keyLCtrl, 1, edgeNone}, {keyLShift, 1, edgeNone},
			{keyLCtrl, 0, edgeNone}, {keySpace, 1, edgeNone},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var st comboState
			for i, e := range tt.events {
				if got := st.key(e.code, e.value); got != e.want {
					t.Errorf("event %d (%d=%d): got %v, want %v", i, e.code, e.value, got, e.want)
				}
			}
		})
	}
}
