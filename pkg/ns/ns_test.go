package ns

import (
	"database/sql/driver"
	"encoding/json"
	"testing"
)

func TestNullIDScan(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		want    NullID
		wantErr bool
	}{
		{name: "null input", input: nil, want: 0},
		{name: "int64 input", input: int64(42), want: 42},
		{name: "byte slice input", input: []byte("7"), want: 7},
		{name: "string input", input: "1234567890123456789", want: 1234567890123456789},
		{name: "empty string", input: "", want: 0},
		{name: "garbage string", input: "abc", wantErr: true},
		{name: "unsupported type input", input: 1.5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id NullID
			err := id.Scan(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("Scan() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if id != tt.want {
				t.Errorf("Scan() = %v, want %v", id, tt.want)
			}
		})
	}
}

func TestNullIDValue(t *testing.T) {
	tests := []struct {
		name string
		id   NullID
		want driver.Value
	}{
		{name: "null id", id: 0, want: nil},
		{name: "set id", id: 9, want: int64(9)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.id.Value()
			if err != nil {
				t.Errorf("Value() error = %v", err)
				return
			}
			if got != tt.want {
				t.Errorf("Value() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNullIDJSON(t *testing.T) {
	type record struct {
		Parent NullID `json:"parent_id"`
	}

	out, err := json.Marshal(record{})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"parent_id":null}` {
		t.Errorf("Marshal() = %s", out)
	}

	inputs := map[string]NullID{
		`{"parent_id":null}`:                  0,
		`{"parent_id":12}`:                    12,
		`{"parent_id":"13"}`:                  13,
		`{"parent_id":1729382256910270464}`:   1729382256910270464,
		`{"parent_id":"1729382256910270465"}`: 1729382256910270465,
	}
	for in, want := range inputs {
		var r record
		if err := json.Unmarshal([]byte(in), &r); err != nil {
			t.Errorf("Unmarshal(%s) error = %v", in, err)
			continue
		}
		if r.Parent != want {
			t.Errorf("Unmarshal(%s) = %d, want %d", in, r.Parent, want)
		}
	}

	var r record
	if err := json.Unmarshal([]byte(`{"parent_id":true}`), &r); err == nil {
		t.Error("expected error for boolean parent_id")
	}
}
