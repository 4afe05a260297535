// Package ns provides a nullable identifier that round-trips through SQL drivers
// and JSON, where the zero value stands for "no parent" (the root folder).
package ns

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
)

// NullID is an int64 identifier where 0 means null.
type NullID int64

// Valid reports whether the id is set.
func (n NullID) Valid() bool {
	return n != 0
}

// String returns the decimal form, or "" when null.
func (n NullID) String() string {
	if n == 0 {
		return ""
	}
	return strconv.FormatInt(int64(n), 10)
}

// Parse converts a decimal string into a NullID. Empty input yields null.
func Parse(s string) (NullID, error) {
	if s == "" || s == "null" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return NullID(v), nil
}

func (n *NullID) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*n = 0
	case int64:
		*n = NullID(v)
	case []byte:
		id, err := Parse(string(v))
		if err != nil {
			return err
		}
		*n = id
	case string:
		id, err := Parse(v)
		if err != nil {
			return err
		}
		*n = id
	default:
		return fmt.Errorf("cannot convert %v of type %T to NullID", value, value)
	}
	return nil
}

func (n NullID) Value() (driver.Value, error) {
	if n == 0 {
		return nil, nil
	}
	return int64(n), nil
}

func (n NullID) MarshalJSON() ([]byte, error) {
	if n == 0 {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(int64(n), 10)), nil
}

// UnmarshalJSON accepts null, a JSON number or a quoted decimal string.
func (n *NullID) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*n = 0
	case float64:
		// float64 loses precision above 2^53, re-parse the literal instead
		return n.Scan(string(data))
	case string:
		return n.Scan(v)
	default:
		return fmt.Errorf("cannot unmarshal %s into NullID", string(data))
	}
	return nil
}
