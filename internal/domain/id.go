package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMissingID is returned when a payload carries no lake id at all.
var ErrMissingID = errors.New("missing lake id")

// LakeID identifies a lake report. It is the only id representation used
// past the ingestion boundary.
type LakeID int64

func (id LakeID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// UnmarshalJSON accepts both JSON numbers and numeric strings.
func (id *LakeID) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode lake id: %w", err)
	}
	parsed, err := ParseLakeID(raw)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseLakeID normalizes an id from any of the shapes the data service and
// map features produce: integers, integral floats, json.Number and numeric
// strings. Ids must be positive.
func ParseLakeID(v any) (LakeID, error) {
	switch t := v.(type) {
	case nil:
		return 0, ErrMissingID
	case LakeID:
		return checkPositive(int64(t))
	case int:
		return checkPositive(int64(t))
	case int32:
		return checkPositive(int64(t))
	case int64:
		return checkPositive(t)
	case float64:
		return fromFloat(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return checkPositive(n)
		}
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("parse lake id %q: %w", t.String(), err)
		}
		return fromFloat(f)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, ErrMissingID
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return checkPositive(n)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("parse lake id %q: not numeric", t)
		}
		return fromFloat(f)
	default:
		return 0, fmt.Errorf("parse lake id: unsupported type %T", v)
	}
}

func fromFloat(f float64) (LakeID, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f > math.MaxInt64 {
		return 0, fmt.Errorf("parse lake id: %v is not an integer", f)
	}
	return checkPositive(int64(f))
}

func checkPositive(n int64) (LakeID, error) {
	if n <= 0 {
		return 0, fmt.Errorf("parse lake id: %d is not positive", n)
	}
	return LakeID(n), nil
}
