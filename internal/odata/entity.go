package odata

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// ETagProperty is the property name carrying an entity's etag.
const ETagProperty = "@odata.etag"

// Entity is one result row with its column order preserved.
type Entity struct {
	Columns []string
	Values  []any
	// NoETag leaves the etag property out, as for catalog rows.
	NoETag bool
}

// ETag returns the MD5 hex digest of the row's values in column order.
func (e Entity) ETag() string {
	h := md5.New()
	for _, v := range e.Values {
		h.Write([]byte(valueString(v)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// MarshalJSON writes the row as an object in column order followed by the
// etag property.
func (e Entity) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range e.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		var v any
		if i < len(e.Values) {
			v = jsonValue(e.Values[i])
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	if !e.NoETag {
		if len(e.Columns) > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`"` + ETagProperty + `":"` + e.ETag() + `"`)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func jsonValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	default:
		return v
	}
}

func valueString(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(val)
	}
}
