package gormsupport

import (
	"database/sql/driver"
	"encoding/json"
	"reflect"

	errs "github.com/pkg/errors"
)

// JSONBValue marshals the given object into a driver.Value suitable for
// storage in a postgres JSONB column.
func JSONBValue(j interface{}) (driver.Value, error) {
	return json.Marshal(j)
}

// JSONBScan unmarshals a JSONB column value (as returned by the sql driver)
// into the given destination object.
func JSONBScan(src interface{}, dst interface{}) error {
	if src == nil {
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return errs.Errorf("failed to convert %+v (%s) to []byte", src, reflect.TypeOf(src))
	}
	return errs.WithStack(json.Unmarshal(b, dst))
}
