package ticket

import (
	"reflect"
	"strconv"
	"time"

	"github.com/asaskevich/govalidator"
	errs "github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
)

// Kind is the kind of a ticket attribute, e.g. string, instant or reference.
type Kind string

// constants for describing possible attribute kinds
const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindFloat   Kind = "float"
	KindBoolean Kind = "bool"
	KindRef     Kind = "ref"
	KindInstant Kind = "instant"
	KindEmail   Kind = "email"
	KindTagList Kind = "taglist"
)

// FieldDefinition describes a single ticket attribute.
type FieldDefinition struct {
	Kind     Kind
	Required bool
}

var timeType = reflect.TypeOf((*time.Time)(nil)).Elem()

// ConvertToModel converts a raw value (e.g. from a perform action or from
// JSON) into the canonical representation of the definition's kind. An
// incompatible value yields an error, never a silent write.
func (d FieldDefinition) ConvertToModel(value interface{}) (interface{}, error) {
	if value == nil {
		if d.Required {
			return nil, errs.New("value is required and must not be nil")
		}
		return nil, nil
	}
	valueType := reflect.TypeOf(value)
	switch d.Kind {
	case KindString:
		if valueType.Kind() != reflect.String {
			return nil, errs.Errorf("value %v (%[1]T) should be a string", value)
		}
		return value, nil
	case KindEmail:
		str, ok := value.(string)
		if !ok {
			return nil, errs.Errorf("value %v (%[1]T) should be a string", value)
		}
		if !govalidator.IsEmail(str) {
			return nil, errs.Errorf("value %v is not a valid email address", str)
		}
		return str, nil
	case KindInteger:
		switch v := value.(type) {
		case int:
			return v, nil
		case int32:
			return int(v), nil
		case int64:
			return int(v), nil
		case float64:
			// JSON numbers arrive as float64
			if v != float64(int(v)) {
				return nil, errs.Errorf("value %v is not an integer", v)
			}
			return int(v), nil
		case string:
			i, err := strconv.Atoi(v)
			if err != nil {
				return nil, errs.Errorf("value %v is not an integer", v)
			}
			return i, nil
		default:
			return nil, errs.Errorf("value %v (%[1]T) should be an integer", value)
		}
	case KindFloat:
		switch v := value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, errs.Errorf("value %v is not a float", v)
			}
			return f, nil
		default:
			return nil, errs.Errorf("value %v (%[1]T) should be a float", value)
		}
	case KindBoolean:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, errs.Errorf("value %v is not a bool", v)
			}
			return b, nil
		default:
			return nil, errs.Errorf("value %v (%[1]T) should be a bool", value)
		}
	case KindRef:
		switch v := value.(type) {
		case uuid.UUID:
			return v, nil
		case string:
			id, err := uuid.FromString(v)
			if err != nil {
				return nil, errs.Errorf("value %v is not a reference id", v)
			}
			return id, nil
		default:
			return nil, errs.Errorf("value %v (%[1]T) should be a reference id", value)
		}
	case KindInstant:
		// instant == structs are assignable, pointers are not
		if valueType.ConvertibleTo(timeType) {
			return reflect.ValueOf(value).Convert(timeType).Interface(), nil
		}
		if str, ok := value.(string); ok {
			t, err := time.Parse(time.RFC3339, str)
			if err != nil {
				return nil, errs.Errorf("value %v is not an RFC3339 instant", str)
			}
			return t, nil
		}
		return nil, errs.Errorf("value %v (%[1]T) should be an instant", value)
	case KindTagList:
		switch v := value.(type) {
		case []string:
			return v, nil
		case []interface{}:
			tags := make([]string, 0, len(v))
			for _, e := range v {
				s, ok := e.(string)
				if !ok {
					return nil, errs.Errorf("tag %v (%[1]T) should be a string", e)
				}
				tags = append(tags, s)
			}
			return tags, nil
		default:
			return nil, errs.Errorf("value %v (%[1]T) should be a tag list", value)
		}
	}
	return nil, errs.Errorf("unknown attribute kind '%s'", d.Kind)
}

// FieldDefinitions maps attribute names to their definitions.
type FieldDefinitions map[string]FieldDefinition

// fieldDefinitions is the static schema of the ticket attributes the engine
// knows about.
var fieldDefinitions = FieldDefinitions{
	AttrTitle:       {Kind: KindString, Required: true},
	AttrStateID:     {Kind: KindRef, Required: true},
	AttrPriorityID:  {Kind: KindRef},
	AttrGroupID:     {Kind: KindRef},
	AttrCustomerID:  {Kind: KindRef, Required: true},
	AttrOwnerID:     {Kind: KindRef},
	AttrCreatedByID: {Kind: KindRef},
	AttrUpdatedByID: {Kind: KindRef},
	AttrPendingTime: {Kind: KindInstant},
	AttrTags:        {Kind: KindTagList},
}

// LookupFieldDefinition returns the definition of the given ticket attribute,
// or false if the attribute is unknown.
func LookupFieldDefinition(name string) (FieldDefinition, bool) {
	def, ok := fieldDefinitions[name]
	return def, ok
}
