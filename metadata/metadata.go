/*
Package metadata tracks which fields of a request body the client actually sent.
Embed a Metadata value in a body struct and the decoders fill DefinedFields with
the Go names of the fields present in the payload.
*/
package metadata

import (
	"reflect"

	"github.com/skuid/tenantsql/stringutil"
)

// Metadata is a field type the body decoders detect on a struct
type Metadata struct {
	DefinedFields []string
}

// Has reports whether the client sent the field with the given Go name
func (m Metadata) Has(fieldName string) bool {
	return stringutil.StringSliceContainsKey(m.DefinedFields, fieldName)
}

// AddDefinedField records fieldName on the Metadata value
func AddDefinedField(metadataValue reflect.Value, fieldName string) {
	if metadataValue.IsValid() && metadataValue.CanSet() {
		definedFields := metadataValue.FieldByName("DefinedFields")
		definedFields.Set(reflect.Append(definedFields, reflect.ValueOf(fieldName)))
	}
}

// InitializeDefinedFields resets the recorded fields to an empty list
func InitializeDefinedFields(metadataValue reflect.Value) {
	if metadataValue.IsValid() && metadataValue.CanSet() {
		definedFields := metadataValue.FieldByName("DefinedFields")
		definedFields.Set(reflect.ValueOf([]string{}))
	}
}

// GetMetadataValue returns the Metadata field of structValue, an invalid Value when there is none
func GetMetadataValue(structValue reflect.Value) reflect.Value {
	var metadataValue reflect.Value
	if structValue.Kind() != reflect.Struct {
		return metadataValue
	}
	for i := 0; i < structValue.Type().NumField(); i++ {
		field := structValue.Type().Field(i)
		if field.Type == reflect.TypeOf(Metadata{}) {
			metadataValue = structValue.Field(i)
			break
		}
	}
	return metadataValue
}

// HasMetadata reports whether typ is a struct with a Metadata field
func HasMetadata(typ reflect.Type) bool {
	if typ.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < typ.NumField(); i++ {
		if typ.Field(i).Type == reflect.TypeOf(Metadata{}) {
			return true
		}
	}
	return false
}

// FromStruct returns the Metadata of v, the zero value when v has none
func FromStruct(v interface{}) Metadata {
	var m Metadata
	metadataValue := GetMetadataValue(reflect.Indirect(reflect.ValueOf(v)))
	if metadataValue.IsValid() && metadataValue.CanInterface() {
		m = metadataValue.Interface().(Metadata)
	}
	return m
}

/*
SetDefinedFields records, for every key of payload, the struct field it binds to.
Keys are matched against the field's tagKey name, or its Go name when untagged.
*/
func SetDefinedFields(structValue reflect.Value, payload map[string]interface{}, tagKey string) {
	metadataValue := GetMetadataValue(structValue)
	if !metadataValue.IsValid() {
		return
	}
	InitializeDefinedFields(metadataValue)

	typ := structValue.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.Type == reflect.TypeOf(Metadata{}) || field.PkgPath != "" {
			continue
		}
		name, _ := stringutil.SplitTag(field.Tag.Get(tagKey))
		if name == "-" {
			continue
		}
		if name == "" {
			name = field.Name
		}
		if _, ok := payload[name]; ok {
			AddDefinedField(metadataValue, field.Name)
		}
	}
}
