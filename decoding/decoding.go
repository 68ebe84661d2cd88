/*
Package decoding builds the jsoniter API used to decode request bodies. Structs
that embed metadata.Metadata get the names of the fields present in the payload
recorded while they are decoded, and fields tagged readonly are never bound.

	type updateUser struct {
		Metadata metadata.Metadata
		ID       string `json:"id,readonly"`
		Name     string `json:"name"`
	}
*/
package decoding

import (
	"io"
	"reflect"
	"sync"
	"unsafe"

	jsoniter "github.com/json-iterator/go"
	"github.com/modern-go/reflect2"
	"github.com/skuid/tenantsql/metadata"
	"github.com/skuid/tenantsql/stringutil"
)

// ReadOnlyOption is the tag option that keeps a field out of request decoding
const ReadOnlyOption = "readonly"

// Config specifies options for the body decoder
type Config struct {
	TagKey string
}

type bodyExtension struct {
	jsoniter.DummyExtension
	config *Config

	mu          sync.Mutex
	descriptors map[reflect.Type]*jsoniter.StructDescriptor
}

func (extension *bodyExtension) UpdateStructDescriptor(structDescriptor *jsoniter.StructDescriptor) {
	for _, binding := range structDescriptor.Fields {
		tag, hasTag := binding.Field.Tag().Lookup(extension.config.TagKey)
		if !hasTag {
			continue
		}
		_, options := stringutil.SplitTag(tag)
		if stringutil.StringSliceContainsKey(options, ReadOnlyOption) {
			binding.FromNames = []string{}
		}
	}

	extension.mu.Lock()
	extension.descriptors[structDescriptor.Type.Type1()] = structDescriptor
	extension.mu.Unlock()
}

func (extension *bodyExtension) DecorateDecoder(typ reflect2.Type, decoder jsoniter.ValDecoder) jsoniter.ValDecoder {
	if typ.Kind() != reflect.Struct || !metadata.HasMetadata(typ.Type1()) {
		return decoder
	}

	extension.mu.Lock()
	structDesc := extension.descriptors[typ.Type1()]
	extension.mu.Unlock()

	return &structDecoder{decoder, typ, structDesc}
}

type structDecoder struct {
	valDecoder jsoniter.ValDecoder
	typ        reflect2.Type
	structDesc *jsoniter.StructDescriptor
}

func (decoder *structDecoder) Decode(ptr unsafe.Pointer, iter *jsoniter.Iterator) {
	var obj interface{}
	iter.ReadVal(&obj)
	if obj == nil {
		return
	}

	buf, err := jsoniter.Marshal(obj)
	if err != nil {
		iter.ReportError("decoding", err.Error())
		return
	}

	objectValue := reflect.NewAt(decoder.typ.Type1(), ptr).Elem()
	metadataField := metadata.GetMetadataValue(objectValue)
	metadata.InitializeDefinedFields(metadataField)

	if fmap, ok := obj.(map[string]interface{}); ok && decoder.structDesc != nil {
		metadataType := reflect.TypeOf(metadata.Metadata{})
		for _, binding := range decoder.structDesc.Fields {
			if binding.Field.Type().Type1() == metadataType {
				continue
			}
			for _, name := range binding.FromNames {
				if _, present := fmap[name]; present {
					metadata.AddDefinedField(metadataField, binding.Field.Name())
					break
				}
			}
		}
	}

	// the outer iterator was consumed by ReadVal
	newiter := iter.Pool().BorrowIterator(buf)
	defer iter.Pool().ReturnIterator(newiter)

	decoder.valDecoder.Decode(ptr, newiter)
	if newiter.Error != nil && newiter.Error != io.EOF {
		iter.ReportError("decoding", newiter.Error.Error())
	}
}

// GetDecoder returns a decoder that implements the standard encoding/json api
func GetDecoder(config *Config) jsoniter.API {
	if config == nil {
		config = &Config{}
	}
	if config.TagKey == "" {
		config.TagKey = "json"
	}
	api := jsoniter.Config{
		EscapeHTML:             true,
		SortMapKeys:            true,
		ValidateJsonRawMessage: true,
		CaseSensitive:          true,
		TagKey:                 config.TagKey,
	}.Froze()
	api.RegisterExtension(&bodyExtension{
		config:      config,
		descriptors: map[reflect.Type]*jsoniter.StructDescriptor{},
	})
	return api
}
