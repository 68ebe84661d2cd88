package body

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/mapstructure"
	"github.com/skuid/tenantsql/decoding"
	"github.com/skuid/tenantsql/errs"
	"github.com/skuid/tenantsql/metadata"
	"github.com/skuid/tenantsql/stringutil"
	"go.uber.org/zap"
	validator "gopkg.in/go-playground/validator.v9"
	en_translations "gopkg.in/go-playground/validator.v9/translations/en"
)

const (
	emptyBodyMessage  = "There is an error in the submitted data"
	validationMessage = "There are errors in the submitted fields"
	tagKey            = "json"
	decodeFailurePath = "body"
)

// Extractor reads, decodes and validates request bodies
type Extractor struct {
	validate *validator.Validate
	trans    ut.Translator
	decoder  jsoniter.API
	logger   *zap.Logger
	maxBytes int64
}

// Option configures an Extractor
type Option func(*Extractor)

// WithLogger sets the logger used for recoverable payload problems
func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMaxBytes caps how much of a body is read
func WithMaxBytes(n int64) Option {
	return func(e *Extractor) {
		e.maxBytes = n
	}
}

// NewExtractor returns an Extractor with English validation messages
func NewExtractor(opts ...Option) *Extractor {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _ := stringutil.SplitTag(fld.Tag.Get(tagKey))
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")

	e := &Extractor{
		validate: v,
		decoder:  decoding.GetDecoder(&decoding.Config{TagKey: tagKey}),
		logger:   zap.NewNop(),
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := en_translations.RegisterDefaultTranslations(v, trans); err != nil {
		e.logger.Warn("validation messages are not translated", zap.Error(err))
	} else {
		e.trans = trans
	}
	return e
}

// Validator exposes the validator so callers can register their own rules
func (e *Extractor) Validator() *validator.Validate {
	return e.validate
}

var (
	defaultOnce      sync.Once
	defaultExtractor *Extractor
)

// Extract reads r's body with a shared default Extractor
func Extract(r *http.Request, dst interface{}) (*Body, error) {
	defaultOnce.Do(func() {
		defaultExtractor = NewExtractor()
	})
	return defaultExtractor.Extract(r, dst)
}

/*
Extract reads and normalizes r's body. When dst is nil the normalized body is
returned unvalidated. Otherwise the body is decoded into dst, a pointer to a
struct, and validated. Validation failures are returned as an errs.Validation
error whose details map dotted field paths to messages.
*/
func (e *Extractor) Extract(r *http.Request, dst interface{}) (*Body, error) {
	raw, err := e.readBody(r)
	if err != nil {
		return nil, err
	}

	contentType := r.Header.Get("Content-Type")
	b, err := e.normalize(raw, contentType)
	if err != nil {
		return nil, err
	}

	if dst == nil {
		return b, nil
	}

	if mt, _ := mediaType(contentType); mt == contentTypeJSON {
		err = e.decoder.Unmarshal(raw, dst)
	} else {
		err = decodeFields(b.Fields, dst)
	}
	if err != nil {
		return nil, errs.NewValidationError(validationMessage, map[string]string{
			decodeFailurePath: err.Error(),
		})
	}

	if err := e.validateStruct(dst); err != nil {
		return nil, err
	}

	b.Value = dst
	return b, nil
}

// decodeFields decodes form style fields, whose values are strings, into dst
func decodeFields(fields map[string]interface{}, dst interface{}) error {
	target := reflect.Indirect(reflect.ValueOf(dst))

	input := fields
	if readOnly := readOnlyNames(target.Type()); len(readOnly) > 0 {
		input = make(map[string]interface{}, len(fields))
		for k, v := range fields {
			if !stringutil.StringSliceContainsKey(readOnly, k) {
				input[k] = v
			}
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          tagKey,
		WeaklyTypedInput: true,
		Result:           dst,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(input); err != nil {
		return err
	}

	if target.Kind() == reflect.Struct {
		metadata.SetDefinedFields(target, input, tagKey)
	}
	return nil
}

// readOnlyNames lists the payload names of typ's fields tagged readonly
func readOnlyNames(typ reflect.Type) []string {
	if typ.Kind() != reflect.Struct {
		return nil
	}
	var names []string
	for i := 0; i < typ.NumField(); i++ {
		name, options := stringutil.SplitTag(typ.Field(i).Tag.Get(tagKey))
		if stringutil.StringSliceContainsKey(options, decoding.ReadOnlyOption) {
			if name == "" {
				name = typ.Field(i).Name
			}
			names = append(names, name)
		}
	}
	return names
}

type issue struct {
	path    string
	message string
}

func (e *Extractor) validateStruct(dst interface{}) error {
	if reflect.Indirect(reflect.ValueOf(dst)).Kind() != reflect.Struct {
		return nil
	}

	err := e.validate.Struct(dst)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errs.Wrap(errs.Internal, err, "could not validate request body")
	}

	issues := make([]issue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, issue{path: fieldPath(fe.Namespace()), message: fieldMessage(fe, e.trans)})
	}
	return errs.NewValidationError(validationMessage, foldIssues(issues))
}

// fieldMessage is the translated message, or a plain one when no translator is registered
func fieldMessage(fe validator.FieldError, trans ut.Translator) string {
	if trans != nil {
		return fe.Translate(trans)
	}
	return fmt.Sprintf("%s failed on the '%s' tag", fe.Field(), fe.Tag())
}

// fieldPath drops the root struct name from a validator namespace
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

// foldIssues maps each path to its message, a later issue for the same path wins
func foldIssues(issues []issue) map[string]string {
	details := make(map[string]string, len(issues))
	for _, is := range issues {
		details[is.path] = is.message
	}
	return details
}
