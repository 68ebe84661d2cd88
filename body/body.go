/*
Package body reads a request payload in any of the supported encodings into one
normalized mapping and, when given a destination struct, decodes and validates it.

	var in createUser
	b, err := body.Extract(r, &in)

Supported content types are application/json, application/x-www-form-urlencoded
and multipart/form-data. Anything else is read as a url encoded form. Multipart
requests may carry a bodyJson field holding a JSON object, which is merged under
the plain fields.
*/
package body

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/skuid/tenantsql/errs"
	"go.uber.org/zap"
)

// BodyJSONField is the multipart field whose JSON object is merged into the body
const BodyJSONField = "bodyJson"

// DefaultMaxBytes caps how much of a request body is read
const DefaultMaxBytes = 32 << 20

const (
	contentTypeJSON      = "application/json"
	contentTypeForm      = "application/x-www-form-urlencoded"
	contentTypeMultipart = "multipart/form-data"
)

// FilePart is one uploaded file of a multipart request
type FilePart struct {
	Field       string
	Filename    string
	ContentType string
	Header      textproto.MIMEHeader
	Data        []byte
}

// Size is the length of the file in bytes
func (f *FilePart) Size() int {
	return len(f.Data)
}

// Open returns a reader over the file contents
func (f *FilePart) Open() io.Reader {
	return bytes.NewReader(f.Data)
}

/*
Body is a normalized request payload. Fields holds the payload when it is an
object, Raw holds it in whatever shape it was sent. Files are only set for
multipart requests and are never part of Fields.
*/
type Body struct {
	Fields map[string]interface{}
	Raw    interface{}
	// Value is the decoded and validated destination, nil when none was given
	Value interface{}
	files map[string][]*FilePart
}

// HasFile reports whether a file part was sent under name
func (b *Body) HasFile(name string) bool {
	_, ok := b.files[name]
	return ok
}

// GetFile returns the last file sent under name, nil when there is none
func (b *Body) GetFile(name string) *FilePart {
	parts := b.files[name]
	if len(parts) == 0 {
		return nil
	}
	return parts[len(parts)-1]
}

// GetFiles returns every file sent under name in request order
func (b *Body) GetFiles(name string) []*FilePart {
	return b.files[name]
}

// FileNames lists the fields that carried files
func (b *Body) FileNames() []string {
	names := make([]string, 0, len(b.files))
	for name := range b.files {
		names = append(names, name)
	}
	return names
}

// readBody reads the raw payload and rejects empty ones
func (e *Extractor) readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, errs.New(errs.ClientInput, emptyBodyMessage)
	}
	raw, err := ioutil.ReadAll(io.LimitReader(r.Body, e.maxBytes+1))
	if err != nil {
		return nil, errs.Wrap(errs.ClientInput, err, "could not read request body")
	}
	if int64(len(raw)) > e.maxBytes {
		return nil, errs.New(errs.ClientInput, fmt.Sprintf("request body is larger than %d bytes", e.maxBytes))
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errs.New(errs.ClientInput, emptyBodyMessage)
	}
	return raw, nil
}

// mediaType returns the lower cased media type without parameters
func mediaType(header string) (string, map[string]string) {
	mt, params, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(header, ";")[0])), nil
	}
	return mt, params
}

// normalize turns the raw payload into a Body according to its content type
func (e *Extractor) normalize(raw []byte, contentType string) (*Body, error) {
	mt, params := mediaType(contentType)

	switch {
	case mt == contentTypeJSON:
		var v interface{}
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &v); err != nil {
			return nil, errs.Wrap(errs.ClientInput, err, "request body is not valid JSON")
		}
		if v == nil {
			return nil, errs.New(errs.ClientInput, emptyBodyMessage)
		}
		b := &Body{Raw: v, files: map[string][]*FilePart{}}
		if fields, ok := v.(map[string]interface{}); ok {
			b.Fields = fields
		}
		return b, nil
	case mt == contentTypeMultipart:
		return e.parseMultipart(raw, params["boundary"])
	default:
		fields, err := parseForm(raw)
		if err != nil {
			return nil, err
		}
		return &Body{Fields: fields, Raw: fields, files: map[string][]*FilePart{}}, nil
	}
}

// parseForm reads a url encoded form, the last value of a repeated key wins
func parseForm(raw []byte) (map[string]interface{}, error) {
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, errs.Wrap(errs.ClientInput, err, "request body is not a valid form")
	}
	fields := make(map[string]interface{}, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			fields[k] = vs[len(vs)-1]
		}
	}
	return fields, nil
}

func (e *Extractor) parseMultipart(raw []byte, boundary string) (*Body, error) {
	if boundary == "" {
		return nil, errs.New(errs.ClientInput, "multipart request without a boundary")
	}

	fields := map[string]interface{}{}
	files := map[string][]*FilePart{}

	reader := multipart.NewReader(bytes.NewReader(raw), boundary)
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.Wrap(errs.ClientInput, err, "request body is not valid multipart data")
		}

		name := part.FormName()
		data, err := ioutil.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, errs.Wrap(errs.ClientInput, err, "request body is not valid multipart data")
		}
		if name == "" {
			continue
		}

		if ct := part.Header.Get("Content-Type"); ct != "" {
			files[name] = append(files[name], &FilePart{
				Field:       name,
				Filename:    part.FileName(),
				ContentType: ct,
				Header:      part.Header,
				Data:        data,
			})
			continue
		}
		fields[name] = string(data)
	}

	if bodyJSON, ok := fields[BodyJSONField].(string); ok {
		var extra map[string]interface{}
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(bodyJSON, &extra); err != nil {
			e.logger.Warn("ignoring invalid bodyJson field", zap.Error(err))
		} else {
			delete(fields, BodyJSONField)
			fields = mergeDefaults(fields, extra)
		}
	}

	return &Body{Fields: fields, Raw: fields, files: files}, nil
}

/*
mergeDefaults fills obj with the keys of defaults it lacks. Keys present in both
keep obj's value, except that two mappings are merged the same way recursively.
*/
func mergeDefaults(obj, defaults map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(obj)+len(defaults))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range obj {
		objMap, objIsMap := v.(map[string]interface{})
		defMap, defIsMap := merged[k].(map[string]interface{})
		if objIsMap && defIsMap {
			merged[k] = mergeDefaults(objMap, defMap)
			continue
		}
		if v == nil {
			if _, exists := merged[k]; exists {
				continue
			}
		}
		merged[k] = v
	}
	return merged
}
