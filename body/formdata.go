package body

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"sort"

	jsoniter "github.com/json-iterator/go"
)

/*
EncodeMultipart builds a multipart/form-data payload that Extract reads back into
the same body: every file is its own part and all other values travel as one
JSON object in the bodyJson field. When a field holds several files each part is
named field[]. It returns the payload and its Content-Type.
*/
func EncodeMultipart(data map[string]interface{}, files ...*FilePart) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	counts := map[string]int{}
	for _, f := range files {
		counts[f.Field]++
	}

	fields := make([]string, 0, len(counts))
	for field := range counts {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		name := field
		if counts[field] > 1 {
			name = field + "[]"
		}
		for _, f := range files {
			if f.Field != field {
				continue
			}
			contentType := f.ContentType
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			h := make(textproto.MIMEHeader)
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, name, f.Filename))
			h.Set("Content-Type", contentType)
			part, err := w.CreatePart(h)
			if err != nil {
				return nil, "", err
			}
			if _, err := part.Write(f.Data); err != nil {
				return nil, "", err
			}
		}
	}

	if data == nil {
		data = map[string]interface{}{}
	}
	encoded, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(data)
	if err != nil {
		return nil, "", err
	}
	if err := w.WriteField(BodyJSONField, encoded); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
