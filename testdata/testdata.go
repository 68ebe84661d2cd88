package testdata

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"regexp"
	"sort"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/skuid/tenantsql/metadata"
)

// Address is a nested body object
type Address struct {
	City    string `json:"city" validate:"required"`
	Country string `json:"country" validate:"required,len=2"`
}

// CreateUser is a sample body with nested and list validation
type CreateUser struct {
	Name    string   `json:"name" validate:"required"`
	Email   string   `json:"email" validate:"required,email"`
	Age     int      `json:"age" validate:"gte=0,lte=150"`
	Address *Address `json:"address" validate:"omitempty"`
	Tags    []string `json:"tags" validate:"omitempty,dive,min=2"`
}

// UpdateUser is a sample partial update body, Metadata records the fields that were sent
type UpdateUser struct {
	Metadata metadata.Metadata
	ID       string `json:"id,readonly"`
	Name     string `json:"name"`
	Email    string `json:"email" validate:"omitempty,email"`
	Active   bool   `json:"active"`
}

// Upload is a sample multipart body whose fields come from bodyJson
type Upload struct {
	Name  string `json:"name" validate:"required"`
	Extra string `json:"extra"`
}

// FilePart is a file attached to a multipart test body
type FilePart struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

/*
MultipartBody encodes fields and files as multipart/form-data. It returns the body
and the Content-Type header to send with it.
*/
func MultipartBody(fields map[string]string, files ...FilePart) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w.WriteField(name, fields[name])
	}

	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, f.Field, f.Filename))
		h.Set("Content-Type", f.ContentType)
		part, _ := w.CreatePart(h)
		part.Write(f.Data)
	}
	w.Close()

	return body, w.FormDataContentType()
}

// FmtSQL flattens a heredoc SQL statement onto one line
func FmtSQL(sql string) string {
	str := strings.Replace(heredoc.Doc(sql), "\n", " ", -1)
	str = strings.Replace(str, "\t", "", -1)
	return strings.Trim(str, " ")
}

//FmtSQLRegex will covert a multiline/heredoc SQL statement into an anchored,
// fully escaped regex, which is useful for testing mock SQL calls.
func FmtSQLRegex(sql string) string {
	return fmt.Sprintf("^%s$", regexp.QuoteMeta(FmtSQL(sql)))
}
