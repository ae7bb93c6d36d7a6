package profile

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Image limits.
const (
	MaxImageSize = 2 << 20 // 2 MiB

	// ImageField is the payload key and multipart part name of the image.
	ImageField = "image"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// AllowedImageTypes are the accepted image content types.
var AllowedImageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

var (
	// ErrImageTooLarge is returned for images above MaxImageSize.
	ErrImageTooLarge = errors.New("image exceeds 2 MB")

	// ErrImageType is returned for content types outside AllowedImageTypes.
	ErrImageType = errors.New("image type must be one of " + strings.Join(AllowedImageTypes, ", "))

	// ErrImageAndDelete is returned when an image is uploaded and deleted at once.
	ErrImageAndDelete = errors.New("cannot upload and delete the image at the same time")

	// ErrImageEmpty is returned for an image without data.
	ErrImageEmpty = errors.New("image data is empty")
)

// ByteArray is file content sent as a JSON array of byte values.
// A base64 string is accepted as well.
type ByteArray []byte

// UnmarshalJSON implements json.Unmarshaler.
func (b *ByteArray) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	switch {
	case bytes.Equal(data, []byte("null")):
		*b = nil

		return nil
	case len(data) > 0 && data[0] == '"':
		var encoded string
		if err := json.Unmarshal(data, &encoded); err != nil {
			return errors.Wrap(err, "decode image data")
		}

		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return errors.Wrap(err, "decode base64 image data")
		}

		*b = raw

		return nil
	}

	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return errors.Wrap(err, "decode image data")
	}

	out := make([]byte, len(values))

	for i, v := range values {
		if v < 0 || v > 255 {
			return errors.Errorf("image data value %d at %d is not a byte", v, i)
		}

		out[i] = byte(v)
	}

	*b = out

	return nil
}

// MarshalJSON renders the bytes as a number array.
func (b ByteArray) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer

	buf.Grow(len(b)*4 + 2) //nolint:mnd
	buf.WriteByte('[')

	for i, v := range b {
		if i > 0 {
			buf.WriteByte(',')
		}

		fmt.Fprintf(&buf, "%d", v)
	}

	buf.WriteByte(']')

	return buf.Bytes(), nil
}

// FileUpload is an image embedded in a JSON payload.
type FileUpload struct {
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	Data        ByteArray `json:"data"`
}

// Validate checks size and type.
func (f FileUpload) Validate() error {
	if len(f.Data) == 0 {
		return ErrImageEmpty
	}

	if len(f.Data) > MaxImageSize {
		return ErrImageTooLarge
	}

	for _, t := range AllowedImageTypes {
		if strings.EqualFold(f.ContentType, t) {
			return nil
		}
	}

	return ErrImageType
}

// Payload is a profile update split into its image and the remaining fields.
type Payload struct {
	Fields map[string]json.RawMessage
	Image  *FileUpload
}

// ParsePayload decodes a profile update body.
func ParsePayload(body []byte) (*Payload, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, errors.Wrap(err, "decode profile payload")
	}

	p := &Payload{Fields: fields}

	raw, ok := fields[ImageField]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		delete(fields, ImageField)

		return p, nil
	}

	var image FileUpload
	if err := json.Unmarshal(raw, &image); err != nil {
		return nil, err
	}

	delete(fields, ImageField)
	p.Image = &image

	return p, nil
}

// Validate checks the image and its combination with deleteCurrentImage.
func (p *Payload) Validate() error {
	if p.Image == nil {
		return nil
	}

	var deleteImage bool
	if raw, ok := p.Fields["deleteCurrentImage"]; ok {
		_ = json.Unmarshal(raw, &deleteImage)
	}

	if deleteImage {
		return ErrImageAndDelete
	}

	return p.Image.Validate()
}

// FieldNames returns the sorted names of the updated fields.
func (p *Payload) FieldNames() []string {
	names := make([]string, 0, len(p.Fields)+1)
	for k := range p.Fields {
		names = append(names, k)
	}

	if p.Image != nil {
		names = append(names, ImageField)
	}

	sort.Strings(names)

	return names
}

// Multipart encodes the payload as multipart/form-data.
// Strings are sent as is, other JSON values in their JSON text, null fields are dropped.
func (p *Payload) Multipart() ([]byte, string, error) {
	var buf bytes.Buffer

	w := multipart.NewWriter(&buf)

	names := make([]string, 0, len(p.Fields))
	for k := range p.Fields {
		names = append(names, k)
	}

	sort.Strings(names)

	for _, name := range names {
		raw := bytes.TrimSpace(p.Fields[name])
		if bytes.Equal(raw, []byte("null")) {
			continue
		}

		value := string(raw)

		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			value = s
		}

		if err := w.WriteField(name, value); err != nil {
			return nil, "", errors.Wrap(err, "write multipart field")
		}
	}

	if p.Image != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			ImageField, quoteEscaper.Replace(p.Image.FileName)))
		header.Set("Content-Type", p.Image.ContentType)

		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", errors.Wrap(err, "create image part")
		}

		if _, err := part.Write(p.Image.Data); err != nil {
			return nil, "", errors.Wrap(err, "write image part")
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "close multipart writer")
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}
