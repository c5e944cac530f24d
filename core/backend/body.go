package backend

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/opengeek/tacit-sub000/core/rest"
)

// readBody decodes the request body into a map. JSON and XML bodies are
// accepted, anything else is rejected with 415.
func (b *Backend) readBody(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	mediaType := "application/json"
	if contentType := r.Header.Get("Content-Type"); contentType != "" {
		var err error
		mediaType, _, err = mime.ParseMediaType(contentType)
		if err != nil {
			return nil, rest.UnsupportedMediaType("").WithDescription(err.Error())
		}
	}

	var decode func([]byte) (map[string]any, error)
	switch mediaType {
	case "application/json":
		decode = decodeJSON
	case "application/xml", "text/xml":
		decode = decodeXML
	default:
		return nil, rest.UnsupportedMediaType("").WithProperty(mediaType)
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, b.maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, rest.New(http.StatusRequestEntityTooLarge)
		}
		return nil, rest.BadRequest("Unreadable Body").WithCause(err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, rest.BadRequest("Missing Body")
	}
	body, err := decode(data)
	if err != nil {
		return nil, rest.BadRequest("Invalid Body").WithDescription(err.Error())
	}
	return body, nil
}

func decodeJSON(data []byte) (map[string]any, error) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	body, ok := value.(map[string]any)
	if !ok {
		return nil, errors.New("body is not an object")
	}
	return body, nil
}

// decodeXML maps the children of the root element. Repeated elements become
// a list, elements with children a map and everything else its trimmed text.
func decodeXML(data []byte) (map[string]any, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	for {
		token, err := d.Token()
		if err != nil {
			return nil, err
		}
		if _, ok := token.(xml.StartElement); !ok {
			continue
		}
		value, err := decodeElement(d)
		if err != nil {
			return nil, err
		}
		switch v := value.(type) {
		case map[string]any:
			return v, nil
		case string:
			if v == "" {
				return map[string]any{}, nil
			}
		}
		return nil, errors.New("root element has no children")
	}
}

func decodeElement(d *xml.Decoder) (any, error) {
	var children map[string]any
	var text strings.Builder
	for {
		token, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := token.(type) {
		case xml.StartElement:
			value, err := decodeElement(d)
			if err != nil {
				return nil, err
			}
			if children == nil {
				children = map[string]any{}
			}
			name := t.Name.Local
			switch existing := children[name].(type) {
			case nil:
				children[name] = value
			case []any:
				children[name] = append(existing, value)
			default:
				children[name] = []any{existing, value}
			}
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if children != nil {
				return children, nil
			}
			return strings.TrimSpace(text.String()), nil
		}
	}
}
