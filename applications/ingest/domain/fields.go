package domain

import "math"

// Field names understood by Decode. They follow the per-file keys of a
// form upload record.
const (
	FieldFile  = "file"
	FieldError = "error"
	FieldSize  = "size"
	FieldName  = "name"
	FieldType  = "type"
)

// Decode builds an UploadedFile from loosely typed values, such as an entry
// of a decoded YAML manifest. Values of the wrong type are type errors; the
// remaining checks are those of New. Explicit opts take precedence over the
// decoded name, type and size.
func Decode(fields map[string]interface{}, opts ...Option) (*UploadedFile, error) {
	file := fields[FieldFile]
	switch file.(type) {
	case string, *Stream:
	default:
		return nil, newError(ErrType, "Invalid file provided for UploadedFile; must be a string path or a *Stream")
	}

	code, ok := toInt64(fields[FieldError])
	if !ok {
		return nil, newError(ErrType, "Error status for UploadedFile must be an integer")
	}
	if code < math.MinInt32 || code > math.MaxInt32 {
		return nil, newError(ErrValue, MsgInvalidStatus)
	}

	var decoded []Option
	if v, present := fields[FieldSize]; present && v != nil {
		size, ok := toInt64(v)
		if !ok {
			return nil, newError(ErrType, "Size for UploadedFile must be an integer")
		}
		decoded = append(decoded, WithSize(size))
	}
	name, err := optionalString(fields, FieldName, "Client filename for UploadedFile must be a string or null")
	if err != nil {
		return nil, err
	}
	if name != "" {
		decoded = append(decoded, WithClientFilename(name))
	}
	mediaType, err := optionalString(fields, FieldType, "Client media type for UploadedFile must be a string or null")
	if err != nil {
		return nil, err
	}
	if mediaType != "" {
		decoded = append(decoded, WithClientMediaType(mediaType))
	}

	return New(file, int(code), append(decoded, opts...)...)
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func optionalString(fields map[string]interface{}, key, msg string) (string, error) {
	switch v := fields[key].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	}
	return "", newError(ErrType, msg)
}
