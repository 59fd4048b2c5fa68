package domain

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	fs := newSpool(t)
	path := filepath.Join(uploadDir, "random.csv")

	u, err := Decode(map[string]interface{}{
		FieldFile:  path,
		FieldError: 0,
		FieldSize:  uint32(18),
		FieldName:  "random.csv",
		FieldType:  "text/csv",
	}, WithFs(fs), WithVerifier(spoolVerifier))
	require.NoError(t, err)

	size, ok := u.Size()
	assert.True(t, ok)
	assert.Equal(t, int64(18), size)
	assert.Equal(t, "random.csv", u.ClientFilename())
	assert.Equal(t, "text/csv", u.ClientMediaType())

	u, err = Decode(map[string]interface{}{
		FieldFile:  path,
		FieldError: int64(0),
		FieldName:  nil,
	}, WithFs(fs), WithVerifier(spoolVerifier), WithClientFilename("override.csv"))
	require.NoError(t, err)
	assert.Equal(t, "override.csv", u.ClientFilename())
	_, ok = u.Size()
	assert.False(t, ok)
}

func TestDecodeTypeErrors(t *testing.T) {
	s := memoryStream(t, "")
	defer s.Close()

	invalid := []interface{}{true, 88.5, []interface{}{"John Doe"}, map[interface{}]interface{}{"age": 33}, struct{}{}}

	for _, v := range append([]interface{}{nil, 33}, invalid...) {
		_, err := Decode(map[string]interface{}{FieldFile: v, FieldError: 0})
		assert.ErrorIs(t, err, ErrType, "file %v", v)
	}
	for _, v := range append([]interface{}{nil, "John Doe", s}, invalid...) {
		_, err := Decode(map[string]interface{}{FieldFile: s, FieldError: v})
		assert.ErrorIs(t, err, ErrType, "error %v", v)
	}
	for _, v := range append([]interface{}{"John Doe", s, uint64(1 << 63)}, invalid...) {
		_, err := Decode(map[string]interface{}{FieldFile: s, FieldError: 0, FieldSize: v})
		assert.ErrorIs(t, err, ErrType, "size %v", v)
	}
	for _, v := range append([]interface{}{s, 33}, invalid...) {
		_, err := Decode(map[string]interface{}{FieldFile: s, FieldError: 0, FieldName: v})
		assert.ErrorIs(t, err, ErrType, "name %v", v)

		_, err = Decode(map[string]interface{}{FieldFile: s, FieldError: 0, FieldType: v})
		assert.ErrorIs(t, err, ErrType, "type %v", v)
	}
}

func TestDecodeValueErrors(t *testing.T) {
	fs := afero.NewMemMapFs()

	for _, code := range []interface{}{5, -1, int64(1) << 40} {
		_, err := Decode(map[string]interface{}{FieldFile: "/tmp/upload/x", FieldError: code}, WithFs(fs))
		assert.ErrorIs(t, err, ErrValue)
		assert.EqualError(t, err, MsgInvalidStatus)
	}

	_, err := Decode(map[string]interface{}{FieldFile: "/tmp/upload/x", FieldError: 4}, WithFs(fs))
	assert.EqualError(t, err, "No file was uploaded")

	s := memoryStream(t, "")
	defer s.Close()
	_, err = Decode(map[string]interface{}{FieldFile: s, FieldError: 0, FieldSize: -3})
	assert.ErrorIs(t, err, ErrValue)
}
