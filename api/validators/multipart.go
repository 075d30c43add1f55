package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/geodirectory-backend/pkg/errors"
)

// multipartMemory is how much of a form is buffered in memory before spilling
// parts to temp files.
const multipartMemory = 8 << 20

// FormFile is a file part read fully into memory.
type FormFile struct {
	Name string
	Data []byte
}

// ParseMultipartForm caps the request body at maxBytes and parses it as
// multipart/form-data.
func ParseMultipartForm(w http.ResponseWriter, r *http.Request, maxBytes int64) (*multipart.Form, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidAsset, "request body too large").
				WithDetails(map[string]any{"max_bytes": tooLarge.Limit})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form")
	}
	return r.MultipartForm, nil
}

// FormString returns the trimmed first value for key and whether it was sent.
func FormString(form *multipart.Form, key string) (string, bool) {
	if form == nil {
		return "", false
	}
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return strings.TrimSpace(values[0]), true
}

// FormFloat parses key as a finite float. Absent or blank values yield nil.
func FormFloat(form *multipart.Form, key string) (*float64, error) {
	raw, ok := FormString(form, key)
	if !ok || raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "field must be numeric").WithDetails(map[string]any{"field": key})
	}
	return &value, nil
}

// FormBool reports whether key was sent as a truthy value.
func FormBool(form *multipart.Form, key string) bool {
	raw, ok := FormString(form, key)
	if !ok {
		return false
	}
	value, err := strconv.ParseBool(raw)
	return err == nil && value
}

// FormJSON decodes the JSON text carried in key into dest. Absent keys leave
// dest untouched.
func FormJSON(form *multipart.Form, key string, dest any) (bool, error) {
	raw, ok := FormString(form, key)
	if !ok || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "field must be valid JSON").WithDetails(map[string]any{"field": key})
	}
	return true, nil
}

// FormFiles reads every part uploaded under field. More than maxCount parts is
// a validation error.
func FormFiles(form *multipart.Form, field string, maxCount int) ([]FormFile, error) {
	if form == nil {
		return nil, nil
	}
	headers := form.File[field]
	if maxCount > 0 && len(headers) > maxCount {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many files").
			WithDetails(map[string]any{"field": field, "max": maxCount})
	}

	files := make([]FormFile, 0, len(headers))
	for _, header := range headers {
		data, err := readPart(header)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable file").WithDetails(map[string]any{"field": field})
		}
		files = append(files, FormFile{Name: header.Filename, Data: data})
	}
	return files, nil
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", header.Filename, err)
	}
	defer file.Close()
	return io.ReadAll(file)
}
