package schema

import (
	"encoding/json"
	"net/http"
)

const contentTypeJSON = "application/json"

// Writer helps writing unified API responses
type Writer struct {
	InternalErrorHook func(err error)
}

// WriteRawJSONCode writes an already encoded JSON document as it is
func (writer *Writer) WriteRawJSONCode(rw http.ResponseWriter, code int, raw []byte) {
	rw.Header().Set("Content-Type", contentTypeJSON)
	rw.WriteHeader(code)
	rw.Write(raw)
}

// WriteErrors sends an error response
func (writer *Writer) WriteErrors(rw http.ResponseWriter, code int, errors ...*Error) {
	if errors == nil {
		errors = []*Error{}
	}
	response := &ErrorResponse{
		Status: code,
		Errors: errors,
	}
	for _, err := range response.Errors {
		if err.Details == nil {
			err.Details = map[string]interface{}{}
		}
	}
	val, _ := json.Marshal(response)
	writer.WriteRawJSONCode(rw, code, val)
}

// WriteInternalError processes an internal server error and writes it to the response
func (writer *Writer) WriteInternalError(rw http.ResponseWriter, err error) {
	if writer.InternalErrorHook != nil {
		writer.InternalErrorHook(err)
	}
	writer.WriteErrors(rw, http.StatusInternalServerError, ErrInternal)
}
