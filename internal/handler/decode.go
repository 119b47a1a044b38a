package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// decodeObject reads a JSON object body field by field. Unknown fields are
// skipped.
func (h *Handler) decodeObject(w http.ResponseWriter, r *http.Request, field func(d *jx.Decoder, key string) error) error {
	body := http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
	d := jx.Decode(body, 4096)
	if err := d.Obj(field); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return badRequest("body exceeds %d bytes", maxErr.Limit)
		}
		return badRequest("decode body: %s", err)
	}
	return nil
}

// queryLimit parses the optional limit parameter. Absent means zero.
func queryLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, badRequest("limit must be a non-negative integer")
	}
	return n, nil
}
