package httpserver

import (
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
)

// decodeStrict decodes a JSON body rejecting unknown fields and trailing data.
func decodeStrict(c *gin.Context, dst any) error {
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}
