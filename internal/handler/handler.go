package handler

import (
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/parley/pkg/errcode"
)

// queryId reads a positive int64 id from the query string
func queryId(c *app.RequestContext, key string) (int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, errcode.ErrInvalidParam.WithDetail("%s is required", key)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errcode.ErrInvalidParam.WithDetail("%s must be a positive integer", key)
	}
	return id, nil
}

// queryInt reads an optional non-negative integer, zero when absent
func queryInt(c *app.RequestContext, key string) (int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, errcode.ErrInvalidParam.WithDetail("%s must be a non-negative integer", key)
	}
	return v, nil
}
