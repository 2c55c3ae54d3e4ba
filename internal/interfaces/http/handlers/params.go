package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	domainErrors "github.com/eben2468/srcwebsite-sub012/pkg/errors"
	"github.com/gin-gonic/gin"
)

// params 动作参数: GET 取自 query, POST 取自 JSON 或表单
type params map[string]string

func readParams(c *gin.Context) (params, error) {
	out := params{}
	for k, v := range c.Request.URL.Query() {
		if k != "action" && len(v) > 0 {
			out[k] = v[0]
		}
	}
	if c.Request.Method != http.MethodPost || c.Request.ContentLength == 0 {
		return out, nil
	}

	ct := c.ContentType()
	switch {
	case ct == gin.MIMEJSON:
		var body map[string]any
		if err := json.NewDecoder(c.Request.Body).Decode(&body); err != nil {
			return nil, domainErrors.NewInvalidInputError("malformed JSON body")
		}
		for k, v := range body {
			switch t := v.(type) {
			case nil:
			case string:
				out[k] = t
			case float64:
				out[k] = strconv.FormatFloat(t, 'f', -1, 64)
			case bool:
				out[k] = strconv.FormatBool(t)
			default:
				return nil, domainErrors.NewInvalidInputError(fmt.Sprintf("parameter %s must be a scalar", k))
			}
		}
	case ct == gin.MIMEPOSTForm || strings.HasPrefix(ct, gin.MIMEMultipartPOSTForm):
		if err := c.Request.ParseMultipartForm(32 << 20); err != nil && err != http.ErrNotMultipart {
			return nil, domainErrors.NewInvalidInputError("malformed form body")
		}
		for k, v := range c.Request.PostForm {
			if len(v) > 0 {
				out[k] = v[0]
			}
		}
	}
	return out, nil
}

func (p params) str(key string) string {
	return strings.TrimSpace(p[key])
}

// id parses a positive identifier; missing or zero is rejected.
func (p params) id(key string) (uint, error) {
	n, err := p.optID(key)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, domainErrors.NewInvalidInputError(key + " is required")
	}
	return n, nil
}

// optID parses an identifier that may be absent (0).
func (p params) optID(key string) (uint, error) {
	raw := p.str(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 0)
	if err != nil {
		return 0, domainErrors.NewInvalidInputError(key + " must be a non-negative integer")
	}
	return uint(n), nil
}

func (p params) optInt(key string) (*int, error) {
	raw := p.str(key)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, domainErrors.NewInvalidInputError(key + " must be an integer")
	}
	return &n, nil
}

func (p params) boolean(key string) bool {
	switch strings.ToLower(p.str(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
