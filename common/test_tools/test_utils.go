package testtools

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// GenerateCtxWithJSONAndParams builds a gin test context carrying the given
// JSON body and route params.
func GenerateCtxWithJSONAndParams(t *testing.T, data map[string]interface{}, params []gin.Param) *gin.Context {
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Params = params
	ctx.Request = httptest.NewRequest("POST", "http://localhost:8080", nil)

	jsonbytes, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}

	ctx.Request.Body = io.NopCloser(bytes.NewReader(jsonbytes))

	return ctx
}

// GenerateCtxWithQueryAndParams builds a gin test context for GET style
// handlers with query string values and route params.
func GenerateCtxWithQueryAndParams(t *testing.T, query map[string]string, params []gin.Param) *gin.Context {
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Params = params
	ctx.Request = httptest.NewRequest("GET", "http://localhost:8080", nil)

	q := ctx.Request.URL.Query()
	for k, v := range query {
		q.Set(k, v)
	}

	ctx.Request.URL.RawQuery = q.Encode()

	return ctx
}
