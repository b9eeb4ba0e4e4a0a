// Package greeter serves the fixed greeting on the root path.
package greeter

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	applog "github.com/janisto/greeter-web/internal/platform/logging"
)

// Greeting is returned verbatim by GET /.
const Greeting = "Hello World! Welcome to my Web Application!😀😀"

// ContentType is the media type of the greeting body.
const ContentType = "text/html; charset=utf-8"

var greetingBytes = []byte(Greeting)

// GetOutput carries the greeting as a raw body so it is written byte-for-byte
// instead of being negotiated into JSON or CBOR.
type GetOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// Register adds the greeting operation to api.
func Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-greeting",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "Get the greeting",
		Description: "Returns the same static greeting on every call.",
		Tags:        []string{"Greeting"},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Greeting text",
				Content: map[string]*huma.MediaType{
					"text/html": {
						Schema: &huma.Schema{Type: huma.TypeString, Examples: []any{Greeting}},
					},
				},
			},
		},
	}, getHandler)
}

func getHandler(ctx context.Context, _ *struct{}) (*GetOutput, error) {
	applog.LogInfo(ctx, "greeting served")
	// greetingBytes is never handed out directly.
	body := make([]byte, len(greetingBytes))
	copy(body, greetingBytes)
	return &GetOutput{ContentType: ContentType, Body: body}, nil
}
