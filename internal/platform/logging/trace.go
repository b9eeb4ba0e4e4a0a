package logging

import (
	"fmt"
	"regexp"
	"sync/atomic"

	"go.uber.org/zap"
)

const traceparentHeader = "traceparent"

// W3C Trace Context: {version}-{trace-id}-{parent-id}-{trace-flags}
var traceHeaderRe = regexp.MustCompile(`^([0-9a-fA-F]{2})-([0-9a-fA-F]{32})-([0-9a-fA-F]{16})-([0-9a-fA-F]{2})$`)

var projectID atomic.Value

// SetProjectID sets the Google Cloud project used to build trace resource names.
// An empty id disables trace correlation.
func SetProjectID(id string) {
	projectID.Store(id)
}

func currentProjectID() string {
	v, _ := projectID.Load().(string)
	return v
}

// traceContext is the parsed form of a traceparent header.
type traceContext struct {
	resource string
	spanID   string
	sampled  bool
}

func parseTraceparent(header, project string) (traceContext, bool) {
	if project == "" {
		return traceContext{}, false
	}
	m := traceHeaderRe.FindStringSubmatch(header)
	if len(m) != 5 {
		return traceContext{}, false
	}
	return traceContext{
		resource: fmt.Sprintf("projects/%s/traces/%s", project, m[2]),
		spanID:   m[3],
		sampled:  m[4] == "01",
	}, true
}

func loggerWithTrace(base *zap.Logger, tc traceContext, ok bool, requestID string) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	var fields []zap.Field
	if ok {
		fields = append(fields,
			zap.String("logging.googleapis.com/trace", tc.resource),
			zap.String("logging.googleapis.com/spanId", tc.spanID),
			zap.Bool("logging.googleapis.com/trace_sampled", tc.sampled),
		)
	}
	if requestID != "" {
		fields = append(fields, zap.String("requestId", requestID))
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
