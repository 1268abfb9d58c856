// Package observ provides structured JSON logging and an in-memory
// metrics registry with HTTP dump and health endpoints.
package observ

import (
	"encoding/json"
	"fmt"
	"time"
)

// Log emits a single-line JSON event to stdout. kv may be nil.
func Log(event string, kv map[string]any) {
	if kv == nil {
		kv = map[string]any{}
	}
	kv["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	kv["event"] = event
	b, _ := json.Marshal(kv)
	fmt.Println(string(b))
}

// Error logs an event carrying an error, tolerating a nil err.
func Error(event string, err error, kv map[string]any) {
	if kv == nil {
		kv = map[string]any{}
	}
	if err != nil {
		kv["error"] = err.Error()
	}
	Log(event, kv)
}
