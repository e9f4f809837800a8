package handler

// Result is the uniform outcome envelope returned by handler
// operations. It is a tagged union: a Result carries either success
// data or an error message, never both. Construct one with Ok or
// Fail; the zero value is a failure with an empty message.
type Result struct {
	success  bool
	data     any
	err      string
	metadata map[string]any
}

// Ok builds a successful Result. metadata may be nil.
func Ok(data any, metadata map[string]any) Result {
	return Result{success: true, data: data, metadata: metadata}
}

// Fail builds a failed Result carrying a handler-reported message.
func Fail(message string) Result {
	return Result{success: false, err: message}
}

// Success reports whether the operation succeeded.
func (r Result) Success() bool {
	return r.success
}

// Data returns the success payload, or nil for a failed Result.
func (r Result) Data() any {
	if !r.success {
		return nil
	}
	return r.data
}

// Err returns the handler-reported error message, or "" on success.
func (r Result) Err() string {
	if r.success {
		return ""
	}
	return r.err
}

// Metadata returns the optional scalar metadata attached to a
// successful Result. It is nil for failures.
func (r Result) Metadata() map[string]any {
	if !r.success {
		return nil
	}
	return r.metadata
}

// Confidence extracts the conventional "confidence" metadata entry as
// a float in [0,1]. The second return is false when absent.
func (r Result) Confidence() (float64, bool) {
	if !r.success || r.metadata == nil {
		return 0, false
	}
	switch v := r.metadata["confidence"].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}
