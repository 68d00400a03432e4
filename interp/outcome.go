package interp

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"appstub/exitcode"
	"appstub/traceback"
)

type Kind int

const (
	Success Kind = iota
	RequestedExit
	UnhandledError
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case RequestedExit:
		return "requested_exit"
	case UnhandledError:
		return "unhandled_error"
	}
	return "unknown"
}

// Outcome is how the entry module ended. Failure is set only for
// UnhandledError.
type Outcome struct {
	Kind    Kind
	Code    int
	Failure *traceback.Failure
	// Payload is the raw requested-exit payload when it was not an integer.
	Payload string
}

// Record kinds sent by the runtime.
const (
	RecordReady   = "ready"
	RecordSuccess = "success"
	RecordExit    = "exit"
	RecordError   = "error"
	RecordImport  = "import"
)

// Record is the raw error state reported by the runtime.
type Record struct {
	Kind        string                `json:"kind"`
	Code        json.RawMessage       `json:"code,omitempty"`
	Type        string                `json:"type,omitempty"`
	Value       string                `json:"value,omitempty"`
	Traceback   []traceback.Frame     `json:"traceback,omitempty"`
	Chain       []traceback.Exception `json:"chain,omitempty"`
	FormatError string                `json:"format_error,omitempty"`
}

// Classify maps what RunMain returned onto an Outcome. It is the only place
// that looks at raw runtime state.
func Classify(rec *Record, err error) Outcome {
	if err != nil || rec == nil {
		detail := ""
		if err != nil {
			detail = err.Error()
		}
		return extractionFailure("retrieve the error state from the runtime", detail)
	}

	switch rec.Kind {
	case RecordSuccess:
		return Outcome{Kind: Success, Code: exitcode.OK}
	case RecordExit:
		code, ok := exitCode(rec.Code)
		o := Outcome{Kind: RequestedExit, Code: code}
		if !ok {
			o.Payload = string(rec.Code)
		}
		return o
	case RecordImport:
		return Outcome{
			Kind: UnhandledError,
			Code: exitcode.Import,
			Failure: &traceback.Failure{
				Exception: traceback.Exception{Type: rec.Type, Value: rec.Value},
			},
		}
	case RecordError:
		f := &traceback.Failure{
			Exception: traceback.Exception{Type: rec.Type, Value: rec.Value, Frames: rec.Traceback},
			Chain:     rec.Chain,
		}
		if rec.FormatError != "" {
			f.Degraded = "format the traceback"
			f.Detail = rec.FormatError
			return Outcome{Kind: UnhandledError, Code: exitcode.Diagnostic, Failure: f}
		}
		return Outcome{Kind: UnhandledError, Code: exitcode.Unhandled, Failure: f}
	}
	return extractionFailure("interpret the runtime outcome", fmt.Sprintf("unexpected record kind %q", rec.Kind))
}

func extractionFailure(step, detail string) Outcome {
	return Outcome{
		Kind:    UnhandledError,
		Code:    exitcode.Diagnostic,
		Failure: &traceback.Failure{Degraded: step, Detail: detail},
	}
}

// exitCode reads a requested-exit payload. null means 0; anything that is not
// an integer maps to NonNumericExit. Integers outside the int32 range keep
// their low 32 bits, as the C exit status conversion does.
func exitCode(raw json.RawMessage) (int, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return exitcode.OK, true
	}
	if n, err := strconv.ParseInt(s, 10, 32); err == nil {
		return int(n), true
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return exitcode.NonNumericExit, false
	}
	low := new(big.Int).And(n, big.NewInt(math.MaxUint32)).Uint64()
	return int(int32(uint32(low))), true
}
