package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// overridePattern matches a path=value token. Paths are sjson dotted paths.
var overridePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_\-]*(\.[A-Za-z0-9_\-]+)*=`)

// Override sets one dotted path of the built parameters.
type Override struct {
	Path  string
	Value string
}

// ArgsSeparator ends the positional arguments explicitly. Tokens before it
// are positional even when they look like path=value; tokens after it must
// all be overrides.
const ArgsSeparator = "--"

// SplitArgs separates positional arguments from the trailing run of
// path=value overrides. With an ArgsSeparator, the split happens at its
// first occurrence instead.
func SplitArgs(args []string) ([]string, []Override, error) {
	for i, arg := range args {
		if arg != ArgsSeparator {
			continue
		}
		overrides := make([]Override, 0, len(args)-i-1)
		for _, o := range args[i+1:] {
			if !overridePattern.MatchString(o) {
				return nil, nil, fmt.Errorf("%w: %q after %s is not path=value", ErrInvalidOverride, o, ArgsSeparator)
			}
			overrides = append(overrides, parseOverride(o))
		}
		if len(overrides) == 0 {
			overrides = nil
		}
		return args[:i], overrides, nil
	}

	cut := len(args)
	for cut > 0 && overridePattern.MatchString(args[cut-1]) {
		cut--
	}
	if cut == len(args) {
		return args, nil, nil
	}

	overrides := make([]Override, 0, len(args)-cut)
	for _, arg := range args[cut:] {
		overrides = append(overrides, parseOverride(arg))
	}
	return args[:cut], overrides, nil
}

func parseOverride(arg string) Override {
	i := strings.IndexByte(arg, '=')
	return Override{Path: arg[:i], Value: arg[i+1:]}
}

// ApplyOverrides sets each override on the JSON form of params and decodes
// the result back into P. A value that is valid JSON is set as JSON, any
// other value as a string. Paths that do not exist in P are rejected.
func ApplyOverrides[P any](params P, overrides []Override) (P, error) {
	var zero P

	data, err := json.Marshal(params)
	if err != nil {
		return zero, fmt.Errorf("%w: encode parameters: %v", ErrInvalidOverride, err)
	}
	if !gjson.ParseBytes(data).IsObject() {
		data = []byte("{}")
	}

	for _, o := range overrides {
		if gjson.Valid(o.Value) {
			data, err = sjson.SetRawBytes(data, o.Path, []byte(o.Value))
		} else {
			data, err = sjson.SetBytes(data, o.Path, o.Value)
		}
		if err != nil {
			return zero, fmt.Errorf("%w: %s: %v", ErrInvalidOverride, o.Path, err)
		}
	}

	var out P
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidOverride, err)
	}
	return out, nil
}
