package model

import (
	"sort"
	"strconv"
	"strings"
)

// JobParameters are the named launch parameters of a run.
type JobParameters map[string]string

// NewJobParameters creates an empty JobParameters.
func NewJobParameters() JobParameters {
	return make(JobParameters)
}

// ParseJobParameters splits args of the form key=value into parameters.
// Arguments without "=" are returned unchanged in rest.
func ParseJobParameters(args []string) (params JobParameters, rest []string) {
	params = NewJobParameters()
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			rest = append(rest, arg)
			continue
		}
		params[key] = value
	}
	return params, rest
}

// Put sets a parameter.
func (jp JobParameters) Put(key, value string) {
	jp[key] = value
}

// GetString returns a parameter.
func (jp JobParameters) GetString(key string) (string, bool) {
	v, ok := jp[key]
	return v, ok
}

// GetInt returns a parameter parsed as an int.
func (jp JobParameters) GetInt(key string) (int, bool) {
	v, ok := jp[key]
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

// String renders the parameters sorted by key, masking the values of maskedKeys.
func (jp JobParameters) String(maskedKeys ...string) string {
	masked := make(map[string]bool, len(maskedKeys))
	for _, k := range maskedKeys {
		masked[strings.ToLower(k)] = true
	}
	keys := make([]string, 0, len(jp))
	for k := range jp {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := jp[k]
		if masked[strings.ToLower(k)] {
			v = "********"
		}
		parts = append(parts, k+"="+v)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
