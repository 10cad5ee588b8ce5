package ocigo

import (
	"strconv"
)

// Returns the bool value of the input.
// The 2nd return value indicates if the input was a valid bool value
func readBool(input string) (value bool, valid bool) {
	switch input {
	case "1", "true", "TRUE", "True":
		return true, true
	case "0", "false", "FALSE", "False":
		return false, true
	}

	// Not a valid bool value
	return
}

func readInt32(input string) (value int32, valid bool) {
	var parsed int64
	parsed, err := strconv.ParseInt(input, 10, 32)
	if err == nil {
		value = int32(parsed)
		valid = true
	}
	return
}

// asInt64 widens the integer shapes a fetch or an attribute value may
// arrive in.
func asInt64(v interface{}) (value int64, valid bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case uint32:
		return int64(n), true
	case float64:
		return int64(n), true
	case []byte:
		parsed, err := strconv.ParseInt(string(n), 10, 64)
		return parsed, err == nil
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		return parsed, err == nil
	}
	return 0, false
}
