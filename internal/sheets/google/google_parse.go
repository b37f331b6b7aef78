package google

import (
	"fmt"
	"strconv"
	"strings"
)

// quoteSheet turns a worksheet title into an A1 range covering the sheet.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// toMatrix converts a values matrix (as returned by the Sheets API) into
// trimmed strings, the shape the sheet parsers read.
func toMatrix(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		out[i] = toStrings(row)
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch n := v.(type) {
		case float64:
			// Unformatted numbers arrive as JSON floats; keep 1000000 out of
			// exponent notation.
			out[i] = strconv.FormatFloat(n, 'f', -1, 64)
		case nil:
			out[i] = ""
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}
