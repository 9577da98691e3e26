package parquetread

import (
	"fmt"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// ValidateSchema checks that at least one leaf column of schema is
// recognized by known, so the file can plausibly be mapped to log records.
func ValidateSchema(schema *parquet.Schema, known func(string) bool) error {
	var names []string
	for _, path := range schema.Columns() {
		name := path[len(path)-1]
		if known(name) {
			return nil
		}
		names = append(names, strings.Join(path, "."))
	}
	if len(names) == 0 {
		return fmt.Errorf("parquet schema has no columns")
	}
	return fmt.Errorf("no recognizable log columns in parquet schema (have: %s)", strings.Join(names, ", "))
}
