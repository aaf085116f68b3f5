package encoding

import (
	"fmt"
	"os"
	"unicode"

	"subburn/internal/services"
)

// ValidatePathText rejects characters that could smuggle extra arguments or
// filter options into the external process: newlines, NUL bytes, and
// invisible Unicode format characters (zero-width and BiDi controls).
func ValidatePathText(label, path string) error {
	if path == "" {
		return services.Wrap(services.ErrValidation, "encoding", "validate", fmt.Sprintf("%s path is empty", label), nil)
	}
	for _, r := range path {
		if r == '\n' || r == '\r' || r == 0 || unicode.Is(unicode.Cf, r) {
			return services.Wrap(
				services.ErrValidation,
				"encoding",
				"validate",
				fmt.Sprintf("%s path %q contains a disallowed character (U+%04X)", label, path, r),
				nil,
			)
		}
	}
	return nil
}

// ValidateInputExists confirms a required input file is present on disk.
func ValidateInputExists(label, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return services.Wrap(
			services.ErrNotFound,
			"encoding",
			"validate",
			fmt.Sprintf("%s file %q", label, path),
			err,
		)
	}
	if info.IsDir() {
		return services.Wrap(
			services.ErrValidation,
			"encoding",
			"validate",
			fmt.Sprintf("%s path %q is a directory", label, path),
			nil,
		)
	}
	return nil
}
