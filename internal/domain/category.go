package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Category is one of the SPC report categories.
type Category string

const (
	Hail    Category = "hail"
	Tornado Category = "torn"
	Wind    Category = "wind"
)

// Categories lists every registered category in a fixed order.
var Categories = []Category{Hail, Tornado, Wind}

// ParseCategory accepts the short category tag ("hail", "torn", "wind").
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case Hail, Tornado, Wind:
		return Category(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
}

// Dir is the name of the directory holding this category's files.
func (c Category) Dir() string {
	if c == Tornado {
		return "tornado"
	}
	return string(c)
}

// CategoryFromPath infers a file's category from its "_rpts_<cat>" name
// suffix, falling back to the name of its parent directory.
func CategoryFromPath(path string) (Category, error) {
	base := strings.ToLower(filepath.Base(path))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	for _, c := range Categories {
		if strings.HasSuffix(stem, "_rpts_"+string(c)) {
			return c, nil
		}
	}

	switch strings.ToLower(filepath.Base(filepath.Dir(path))) {
	case "hail":
		return Hail, nil
	case "tornado", "torn":
		return Tornado, nil
	case "wind":
		return Wind, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownCategory, path)
}
