package model

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
)

// ErrInvalidLocation is returned when a mutant location cannot be turned into a
// source path inside a workspace.
var ErrInvalidLocation = errors.New("invalid mutant location")

var javaIdentifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Location identifies a Java compilation unit relative to a source root.
// ModulePath holds slash-separated package segments ("org/apache/commons/lang3"),
// ClassName the simple name of the top-level class.
type Location struct {
	ModulePath string `yaml:"module_path"`
	ClassName  string `yaml:"class_name" validate:"required"`
}

// NewLocation builds a Location from a dotted, possibly nested, class name such as
// "org.jfree.chart.Foo$Bar". Inner classes resolve to their top-level file.
func NewLocation(qualifiedClass string) (Location, error) {
	qualifiedClass = strings.TrimSpace(strings.ReplaceAll(qualifiedClass, "/", "."))
	if idx := strings.Index(qualifiedClass, "$"); idx >= 0 {
		qualifiedClass = qualifiedClass[:idx]
	}

	segments := strings.Split(qualifiedClass, ".")
	loc := Location{
		ModulePath: strings.Join(segments[:len(segments)-1], "/"),
		ClassName:  segments[len(segments)-1],
	}

	if err := loc.Validate(); err != nil {
		return Location{}, err
	}

	return loc, nil
}

// Validate checks every path segment is a plain Java identifier, which rules out
// absolute paths and parent-directory escapes.
func (l Location) Validate() error {
	if !javaIdentifier.MatchString(l.ClassName) {
		return fmt.Errorf("%w: class name %q", ErrInvalidLocation, l.ClassName)
	}

	if l.ModulePath == "" {
		return nil
	}

	for _, segment := range strings.Split(l.ModulePath, "/") {
		if !javaIdentifier.MatchString(segment) {
			return fmt.Errorf("%w: package segment %q in %q", ErrInvalidLocation, segment, l.ModulePath)
		}
	}

	return nil
}

// RelPath returns the slash-separated file path relative to the source root.
func (l Location) RelPath() string {
	return path.Join(l.ModulePath, l.ClassName+".java")
}

// QualifiedName returns the dotted class name.
func (l Location) QualifiedName() string {
	if l.ModulePath == "" {
		return l.ClassName
	}

	return strings.ReplaceAll(l.ModulePath, "/", ".") + "." + l.ClassName
}
