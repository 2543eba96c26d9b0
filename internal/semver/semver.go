// Package semver implements the two-component version numbering policy.
//
// Versions are "<major>.<minor>" with no leading zeros, e.g. "1.0", "2.13".
// Snapshot directories are named "v<major>.<minor>". The next number is a
// pure function of the previous number and the change class; nothing here
// touches the filesystem or the registry.
package semver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/stencilhq/stencil/internal/apperr"
	"github.com/stencilhq/stencil/internal/models"
)

// Version is a parsed two-component version number.
type Version struct {
	Major int
	Minor int
}

// Parse parses "M.m". Anything else fails with apperr.ErrMalformedVersion;
// the policy never guesses.
func Parse(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return Version{}, fmt.Errorf("%w: %q", apperr.ErrMalformedVersion, s)
	}
	major, err := parseComponent(parts[0])
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q", apperr.ErrMalformedVersion, s)
	}
	minor, err := parseComponent(parts[1])
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q", apperr.ErrMalformedVersion, s)
	}
	return Version{Major: major, Minor: minor}, nil
}

func parseComponent(s string) (int, error) {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return 0, fmt.Errorf("bad component %q", s)
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("bad component %q", s)
	}
	return n, nil
}

// String returns "M.m".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// DirName returns the snapshot directory name, "vM.m". This format is part
// of the on-disk contract and may be hard-coded by readers.
func (v Version) DirName() string {
	return "v" + v.String()
}

// Next computes the version that follows prev for the given change class.
// prev is nil only for a project with no versions yet.
func Next(prev *Version, class models.ChangeClass) (Version, error) {
	if class == models.ChangeInitial {
		if prev != nil {
			return Version{}, fmt.Errorf("%w: project is already at %s", apperr.ErrInitialVersionExists, prev)
		}
		return Version{Major: 1, Minor: 0}, nil
	}
	if prev == nil {
		return Version{}, fmt.Errorf("%w: %s cut requires one", apperr.ErrNoPreviousVersion, class)
	}
	switch class {
	case models.ChangeEdit, models.ChangeRollback:
		return Version{Major: prev.Major, Minor: prev.Minor + 1}, nil
	case models.ChangeRegeneration:
		return Version{Major: prev.Major + 1, Minor: 0}, nil
	default:
		return Version{}, fmt.Errorf("semver: unknown change class %q", class)
	}
}
