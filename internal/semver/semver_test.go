package semver

import (
	"errors"
	"testing"

	"github.com/stencilhq/stencil/internal/apperr"
	"github.com/stencilhq/stencil/internal/models"
)

func TestParseValid(t *testing.T) {
	cases := map[string]Version{
		"1.0":   {Major: 1, Minor: 0},
		"2.13":  {Major: 2, Minor: 13},
		"10.1":  {Major: 10, Minor: 1},
		"0.9":   {Major: 0, Minor: 9},
	}
	for in, want := range cases {
		got, err := Parse(in)
		if err != nil {
			t.Errorf("Parse(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("Parse(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseMalformed(t *testing.T) {
	for _, in := range []string{"", "1", "1.2.3", "a.b", "1.", ".2", "01.2", "1.02", "-1.0", "1.-2"} {
		if _, err := Parse(in); !errors.Is(err, apperr.ErrMalformedVersion) {
			t.Errorf("Parse(%q) err = %v, want ErrMalformedVersion", in, err)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	v := Version{Major: 3, Minor: 14}
	if v.String() != "3.14" {
		t.Errorf("String = %q", v.String())
	}
	if v.DirName() != "v3.14" {
		t.Errorf("DirName = %q", v.DirName())
	}
	back, err := Parse(v.String())
	if err != nil || back != v {
		t.Errorf("round trip = %v, %v", back, err)
	}
}

func TestNextInitial(t *testing.T) {
	v, err := Next(nil, models.ChangeInitial)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if v.String() != "1.0" {
		t.Errorf("initial = %s, want 1.0", v)
	}
	if _, err := Next(&Version{Major: 1, Minor: 0}, models.ChangeInitial); !errors.Is(err, apperr.ErrInitialVersionExists) {
		t.Errorf("initial with existing version: err = %v, want ErrInitialVersionExists", err)
	}
}

func TestNextEdit(t *testing.T) {
	v, err := Next(&Version{Major: 2, Minor: 5}, models.ChangeEdit)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if v.String() != "2.6" {
		t.Errorf("edit = %s, want 2.6", v)
	}
}

func TestNextRegeneration(t *testing.T) {
	v, err := Next(&Version{Major: 2, Minor: 5}, models.ChangeRegeneration)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if v.String() != "3.0" {
		t.Errorf("regeneration = %s, want 3.0", v)
	}
}

func TestNextRollbackBumpsMinor(t *testing.T) {
	v, err := Next(&Version{Major: 1, Minor: 1}, models.ChangeRollback)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if v.String() != "1.2" {
		t.Errorf("rollback = %s, want 1.2", v)
	}
}

func TestNextWithoutPrevious(t *testing.T) {
	for _, class := range []models.ChangeClass{models.ChangeEdit, models.ChangeRegeneration, models.ChangeRollback} {
		if _, err := Next(nil, class); !errors.Is(err, apperr.ErrNoPreviousVersion) {
			t.Errorf("%s without previous version: err = %v, want ErrNoPreviousVersion", class, err)
		}
	}
}
