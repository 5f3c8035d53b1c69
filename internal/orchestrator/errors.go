package orchestrator

import (
	"errors"

	"github.com/simonhull/firebird-suite/hatch/internal/generator"
	"github.com/simonhull/firebird-suite/hatch/internal/manifest"
	"github.com/simonhull/firebird-suite/hatch/internal/materialize"
	"github.com/simonhull/firebird-suite/hatch/internal/registry"
	"github.com/simonhull/firebird-suite/hatch/internal/variables"
)

// ErrorKind classifies a generation failure.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindUnknownTemplate
	KindMissingVariable
	KindInvalidVariable
	KindSubstitution
	KindMergeConflict
	KindTargetNotEmpty
	KindWriteFailure
	KindOther
)

var kindNames = map[ErrorKind]string{
	KindNone:            "none",
	KindUnknownTemplate: "UnknownTemplate",
	KindMissingVariable: "MissingVariable",
	KindInvalidVariable: "InvalidVariable",
	KindSubstitution:    "SubstitutionError",
	KindMergeConflict:   "MergeConflict",
	KindTargetNotEmpty:  "TargetNotEmpty",
	KindWriteFailure:    "WriteFailure",
	KindOther:           "Other",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Other"
}

// ExitCode maps a kind to the process exit status used by the CLI.
func (k ErrorKind) ExitCode() int {
	switch k {
	case KindNone:
		return 0
	case KindUnknownTemplate:
		return 2
	case KindMissingVariable:
		return 3
	case KindInvalidVariable:
		return 4
	case KindSubstitution:
		return 5
	case KindMergeConflict:
		return 6
	case KindTargetNotEmpty:
		return 7
	case KindWriteFailure:
		return 8
	default:
		return 1
	}
}

// KindOf classifies err by the typed errors of the engine packages.
func KindOf(err error) ErrorKind {
	var invalid *variables.InvalidVariableError

	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, registry.ErrUnknownTemplate):
		return KindUnknownTemplate
	case errors.Is(err, variables.ErrMissingVariable):
		return KindMissingVariable
	case errors.As(err, &invalid):
		return KindInvalidVariable
	case errors.Is(err, materialize.ErrSubstitution):
		return KindSubstitution
	case errors.Is(err, manifest.ErrMergeConflict):
		return KindMergeConflict
	case errors.Is(err, generator.ErrTargetNotEmpty):
		return KindTargetNotEmpty
	case errors.Is(err, generator.ErrWriteFailure):
		return KindWriteFailure
	default:
		return KindOther
	}
}
