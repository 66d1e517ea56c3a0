package models

import "fmt"

// Source identifies who produced a value.
type Source string

const (
	// SourceUserInput is a human operator correction.
	SourceUserInput Source = "USER_INPUT"
	// SourceGLEIF is the top-tier official registry feed.
	SourceGLEIF Source = "GLEIF"
	// SourceNationalRegistry is a local/national business registry feed.
	SourceNationalRegistry Source = "NATIONAL_REGISTRY"
	// SourceDocumentExtraction covers values extracted from uploaded documents.
	SourceDocumentExtraction Source = "DOCUMENT_EXTRACTION"
	// SourceSystem covers values derived by the platform itself.
	SourceSystem Source = "SYSTEM"
)

// Sources lists every known source in trust order, highest first.
func Sources() []Source {
	return []Source{
		SourceUserInput,
		SourceGLEIF,
		SourceNationalRegistry,
		SourceDocumentExtraction,
		SourceSystem,
	}
}

// ParseSource validates a source name.
func ParseSource(s string) (Source, error) {
	src := Source(s)
	if !src.IsKnown() {
		return "", fmt.Errorf("unknown source %q", s)
	}
	return src, nil
}

// IsKnown reports whether s is one of Sources().
func (s Source) IsKnown() bool {
	switch s {
	case SourceUserInput, SourceGLEIF, SourceNationalRegistry, SourceDocumentExtraction, SourceSystem:
		return true
	default:
		return false
	}
}

// IsAutomated reports whether s is a machine feed rather than a human.
func (s Source) IsAutomated() bool {
	return s.IsKnown() && s != SourceUserInput
}

func (s Source) String() string { return string(s) }
