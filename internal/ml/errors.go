package ml

import "fmt"

// SchemaMismatchError reports encoder/classifier version skew: a feature
// vector whose length or schema version disagrees with what the artifact was
// trained on. This is a fatal configuration fault; serving must halt for the
// artifact rather than produce a wrong score.
type SchemaMismatchError struct {
	ArtifactVersion string
	WantLen         int
	GotLen          int
	WantSchema      string
	GotSchema       string
}

func (e *SchemaMismatchError) Error() string {
	if e.WantSchema != e.GotSchema {
		return fmt.Sprintf("schema mismatch: artifact %s expects feature schema %s, got %s", e.ArtifactVersion, e.WantSchema, e.GotSchema)
	}
	return fmt.Sprintf("schema mismatch: artifact %s expects %d features, got %d", e.ArtifactVersion, e.WantLen, e.GotLen)
}
