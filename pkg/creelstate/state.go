// Package creelstate reads and writes the persisted artifact state file, a
// flat ordered record list allowing incremental re-runs to skip unchanged
// work. The format is a small bespoke key=value block separated by blank
// lines rather than a general-purpose serialization format — see DESIGN.md.
package creelstate

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/gofrs/flock"

	"github.com/mmilitzer/creel/pkg/creelartifact"
)

// Record is one persisted artifact entry.
type Record struct {
	URL      string
	FilePath string
	Volatile bool
	Digest   string
}

// State is the full persisted artifact list, sorted by FilePath.
type State struct {
	Records []Record
}

// FromArtifacts builds a State from a set of artifacts, sorted deterministically.
func FromArtifacts(artifacts []*creelartifact.Artifact) *State {
	records := make([]Record, 0, len(artifacts))
	for _, a := range artifacts {
		records = append(records, Record{
			URL:      a.SourceURL,
			FilePath: a.FilePath,
			Volatile: a.Volatile,
			Digest:   a.Digest,
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].FilePath < records[j].FilePath })
	return &State{Records: records}
}

// ToArtifacts converts the state back into artifacts, e.g. to diff against a
// newly planned set.
func (s *State) ToArtifacts() []*creelartifact.Artifact {
	out := make([]*creelartifact.Artifact, 0, len(s.Records))
	for _, r := range s.Records {
		out = append(out, &creelartifact.Artifact{
			FilePath:  r.FilePath,
			SourceURL: r.URL,
			Volatile:  r.Volatile,
			Digest:    r.Digest,
		})
	}
	return out
}

// Serialize writes the state deterministically: one block per record,
// separated by a blank line, fields in url/file/volatile/digest order (the
// `volatile` key is omitted when false).
func (s *State) Serialize(w io.Writer) error {
	for i, r := range s.Records {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "url=%s\n", r.URL); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "file=%s\n", r.FilePath); err != nil {
			return err
		}
		if r.Volatile {
			if _, err := io.WriteString(w, "volatile=true\n"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "digest=%s\n", r.Digest); err != nil {
			return err
		}
	}
	return nil
}

// Parse reads a state file. Missing digest is tolerated (the artifact parses
// but will read back with an empty Digest, which Artifact.WasModified always
// treats as modified); missing volatile defaults to false; unknown keys are
// ignored for forward compatibility.
func Parse(r io.Reader) (*State, error) {
	scanner := bufio.NewScanner(r)
	var records []Record
	current := Record{}
	have := false
	flush := func() {
		if have {
			records = append(records, current)
		}
		current = Record{}
		have = false
	}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			flush()
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue // malformed line: ignored, treated like an unknown key
		}
		have = true
		switch key {
		case "url":
			current.URL = value
		case "file":
			current.FilePath = value
		case "volatile":
			current.Volatile = value == "true"
		case "digest":
			current.Digest = value
		default:
			// unknown keys ignored for forward compatibility
		}
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return &State{Records: records}, nil
}

// Load reads the state file at path. A missing file yields an empty State
// (no error): there is simply no prior run to diff against. A corrupt file
// is reported as a CorruptError and treated as absent — callers should log
// the returned error and proceed with the (empty) State.
func Load(path string) (*State, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return &State{}, &CorruptError{Path: path, Cause: err}
	}
	defer f.Close()
	state, err := Parse(f)
	if err != nil {
		return &State{}, &CorruptError{Path: path, Cause: err}
	}
	return state, nil
}

// Save writes the state file atomically (temp file + rename) under a file
// lock guarding against concurrent writers to the same path, following the
// teacher's go.mod inclusion of github.com/gofrs/flock.
func (s *State) Save(path string) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	tempPath := path + ".tmp"
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := s.Serialize(f); err != nil {
		f.Close()
		os.Remove(tempPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}
	return os.Rename(tempPath, path)
}

// CorruptError is creel's StateFileCorrupt error kind.
type CorruptError struct {
	Path  string
	Cause error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("state file %s is corrupt: %v", e.Path, e.Cause)
}

func (e *CorruptError) Unwrap() error { return e.Cause }
