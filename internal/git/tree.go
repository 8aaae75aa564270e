package git

import (
	"fmt"
	"strings"

	binnacleerrors "binnacle.dev/binnacle/internal/errors"
)

const (
	// ModeRegular is the tree-entry mode of a non-executable file
	ModeRegular = "100644"
	// TypeBlob is the object type of file contents
	TypeBlob = "blob"
)

// TreeEntry is one line of a tree listing: mode, object type, object id and name.
type TreeEntry struct {
	Mode string
	Type string
	SHA  string
	Name string
}

// BlobEntry returns a regular-file tree entry for the given blob.
func BlobEntry(name, sha string) TreeEntry {
	return TreeEntry{Mode: ModeRegular, Type: TypeBlob, SHA: sha, Name: name}
}

// String formats the entry the way ls-tree prints it and mktree reads it.
func (e TreeEntry) String() string {
	return fmt.Sprintf("%s %s %s\t%s", e.Mode, e.Type, e.SHA, e.Name)
}

// ParseTreeEntry parses a single "<mode> <type> <sha>\t<name>" record.
func ParseTreeEntry(record string) (TreeEntry, error) {
	meta, name, ok := strings.Cut(record, "\t")
	if !ok || name == "" {
		return TreeEntry{}, binnacleerrors.NewMalformedOutputError("ls-tree", record, "missing tab separator")
	}
	fields := strings.Fields(meta)
	if len(fields) != 3 {
		return TreeEntry{}, binnacleerrors.NewMalformedOutputError("ls-tree", record, "expected mode, type and object id")
	}
	if !IsObjectID(fields[2]) {
		return TreeEntry{}, binnacleerrors.NewMalformedOutputError("ls-tree", record, "invalid object id")
	}
	return TreeEntry{Mode: fields[0], Type: fields[1], SHA: fields[2], Name: name}, nil
}

// ParseTreeListing parses NUL-terminated "ls-tree -z" output.
func ParseTreeListing(output string) ([]TreeEntry, error) {
	var entries []TreeEntry
	for record := range strings.SplitSeq(output, "\x00") {
		if record == "" {
			continue
		}
		entry, err := ParseTreeEntry(record)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// FormatTreeListing encodes entries as NUL-terminated records for "mktree -z".
func FormatTreeListing(entries []TreeEntry) string {
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e.String())
		sb.WriteByte(0)
	}
	return sb.String()
}

// FindEntry returns the blob entry called name.
func FindEntry(entries []TreeEntry, name string) (TreeEntry, bool) {
	for _, e := range entries {
		if e.Name == name && e.Type == TypeBlob {
			return e, true
		}
	}
	return TreeEntry{}, false
}

// ReplaceEntry returns entries with the entry named like replacement swapped out,
// or replacement appended when no entry has that name. Other entries keep their order.
func ReplaceEntry(entries []TreeEntry, replacement TreeEntry) []TreeEntry {
	result := make([]TreeEntry, 0, len(entries)+1)
	replaced := false
	for _, e := range entries {
		if e.Name == replacement.Name {
			if !replaced {
				result = append(result, replacement)
				replaced = true
			}
			continue
		}
		result = append(result, e)
	}
	if !replaced {
		result = append(result, replacement)
	}
	return result
}

// IsObjectID reports whether s looks like a full SHA-1 or SHA-256 object id.
func IsObjectID(s string) bool {
	if len(s) != 40 && len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// parseObjectID validates the output of a command that prints a single object id.
func parseObjectID(subcommand, output string) (string, error) {
	sha := strings.TrimSpace(output)
	if !IsObjectID(sha) {
		return "", binnacleerrors.NewMalformedOutputError(subcommand, output, "expected an object id")
	}
	return sha, nil
}
