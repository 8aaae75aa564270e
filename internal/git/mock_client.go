package git

import (
	"context"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5/plumbing"

	binnacleerrors "binnacle.dev/binnacle/internal/errors"
)

type mockCommit struct {
	tree    string
	parents []string
	message string
}

// MockClient implements Client over an in-memory object database. Object ids are
// computed the way git computes them, so blobs and trees hash identically to a real repo.
// It is safe for concurrent use.
type MockClient struct {
	mu sync.Mutex

	repoPath string
	// NotARepository makes IsRepository fail
	NotARepository bool
	// OnUpdateRef is called before every UpdateRef compare, with the lock released,
	// so tests can move a ref underneath a writer.
	OnUpdateRef func(ref string)
	// FailCommand makes the named method fail with a GitCommandError
	FailCommand string

	blobs   map[string]string
	trees   map[string][]TreeEntry
	commits map[string]mockCommit
	refs    map[string]string
	notes   map[string]map[string]string
	seq     int
	calls   []string
}

// NewMockClient creates an empty in-memory repository at repoPath.
func NewMockClient(repoPath string) *MockClient {
	return &MockClient{
		repoPath: repoPath,
		blobs:    make(map[string]string),
		trees:    make(map[string][]TreeEntry),
		commits:  make(map[string]mockCommit),
		refs:     make(map[string]string),
		notes:    make(map[string]map[string]string),
	}
}

// Calls returns the names of the methods invoked so far, in order.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// Ref returns the current value of ref, or "" if it does not exist.
func (m *MockClient) Ref(ref string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs[ref]
}

// CommitParents returns the parents of a commit created through the mock.
func (m *MockClient) CommitParents(sha string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.commits[sha].parents)
}

// record notes a call and returns the injected failure for it, if any. Caller holds mu.
func (m *MockClient) record(name string) error {
	m.calls = append(m.calls, name)
	if m.FailCommand == name {
		return binnacleerrors.NewGitCommandError("git", []string{name}, "", "fatal: injected failure", 128, nil)
	}
	return nil
}

// RepoPath returns the repository path the mock was created with.
func (m *MockClient) RepoPath() string {
	return m.repoPath
}

// IsRepository fails when NotARepository is set.
func (m *MockClient) IsRepository(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("rev-parse"); err != nil {
		return err
	}
	if m.NotARepository {
		return binnacleerrors.NewNotAGitRepositoryError(m.repoPath, nil)
	}
	return nil
}

// HashObject stores content as a blob.
func (m *MockClient) HashObject(_ context.Context, content string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("hash-object"); err != nil {
		return "", err
	}
	sha := plumbing.ComputeHash(plumbing.BlobObject, []byte(content)).String()
	m.blobs[sha] = content
	return sha, nil
}

// EmptyTree returns the id of the empty tree.
func (m *MockClient) EmptyTree(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("hash-object"); err != nil {
		return "", err
	}
	return m.writeTree(nil)
}

// LsTree lists a tree, resolving commits and refs to their trees.
func (m *MockClient) LsTree(_ context.Context, treeish string) ([]TreeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ls-tree"); err != nil {
		return nil, err
	}
	sha, ok := m.resolve(treeish)
	if !ok {
		return nil, binnacleerrors.NewGitCommandError("git", []string{"ls-tree", treeish}, "", "fatal: Not a valid object name "+treeish, 128, nil)
	}
	if c, isCommit := m.commits[sha]; isCommit {
		sha = c.tree
	}
	entries, ok := m.trees[sha]
	if !ok {
		return nil, binnacleerrors.NewGitCommandError("git", []string{"ls-tree", treeish}, "", "fatal: not a tree object", 128, nil)
	}
	return slices.Clone(entries), nil
}

// Mktree stores a tree. Entries are sorted by name as git does.
func (m *MockClient) Mktree(_ context.Context, entries []TreeEntry) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("mktree"); err != nil {
		return "", err
	}
	for _, e := range entries {
		if _, ok := m.blobs[e.SHA]; !ok && e.Type == TypeBlob {
			return "", binnacleerrors.NewGitCommandError("git", []string{"mktree"}, "", "fatal: entry '"+e.Name+"' object "+e.SHA+" is unavailable", 128, nil)
		}
	}
	return m.writeTree(entries)
}

func (m *MockClient) writeTree(entries []TreeEntry) (string, error) {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b TreeEntry) int { return strings.Compare(a.Name, b.Name) })

	var buf []byte
	for _, e := range sorted {
		raw, err := hex.DecodeString(e.SHA)
		if err != nil {
			return "", binnacleerrors.NewMalformedOutputError("mktree", e.String(), "invalid object id")
		}
		buf = append(buf, strings.TrimPrefix(e.Mode, "0")...)
		buf = append(buf, ' ')
		buf = append(buf, e.Name...)
		buf = append(buf, 0)
		buf = append(buf, raw...)
	}
	sha := plumbing.ComputeHash(plumbing.TreeObject, buf).String()
	m.trees[sha] = sorted
	return sha, nil
}

// CommitTree stores a commit. A sequence number stands in for git's timestamps so
// identical trees and messages still produce distinct commits.
func (m *MockClient) CommitTree(_ context.Context, tree string, parents []string, message string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("commit-tree"); err != nil {
		return "", err
	}
	if _, ok := m.trees[tree]; !ok {
		return "", binnacleerrors.NewGitCommandError("git", []string{"commit-tree", tree}, "", "fatal: "+tree+" is not a valid 'tree' object", 128, nil)
	}
	m.seq++
	var sb strings.Builder
	fmt.Fprintf(&sb, "tree %s\n", tree)
	for _, p := range parents {
		fmt.Fprintf(&sb, "parent %s\n", p)
	}
	fmt.Fprintf(&sb, "seq %d\n\n%s\n", m.seq, message)
	sha := plumbing.ComputeHash(plumbing.CommitObject, []byte(sb.String())).String()
	m.commits[sha] = mockCommit{tree: tree, parents: slices.Clone(parents), message: message}
	return sha, nil
}

// Show prints a blob, or the blob at "<rev>:<path>".
func (m *MockClient) Show(_ context.Context, object string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("show"); err != nil {
		return "", err
	}
	rev, path, hasPath := strings.Cut(object, ":")
	if !hasPath {
		if content, ok := m.blobs[object]; ok {
			return content, nil
		}
		return "", fmt.Errorf("%s: %w", object, binnacleerrors.ErrNotFound)
	}
	sha, ok := m.resolve(rev)
	if !ok {
		return "", fmt.Errorf("%s: %w", object, binnacleerrors.ErrNotFound)
	}
	if c, isCommit := m.commits[sha]; isCommit {
		sha = c.tree
	}
	for _, e := range m.trees[sha] {
		if e.Name == path {
			if content, ok := m.blobs[e.SHA]; ok {
				return content, nil
			}
			return "", binnacleerrors.NewGitCommandError("git", []string{"show", object}, "", "fatal: bad object "+e.SHA, 128, nil)
		}
	}
	return "", fmt.Errorf("%s: %w", object, binnacleerrors.ErrNotFound)
}

// RefExists reports whether ref has been created.
func (m *MockClient) RefExists(_ context.Context, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("show-ref"); err != nil {
		return false, err
	}
	_, ok := m.refs[ref]
	return ok, nil
}

// RevParse resolves refs, short branch names, object ids and "<rev>^{tree}".
func (m *MockClient) RevParse(_ context.Context, rev string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("rev-parse"); err != nil {
		return "", err
	}
	base, peelTree := strings.CutSuffix(rev, "^{tree}")
	sha, ok := m.resolve(base)
	if !ok {
		return "", fmt.Errorf("%s: %w", rev, binnacleerrors.ErrNotFound)
	}
	if peelTree {
		c, isCommit := m.commits[sha]
		if !isCommit {
			if _, isTree := m.trees[sha]; isTree {
				return sha, nil
			}
			return "", fmt.Errorf("%s: %w", rev, binnacleerrors.ErrNotFound)
		}
		return c.tree, nil
	}
	return sha, nil
}

func (m *MockClient) resolve(rev string) (string, bool) {
	for _, candidate := range []string{rev, "refs/heads/" + rev, "refs/" + rev} {
		if sha, ok := m.refs[candidate]; ok {
			return sha, true
		}
	}
	if _, ok := m.commits[rev]; ok {
		return rev, true
	}
	if _, ok := m.trees[rev]; ok {
		return rev, true
	}
	if _, ok := m.blobs[rev]; ok {
		return rev, true
	}
	return "", false
}

// UpdateRef points ref at newValue, asserting oldValue when it is set.
// An all-zero oldValue asserts the ref does not exist.
func (m *MockClient) UpdateRef(_ context.Context, ref, newValue, oldValue string) error {
	if m.OnUpdateRef != nil {
		m.OnUpdateRef(ref)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("update-ref"); err != nil {
		return err
	}
	current, exists := m.refs[ref]
	mismatch := current != oldValue
	if IsZeroID(oldValue) {
		mismatch = exists
	}
	if oldValue != "" && mismatch {
		stderr := fmt.Sprintf("fatal: cannot lock ref '%s': is at %s but expected %s", ref, current, oldValue)
		return binnacleerrors.NewRefConflictError(ref, oldValue,
			binnacleerrors.NewGitCommandError("git", []string{"update-ref", ref, newValue, oldValue}, "", stderr, 128, nil))
	}
	m.refs[ref] = newValue
	return nil
}

// DropObject removes a blob from the object database, simulating a corrupt repository.
func (m *MockClient) DropObject(sha string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, sha)
}

// SetRef points ref at sha without any checks, simulating an external writer.
func (m *MockClient) SetRef(ref, sha string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs[ref] = sha
}

// NotesShow returns the note attached to object.
func (m *MockClient) NotesShow(_ context.Context, notesRef, object string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("notes show"); err != nil {
		return "", err
	}
	content, ok := m.notes[notesRef][object]
	if !ok {
		return "", fmt.Errorf("note for %s: %w", object, binnacleerrors.ErrNotFound)
	}
	return content, nil
}

// NotesAdd attaches content verbatim. Empty content removes the note, as git
// refuses to store an empty one.
func (m *MockClient) NotesAdd(_ context.Context, notesRef, object, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("notes add"); err != nil {
		return err
	}
	if m.notes[notesRef] == nil {
		m.notes[notesRef] = make(map[string]string)
	}
	if content == "" {
		delete(m.notes[notesRef], object)
	} else {
		m.notes[notesRef][object] = content
	}
	m.bumpNotesRef(notesRef)
	return nil
}

// NotesRemove deletes a note if present.
func (m *MockClient) NotesRemove(_ context.Context, notesRef, object string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("notes remove"); err != nil {
		return err
	}
	if _, ok := m.notes[notesRef][object]; ok {
		delete(m.notes[notesRef], object)
		m.bumpNotesRef(notesRef)
	}
	return nil
}

// bumpNotesRef advances the notes ref to a fresh synthetic commit. Caller holds mu.
func (m *MockClient) bumpNotesRef(notesRef string) {
	m.seq++
	var parents []string
	if prev, ok := m.refs[notesRef]; ok {
		parents = []string{prev}
	}
	payload := fmt.Sprintf("notes %s seq %d parents %v", notesRef, m.seq, parents)
	sha := plumbing.ComputeHash(plumbing.CommitObject, []byte(payload)).String()
	m.commits[sha] = mockCommit{parents: parents, message: "Notes added by 'git notes add'"}
	m.refs[notesRef] = sha
}
