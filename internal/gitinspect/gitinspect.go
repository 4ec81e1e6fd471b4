// Package gitinspect inspects a Git working tree and its history: file
// listing at HEAD, per-commit change enumeration, and textual diff
// extraction, using go-git rather than shelling out to the git binary.
package gitinspect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/codecompass/codecompass-go/internal/apperr"
)

// ChangeType classifies how a path differs between a commit and its first
// parent.
type ChangeType string

const (
	ChangeAdd        ChangeType = "add"
	ChangeModify     ChangeType = "modify"
	ChangeDelete     ChangeType = "delete"
	ChangeTypechange ChangeType = "typechange"
)

// ChangedFile is one path's change within a single commit, with an
// optional textual unified diff (present whenever the change type is
// add/modify/delete and the file is not binary).
type ChangedFile struct {
	Path       string
	OldPath    string
	ChangeType ChangeType
	OldOID     string
	NewOID     string
	Diff       string
}

// CommitDetail is one entry in a commit history listing.
type CommitDetail struct {
	OID           string
	Message       string
	AuthorName    string
	AuthorEmail   string
	CommitterName string
	Date          string
	Parents       []string
	ChangedFiles  []ChangedFile
}

// HistoryOptions bounds a commitHistory call.
type HistoryOptions struct {
	Since string // commit oid to stop before (exclusive), or "" for no bound
	Count int    // maximum commits to return, newest-first; 0 means unbounded
	Ref   string // branch/tag/ref name; "" means HEAD
}

// Inspector wraps a single opened repository.
type Inspector struct {
	path string
	repo *git.Repository
}

// Open opens path as a Git working tree. It fails if no resolvable HEAD
// exists under path/.git.
func Open(path string) (*Inspector, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, apperr.New(apperr.KindConfiguration, "GitInspector.Open", err)
	}
	if _, err := repo.Head(); err != nil {
		return nil, apperr.New(apperr.KindConfiguration, "GitInspector.Open",
			fmt.Errorf("repository at %s has no resolvable HEAD: %w", path, err))
	}
	return &Inspector{path: path, repo: repo}, nil
}

// ValidateRepository reports whether path is a Git working tree with a
// resolvable HEAD.
func ValidateRepository(path string) bool {
	_, err := Open(path)
	return err == nil
}

// ListFiles returns every blob path at HEAD.
func (i *Inspector) ListFiles() ([]string, error) {
	head, err := i.repo.Head()
	if err != nil {
		return nil, apperr.New(apperr.KindTransport, "GitInspector.ListFiles", err)
	}
	commit, err := i.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, apperr.New(apperr.KindTransport, "GitInspector.ListFiles", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, apperr.New(apperr.KindTransport, "GitInspector.ListFiles", err)
	}

	var paths []string
	err = tree.Files().ForEach(func(f *object.File) error {
		paths = append(paths, f.Name)
		return nil
	})
	if err != nil {
		return nil, apperr.New(apperr.KindTransport, "GitInspector.ListFiles", err)
	}

	sort.Strings(paths)
	return paths, nil
}

// CommitHistory returns up to opts.Count commits reachable from opts.Ref
// (or HEAD), newest-first, stopping before opts.Since if set.
func (i *Inspector) CommitHistory(opts HistoryOptions, diffContextLines int) ([]CommitDetail, error) {
	logOpts := &git.LogOptions{Order: git.LogOrderCommitterTime}

	if opts.Ref != "" {
		hash, err := i.resolveRef(opts.Ref)
		if err != nil {
			return nil, apperr.New(apperr.KindValidation, "GitInspector.CommitHistory", err)
		}
		logOpts.From = hash
	}

	commitIter, err := i.repo.Log(logOpts)
	if err != nil {
		return nil, apperr.New(apperr.KindTransport, "GitInspector.CommitHistory", err)
	}

	var details []CommitDetail
	err = commitIter.ForEach(func(c *object.Commit) error {
		if opts.Since != "" && c.Hash.String() == opts.Since {
			return storeErrStop
		}
		if opts.Count > 0 && len(details) >= opts.Count {
			return storeErrStop
		}

		changed, err := i.changedFiles(c, diffContextLines)
		if err != nil {
			return err
		}

		parents := make([]string, c.NumParents())
		for p := 0; p < c.NumParents(); p++ {
			ph, err := c.Parent(p)
			if err == nil {
				parents[p] = ph.Hash.String()
			}
		}

		details = append(details, CommitDetail{
			OID:           c.Hash.String(),
			Message:       strings.TrimSpace(c.Message),
			AuthorName:    c.Author.Name,
			AuthorEmail:   c.Author.Email,
			CommitterName: c.Committer.Name,
			Date:          c.Author.When.Format("2006-01-02T15:04:05Z07:00"),
			Parents:       parents,
			ChangedFiles:  changed,
		})

		return nil
	})
	if err != nil && err != storeErrStop {
		return nil, apperr.New(apperr.KindTransport, "GitInspector.CommitHistory", err)
	}

	return details, nil
}

var storeErrStop = fmt.Errorf("gitinspect: stop iteration")

// RepositoryDiff returns the textual diff between the two most recent
// commits reachable from HEAD, truncated to maxLength with a trailing
// marker if it would otherwise exceed it. Sentinel strings are returned
// verbatim for the no-repository, single-commit, and no-textual-change
// cases so callers can surface them directly to a user.
func RepositoryDiff(path string, maxLength int) string {
	inspector, err := Open(path)
	if err != nil {
		return "No Git repository found"
	}

	commits, err := inspector.CommitHistory(HistoryOptions{Count: 2}, 3)
	if err != nil || len(commits) == 0 {
		return "No Git repository found"
	}
	if len(commits) < 2 {
		return "No previous commits to compare"
	}

	var b strings.Builder
	for _, cf := range commits[0].ChangedFiles {
		if cf.Diff == "" {
			continue
		}
		fmt.Fprintf(&b, "--- %s\n+++ %s\n%s", changedFileOldName(cf), cf.Path, cf.Diff)
	}

	diff := b.String()
	if diff == "" {
		return "No textual changes found"
	}

	if maxLength > 0 && len(diff) > maxLength {
		diff = diff[:maxLength] + "\n... (truncated)"
	}
	return diff
}

func changedFileOldName(cf ChangedFile) string {
	if cf.ChangeType == ChangeAdd {
		return "/dev/null"
	}
	if cf.OldPath != "" {
		return cf.OldPath
	}
	return cf.Path
}

// changedFiles derives one ChangedFile per path that differs between c and
// its first parent (or, for an initial commit, every path in c's tree,
// each reported as add against empty content).
func (i *Inspector) changedFiles(c *object.Commit, contextLines int) ([]ChangedFile, error) {
	tree, err := c.Tree()
	if err != nil {
		return nil, err
	}

	if c.NumParents() == 0 {
		return initialCommitFiles(tree, contextLines)
	}

	parent, err := c.Parent(0)
	if err != nil {
		return nil, err
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return nil, err
	}

	changes, err := parentTree.Diff(tree)
	if err != nil {
		return nil, err
	}

	var out []ChangedFile
	for _, change := range changes {
		cf, err := toChangedFile(change, contextLines)
		if err != nil {
			continue
		}
		out = append(out, cf)
	}
	return out, nil
}

func initialCommitFiles(tree *object.Tree, contextLines int) ([]ChangedFile, error) {
	var out []ChangedFile
	err := tree.Files().ForEach(func(f *object.File) error {
		content, err := f.Contents()
		if err != nil {
			content = ""
		}
		diff := unifiedDiff(nil, splitLines(content), contextLines)
		out = append(out, ChangedFile{
			Path:       f.Name,
			ChangeType: ChangeAdd,
			NewOID:     f.Hash.String(),
			Diff:       diff,
		})
		return nil
	})
	return out, err
}

func toChangedFile(change *object.Change, contextLines int) (ChangedFile, error) {
	action, err := change.Action()
	if err != nil {
		return ChangedFile{}, err
	}

	from, to, err := change.Files()
	if err != nil {
		return ChangedFile{}, err
	}

	cf := ChangedFile{}
	switch {
	case from == nil && to != nil:
		cf.ChangeType = ChangeAdd
		cf.Path = to.Name
		cf.NewOID = to.Hash.String()
	case from != nil && to == nil:
		cf.ChangeType = ChangeDelete
		cf.Path = from.Name
		cf.OldOID = from.Hash.String()
	case from != nil && to != nil && from.Name != to.Name:
		cf.ChangeType = ChangeTypechange
		cf.Path = to.Name
		cf.OldPath = from.Name
		cf.OldOID = from.Hash.String()
		cf.NewOID = to.Hash.String()
	default:
		cf.ChangeType = ChangeModify
		cf.Path = to.Name
		cf.OldOID = from.Hash.String()
		cf.NewOID = to.Hash.String()
	}
	_ = action

	var oldLines, newLines []string
	if from != nil {
		if content, err := from.Contents(); err == nil {
			oldLines = splitLines(content)
		}
	}
	if to != nil {
		if content, err := to.Contents(); err == nil {
			newLines = splitLines(content)
		}
	}
	cf.Diff = unifiedDiff(oldLines, newLines, contextLines)

	return cf, nil
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// resolveRef resolves ref against, in order, a literal reference name, a
// refs/heads/<ref> branch name, and a refs/tags/<ref> tag name, falling
// back to treating ref as a raw commit hash understood by ResolveRevision.
func (i *Inspector) resolveRef(ref string) (plumbing.Hash, error) {
	candidates := []plumbing.ReferenceName{
		plumbing.ReferenceName(ref),
		plumbing.NewBranchReferenceName(ref),
		plumbing.NewTagReferenceName(ref),
	}
	for _, name := range candidates {
		if r, err := i.repo.Reference(name, true); err == nil {
			return r.Hash(), nil
		}
	}

	hash, err := i.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("gitinspect: unresolvable ref %q: %w", ref, err)
	}
	return *hash, nil
}

// unifiedDiff renders a unified-diff-style body (context/added/removed
// lines, contextLines of context around each change) between oldLines and
// newLines, built on the same diffmatchpatch engine go-git itself uses for
// patch generation, rather than hand-rolling an LCS implementation.
func unifiedDiff(oldLines, newLines []string, contextLines int) string {
	oldText := strings.Join(oldLines, "\n")
	newText := strings.Join(newLines, "\n")
	if oldText == newText {
		return ""
	}

	dmp := diffmatchpatch.New()
	oldChars, newChars, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(oldChars, newChars, false), lineArray)

	type diffLine struct {
		kind byte // ' ', '+', '-'
		text string
	}
	var lines []diffLine
	for _, d := range diffs {
		for _, ln := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				lines = append(lines, diffLine{' ', ln})
			case diffmatchpatch.DiffInsert:
				lines = append(lines, diffLine{'+', ln})
			case diffmatchpatch.DiffDelete:
				lines = append(lines, diffLine{'-', ln})
			}
		}
	}

	var b strings.Builder
	for idx := 0; idx < len(lines); idx++ {
		if lines[idx].kind == ' ' {
			continue
		}
		start := idx - contextLines
		if start < 0 {
			start = 0
		}
		for ; idx < len(lines) && lines[idx].kind != ' '; idx++ {
		}
		end := idx + contextLines
		if end > len(lines) {
			end = len(lines)
		}
		for j := start; j < end; j++ {
			b.WriteByte(lines[j].kind)
			b.WriteString(lines[j].text)
			b.WriteByte('\n')
		}
		idx = end - 1
	}

	return b.String()
}
