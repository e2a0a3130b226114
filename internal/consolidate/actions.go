package consolidate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dshills/learnings-mcp/internal/workspace"
	"github.com/dshills/learnings-mcp/pkg/types"
)

// Action names a consolidation action
type Action string

const (
	ActionGet     Action = "get"
	ActionDelete  Action = "delete"
	ActionArchive Action = "archive"
	ActionRescope Action = "rescope"
	ActionMerge   Action = "merge"
)

// Action statuses
const (
	StatusSuccess = "success"
	StatusDryRun  = "dry_run"
)

const dateLayout = "2006-01-02"

var (
	ErrInvalidAction    = errors.New("action must be one of get, delete, archive, rescope, merge")
	ErrNoIDs            = errors.New("at least one id is required")
	ErrNotFound         = errors.New("no learnings found for the given ids")
	ErrAlreadyScoped    = errors.New("learning already has the requested scope")
	ErrUnsupportedScope = errors.New("learnings can only be rescoped to global")
	ErrMergeTooFew      = errors.New("need at least 2 learnings to merge")
	ErrInvalidName      = errors.New("merge name must be a non-empty file name")
)

// ParseAction validates an action name
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionGet, ActionDelete, ActionArchive, ActionRescope, ActionMerge:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

// ActionStore is the part of storage the actions read and modify
type ActionStore interface {
	GetByIDs(ctx context.Context, ids []string) ([]*types.Learning, error)
	Delete(ctx context.Context, id string) error
}

// FileIndexer indexes a single learning file
type FileIndexer interface {
	IndexFile(ctx context.Context, path string) (*types.Learning, error)
}

// ActionRequest selects an action and its arguments. Scope applies to
// rescope; Name, OutputDir and DryRun apply to merge.
type ActionRequest struct {
	Action    Action
	IDs       []string
	Scope     types.Scope
	Name      string
	OutputDir string
	DryRun    bool
}

// Move records a learning file that was copied or moved
type Move struct {
	ID   string `json:"id"`
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
	Note string `json:"note,omitempty"`
}

// Rescoped describes a learning moved to another scope
type Rescoped struct {
	OldID   string      `json:"old_id"`
	NewID   string      `json:"new_id"`
	OldPath string      `json:"old_path,omitempty"`
	NewPath string      `json:"new_path"`
	Scope   types.Scope `json:"scope"`
}

// Merged describes the learning written by a merge. On a dry run ID is empty
// and nothing has been written.
type Merged struct {
	ID          string      `json:"id,omitempty"`
	Path        string      `json:"path"`
	Scope       types.Scope `json:"scope"`
	Repo        string      `json:"repo,omitempty"`
	SourceCount int         `json:"source_count"`
	Sources     []string    `json:"sources"`
}

// ActionResult is the outcome of one action
type ActionResult struct {
	Status    string            `json:"status"`
	Action    Action            `json:"action"`
	Documents []*types.Learning `json:"documents,omitempty"`
	Deleted   []string          `json:"deleted,omitempty"`
	BackedUp  []Move            `json:"backed_up,omitempty"`
	Archived  []Move            `json:"archived,omitempty"`
	Rescoped  *Rescoped         `json:"rescoped,omitempty"`
	Merged    *Merged           `json:"merged,omitempty"`
}

// Actor carries out consolidation actions. Files removed from the learning
// directories are first copied into a dated folder under the archive dir.
type Actor struct {
	store      ActionStore
	index      FileIndexer
	globalDir  string
	archiveDir string
	now        func() time.Time
}

// NewActor creates an Actor
func NewActor(store ActionStore, index FileIndexer, globalDir, archiveDir string) *Actor {
	return &Actor{
		store:      store,
		index:      index,
		globalDir:  globalDir,
		archiveDir: archiveDir,
		now:        time.Now,
	}
}

// Do dispatches req to the matching action
func (a *Actor) Do(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	ids := cleanIDs(req.IDs)
	if len(ids) == 0 {
		return nil, ErrNoIDs
	}

	switch req.Action {
	case ActionGet:
		return a.Get(ctx, ids)
	case ActionDelete:
		return a.Delete(ctx, ids)
	case ActionArchive:
		return a.Archive(ctx, ids)
	case ActionRescope:
		scope := req.Scope
		if scope == "" {
			scope = types.ScopeGlobal
		}
		return a.Rescope(ctx, ids[0], scope)
	case ActionMerge:
		return a.Merge(ctx, ids, req.Name, req.OutputDir, req.DryRun)
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidAction, req.Action)
}

// Get returns the full learnings for ids
func (a *Actor) Get(ctx context.Context, ids []string) (*ActionResult, error) {
	learnings, err := a.lookup(ctx, ids)
	if err != nil {
		return nil, err
	}
	return &ActionResult{Status: StatusSuccess, Action: ActionGet, Documents: learnings}, nil
}

// Delete backs up and removes the files of ids, then drops them from the store
func (a *Actor) Delete(ctx context.Context, ids []string) (*ActionResult, error) {
	learnings, err := a.lookup(ctx, ids)
	if err != nil {
		return nil, err
	}

	res := &ActionResult{Status: StatusSuccess, Action: ActionDelete}
	for _, l := range learnings {
		backup, err := a.removeWithBackup(l.Metadata.FilePath)
		if err != nil {
			return res, fmt.Errorf("failed to delete %s: %w", l.ID, err)
		}
		if backup != "" {
			res.BackedUp = append(res.BackedUp, Move{ID: l.ID, From: l.Metadata.FilePath, To: backup})
		}
		if err := a.store.Delete(ctx, l.ID); err != nil {
			return res, err
		}
		res.Deleted = append(res.Deleted, l.ID)
	}

	log.Info().Strs("ids", res.Deleted).Int("backed_up", len(res.BackedUp)).Msg("deleted learnings")
	return res, nil
}

// Archive moves the files of ids into the dated archive folder and drops them
// from the store. Learnings whose file is already gone are only dropped.
func (a *Actor) Archive(ctx context.Context, ids []string) (*ActionResult, error) {
	learnings, err := a.lookup(ctx, ids)
	if err != nil {
		return nil, err
	}

	res := &ActionResult{Status: StatusSuccess, Action: ActionArchive}
	for _, l := range learnings {
		move := Move{ID: l.ID, From: l.Metadata.FilePath}
		if exists(l.Metadata.FilePath) {
			dir, err := a.datedArchiveDir()
			if err != nil {
				return res, err
			}
			stem, ext := splitName(filepath.Base(l.Metadata.FilePath))
			dest := uniquePath(dir, stem, ext, "_")
			if err := moveFile(l.Metadata.FilePath, dest); err != nil {
				return res, fmt.Errorf("failed to archive %s: %w", l.ID, err)
			}
			move.To = dest
		} else {
			move.Note = "file not found, removed from the index only"
		}
		if err := a.store.Delete(ctx, l.ID); err != nil {
			return res, err
		}
		res.Archived = append(res.Archived, move)
	}

	log.Info().Int("archived", len(res.Archived)).Msg("archived learnings")
	return res, nil
}

// Rescope moves a repository learning into the global directory and indexes
// it under its new path
func (a *Actor) Rescope(ctx context.Context, id string, scope types.Scope) (*ActionResult, error) {
	if scope != types.ScopeGlobal {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScope, scope)
	}
	learnings, err := a.lookup(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	l := learnings[0]
	if l.Metadata.Scope == scope {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyScoped, scope)
	}

	name := fmt.Sprintf("learning-%s.md", shortID(l.ID))
	if l.Metadata.FilePath != "" {
		name = filepath.Base(l.Metadata.FilePath)
	}
	if err := os.MkdirAll(a.globalDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create global directory: %w", err)
	}
	stem, ext := splitName(name)
	dest := uniquePath(a.globalDir, stem, ext, "_")

	res := &ActionResult{Status: StatusSuccess, Action: ActionRescope}
	if exists(l.Metadata.FilePath) {
		backup, err := a.backup(l.Metadata.FilePath)
		if err != nil {
			return nil, err
		}
		res.BackedUp = append(res.BackedUp, Move{ID: l.ID, From: l.Metadata.FilePath, To: backup})
		if err := moveFile(l.Metadata.FilePath, dest); err != nil {
			return nil, fmt.Errorf("failed to move %s: %w", l.ID, err)
		}
	} else if err := os.WriteFile(dest, []byte(l.Content), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", dest, err)
	}

	if err := a.store.Delete(ctx, l.ID); err != nil {
		return res, err
	}
	indexed, err := a.index.IndexFile(ctx, dest)
	if err != nil {
		return res, fmt.Errorf("failed to index %s: %w", dest, err)
	}

	res.Rescoped = &Rescoped{
		OldID:   l.ID,
		NewID:   indexed.ID,
		OldPath: l.Metadata.FilePath,
		NewPath: indexed.Metadata.FilePath,
		Scope:   indexed.Metadata.Scope,
	}
	log.Info().Str("old_id", l.ID).Str("new_id", indexed.ID).Str("path", dest).Msg("rescoped learning")
	return res, nil
}

// Merge writes one learning combining ids, then backs up and removes the
// sources. The merged file goes to outputDir when set, else to the global
// directory if any source is global, else next to the first source.
func (a *Actor) Merge(ctx context.Context, ids []string, name, outputDir string, dryRun bool) (*ActionResult, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	learnings, err := a.lookup(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(learnings) < 2 {
		return nil, ErrMergeTooFew
	}

	dir := outputDir
	if dir == "" {
		dir = a.mergeDir(learnings)
	}
	date := a.now().Format(dateLayout)
	path := uniquePath(dir, name+"-"+date, ".md", "-")
	scope, repo := workspace.RepoFromPath(path, a.globalDir)

	merged := &Merged{
		Path:        path,
		Scope:       scope,
		Repo:        repo,
		SourceCount: len(learnings),
		Sources:     make([]string, 0, len(learnings)),
	}
	for _, l := range learnings {
		merged.Sources = append(merged.Sources, l.Metadata.FilePath)
	}
	if dryRun {
		return &ActionResult{Status: StatusDryRun, Action: ActionMerge, Merged: merged}, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := os.WriteFile(path, []byte(mergedContent(name, date, learnings)), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write merged learning: %w", err)
	}

	res := &ActionResult{Status: StatusSuccess, Action: ActionMerge, Merged: merged}
	for _, l := range learnings {
		backup, err := a.removeWithBackup(l.Metadata.FilePath)
		if err != nil {
			return res, fmt.Errorf("failed to remove source %s: %w", l.ID, err)
		}
		if backup != "" {
			res.BackedUp = append(res.BackedUp, Move{ID: l.ID, From: l.Metadata.FilePath, To: backup})
		}
		if err := a.store.Delete(ctx, l.ID); err != nil {
			return res, err
		}
		res.Deleted = append(res.Deleted, l.ID)
	}

	indexed, err := a.index.IndexFile(ctx, path)
	if err != nil {
		return res, fmt.Errorf("failed to index merged learning: %w", err)
	}
	merged.ID = indexed.ID
	merged.Path = indexed.Metadata.FilePath
	merged.Scope = indexed.Metadata.Scope
	merged.Repo = indexed.Metadata.Repo

	log.Info().Str("id", merged.ID).Str("path", merged.Path).Int("sources", merged.SourceCount).Msg("merged learnings")
	return res, nil
}

// lookup loads ids with content, failing when none exist
func (a *Actor) lookup(ctx context.Context, ids []string) ([]*types.Learning, error) {
	learnings, err := a.store.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(learnings) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, strings.Join(ids, ", "))
	}
	return learnings, nil
}

func (a *Actor) mergeDir(learnings []*types.Learning) string {
	for _, l := range learnings {
		if l.Metadata.Scope == types.ScopeGlobal {
			return a.globalDir
		}
	}
	if first := learnings[0].Metadata.FilePath; first != "" {
		return filepath.Dir(first)
	}
	return a.globalDir
}

func (a *Actor) datedArchiveDir() (string, error) {
	dir := filepath.Join(a.archiveDir, a.now().Format(dateLayout))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	return dir, nil
}

// backup copies path into the dated archive folder and returns the copy's path
func (a *Actor) backup(path string) (string, error) {
	dir, err := a.datedArchiveDir()
	if err != nil {
		return "", err
	}
	stem, ext := splitName(filepath.Base(path))
	dest := uniquePath(dir, stem, ext, "_")
	if err := copyFile(path, dest); err != nil {
		return "", fmt.Errorf("failed to back up %s: %w", path, err)
	}
	return dest, nil
}

// removeWithBackup backs up and removes path. A missing file is not an error
// and yields an empty backup path.
func (a *Actor) removeWithBackup(path string) (string, error) {
	if !exists(path) {
		return "", nil
	}
	backup, err := a.backup(path)
	if err != nil {
		return "", err
	}
	if err := os.Remove(path); err != nil {
		return backup, err
	}
	return backup, nil
}

// mergedContent renders the merged learning. Topic and tags are carried over
// from the sources so the merged file indexes the same way.
func mergedContent(name, date string, learnings []*types.Learning) string {
	topic := ""
	tagSet := make(map[string]struct{})
	for _, l := range learnings {
		if topic == "" && l.Metadata.Topic != "" && l.Metadata.Topic != types.DefaultTopic {
			topic = l.Metadata.Topic
		}
		for _, kw := range l.Metadata.Keywords {
			tagSet[kw] = struct{}{}
		}
	}
	if topic == "" {
		topic = strings.SplitN(name, "-", 2)[0]
	}
	tags := make([]string, 0, len(tagSet))
	for kw := range tagSet {
		tags = append(tags, kw)
	}
	sort.Strings(tags)
	if len(tags) > types.MaxKeywords {
		tags = tags[:types.MaxKeywords]
	}
	if len(tags) == 0 {
		tags = strings.Split(name, "-")
	}

	var b strings.Builder
	title := cases.Title(language.English).String(strings.ReplaceAll(name, "-", " "))
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "**Topic:** %s\n", topic)
	fmt.Fprintf(&b, "**Tags:** %s\n\n", strings.Join(tags, ", "))
	fmt.Fprintf(&b, "*Merged from %d learnings on %s*\n\n---\n\n", len(learnings), date)
	for i, l := range learnings {
		source := fmt.Sprintf("Learning %d", i+1)
		if l.Metadata.FilePath != "" {
			source = filepath.Base(l.Metadata.FilePath)
		}
		fmt.Fprintf(&b, "## Source: %s\n\n%s\n\n---\n\n", source, strings.TrimSpace(l.Content))
	}
	return b.String()
}

func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func splitName(name string) (string, string) {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

// uniquePath returns dir/stem+ext, or the first dir/stem<sep>N+ext that does
// not exist yet
func uniquePath(dir, stem, ext, sep string) string {
	path := filepath.Join(dir, stem+ext)
	for n := 1; exists(path); n++ {
		path = filepath.Join(dir, fmt.Sprintf("%s%s%d%s", stem, sep, n, ext))
	}
	return path
}

// moveFile renames src to dst, copying across filesystems
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// copyFile copies src to dst, keeping its mode and modification time
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
