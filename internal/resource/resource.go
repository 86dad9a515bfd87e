// Package resource implements the resource (asset blob) registry of
// spec §3/§4.5: a flat URL -> Resource map, lazily populated, guarded by
// its own mutex per spec §5 ("The resource registry has its own mutex").
// Path resolution follows fs/content.go's base-dir-plus-relative-path
// FQN idiom.
package resource

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/werrors"
)

type State int

const (
	Absent State = iota
	Transferring
	Present
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Transferring:
		return "transferring"
	case Present:
		return "present"
	default:
		return "unknown"
	}
}

// Resource mirrors spec §3's Resource entity. DBKey is the byte offset
// this record was last written at in the persistent store (spec §4.1);
// InvalidDBKey until the first flush.
type Resource struct {
	URL       string
	LocalPath string // relative to Registry.baseDir
	OwnerID   idgen.UserID
	State     State
	FileSize  int64
	External  bool // spec §3(d): absolute paths only permitted when external

	DBKey   int64
	Dirty   bool
	mu      sync.Mutex // guards State/FileSize transitions for this one entry
}

const InvalidDBKey = int64(-1)

// Registry is the flat URL -> Resource map of spec §3, with its own
// mutex independent of the world-state container's, per spec §5.
type Registry struct {
	baseDir string
	mu      sync.RWMutex
	byURL   map[string]*Resource
}

func NewRegistry(baseDir string) *Registry {
	return &Registry{baseDir: baseDir, byURL: make(map[string]*Resource)}
}

func (r *Registry) BaseDir() string { return r.baseDir }

// AbsPath returns the file's absolute path, or an error if its local
// path is absolute on a non-external resource or would escape the base
// directory (spec §3(d): "paths are relative -- absolute paths are
// rejected unless the resource is marked external"). It does not look
// at the resource's state.
func (r *Registry) AbsPath(res *Resource) (string, error) {
	if res.External {
		return res.LocalPath, nil
	}
	if filepath.IsAbs(res.LocalPath) {
		return "", werrors.Validation("resource %q has an absolute local_path but is not external", res.URL)
	}
	clean := filepath.Clean(res.LocalPath)
	if strings.HasPrefix(clean, "..") {
		return "", werrors.Validation("resource %q local_path escapes base dir", res.URL)
	}
	return filepath.Join(r.baseDir, clean), nil
}

// Get returns the resource for url, or (nil, false) if never referenced.
func (r *Registry) Get(url string) (*Resource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.byURL[url]
	return res, ok
}

// GetOrCreate returns the existing entry for url, or lazily creates one
// in state Absent, per spec §3: "the resource entry is created lazily
// the first time an upload or reference is seen."
func (r *Registry) GetOrCreate(url string) *Resource {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.byURL[url]; ok {
		return res
	}
	res := &Resource{URL: url, State: Absent, DBKey: InvalidDBKey}
	r.byURL[url] = res
	return res
}

// BeginTransfer moves a resource to Transferring, assigning its on-disk
// relative path ahead of the upload completing. Fails if the resource is
// already Present or mid-transfer, matching the "at most one open upload"
// flow control of spec §5 at the per-resource granularity.
func (r *Registry) BeginTransfer(url, localPath string, owner idgen.UserID) (*Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.byURL[url]
	if !ok {
		res = &Resource{URL: url, DBKey: InvalidDBKey}
		r.byURL[url] = res
	}
	res.mu.Lock()
	defer res.mu.Unlock()
	if res.State == Transferring {
		return nil, werrors.Validation("resource %q already has a transfer in progress", url)
	}
	if res.State == Present {
		return nil, werrors.Validation("resource %q already present", url)
	}
	res.State = Transferring
	res.LocalPath = localPath
	res.OwnerID = owner
	res.Dirty = true
	return res, nil
}

// CompleteTransfer flips a resource to Present once its bytes are on
// disk at the canonical path, per spec §4.3 ResourceUploadBegin effect.
func (r *Registry) CompleteTransfer(res *Resource, fileSize int64) {
	res.mu.Lock()
	defer res.mu.Unlock()
	res.State = Present
	res.FileSize = fileSize
	res.Dirty = true
}

// CancelTransfer reverts a resource to Absent, discarding any partial
// file, per spec §4.3's cancellation rule: "discard partial file, do not
// mark the resource Present."
func (r *Registry) CancelTransfer(res *Resource) {
	res.mu.Lock()
	defer res.mu.Unlock()
	res.State = Absent
	res.Dirty = true
}

// MarkAbsent transitions Present -> Absent. Per spec §3(c) this is
// permitted only by an admin path; callers are responsible for the
// permission check.
func (r *Registry) MarkAbsent(res *Resource) {
	res.mu.Lock()
	defer res.mu.Unlock()
	res.State = Absent
	res.Dirty = true
}

// TempPath returns the scratch path a streaming upload should write to
// before being renamed into place, mirroring fs/vmd.go's persist-then-
// rename discipline one level up (whole files, not meta records).
func (r *Registry) TempPath(tmpSubdir, tieBreaker string) string {
	return filepath.Join(r.baseDir, tmpSubdir, fmt.Sprintf("upload-%s", tieBreaker))
}

// Snapshot returns every registered resource, whatever its state, for
// diagnostics/admin listing.
func (r *Registry) Snapshot() []*Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Resource, 0, len(r.byURL))
	for _, res := range r.byURL {
		out = append(out, res)
	}
	return out
}
