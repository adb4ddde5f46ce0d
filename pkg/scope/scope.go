// Package scope resolves the on-disk root for the three storage scopes
// (global, local, committed) given a working directory, per SPEC_FULL.md
// §4.4. Version-control detection is read-only: it walks the filesystem
// for .git metadata directly rather than shelling out to a git binary, so
// the resolver has no external process dependency.
package scope

import (
	"bufio"
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/llm-memory/engine/pkg/memerr"
	"github.com/llm-memory/engine/pkg/types"
)

// Info describes the resolved scope directories for a working directory.
type Info struct {
	RepoID             string
	Root               string // VCS top-level, or cwd if not in a VCS
	Branch             string // "" if not detected
	Remote             string // normalized origin remote, "" if none
	HasCommittedMemory bool
	GlobalDir          string
	LocalDir           string
	CommittedDir       string
}

// Dir returns the resolved directory for the given scope.
func (i Info) Dir(s types.Scope) string {
	switch s {
	case types.ScopeGlobal:
		return i.GlobalDir
	case types.ScopeLocal:
		return i.LocalDir
	case types.ScopeCommitted:
		return i.CommittedDir
	default:
		return ""
	}
}

// Resolve walks up from wd looking for VCS metadata, derives a stable
// repoId, and computes the three scope directories under homeDir (used for
// global/local) and the VCS root (used for committed).
func Resolve(wd, homeDir string) (Info, error) {
	root, branch, remote := detectVCS(wd)
	if root == "" {
		root = wd
	}

	normalizedRemote := normalizeRemote(remote)
	idSeed := normalizedRemote
	if idSeed == "" {
		idSeed = root
	}
	repoID := shortSHA1(idSeed)

	committedDir := filepath.Join(root, ".llm-memory")
	_, err := os.Stat(filepath.Join(committedDir, "catalog.json"))
	hasCommitted := err == nil

	return Info{
		RepoID:             repoID,
		Root:               root,
		Branch:             branch,
		Remote:             normalizedRemote,
		HasCommittedMemory: hasCommitted,
		GlobalDir:          filepath.Join(homeDir, ".llm-memory", "global"),
		LocalDir:           filepath.Join(homeDir, ".llm-memory", "projects", repoID),
		CommittedDir:       committedDir,
	}, nil
}

func shortSHA1(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

// normalizeRemote strips a trailing ".git", rewrites the SSH
// "user@host:path" form to "https://host/path", strips a trailing slash,
// and lowercases the result, so equivalent remotes hash to the same id.
func normalizeRemote(remote string) string {
	if remote == "" {
		return ""
	}
	r := strings.TrimSpace(remote)
	r = strings.TrimSuffix(r, ".git")
	if !strings.Contains(r, "://") {
		if at := strings.Index(r, "@"); at >= 0 {
			if colon := strings.Index(r[at:], ":"); colon >= 0 {
				host := r[at+1 : at+colon]
				path := r[at+colon+1:]
				r = "https://" + host + "/" + strings.TrimPrefix(path, "/")
			}
		}
	}
	r = strings.TrimSuffix(r, "/")
	return strings.ToLower(r)
}

// detectVCS walks upward from start looking for a .git entry. It returns
// the directory containing .git as root, the current branch name (from
// HEAD, if it points at a branch ref), and the origin remote URL (from
// config, if present). Any of these may be empty if not found.
func detectVCS(start string) (root, branch, remote string) {
	dir := start
	for {
		gitPath := filepath.Join(dir, ".git")
		info, err := os.Stat(gitPath)
		if err == nil {
			gitDir := gitPath
			if !info.IsDir() {
				// Worktree or submodule: .git is a file containing "gitdir: <path>".
				if resolved, ok := readGitdirFile(gitPath); ok {
					gitDir = resolved
				}
			}
			branch = readHEAD(gitDir)
			remote = readOriginRemote(gitDir)
			return dir, branch, remote
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", "", ""
		}
		dir = parent
	}
}

func readGitdirFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	line := strings.TrimSpace(string(data))
	const prefix = "gitdir:"
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
}

func readHEAD(gitDir string) string {
	data, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return ""
	}
	line := strings.TrimSpace(string(data))
	const prefix = "ref: refs/heads/"
	if strings.HasPrefix(line, prefix) {
		return strings.TrimPrefix(line, prefix)
	}
	return ""
}

func readOriginRemote(gitDir string) string {
	f, err := os.Open(filepath.Join(gitDir, "config"))
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	inOrigin := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[") {
			inOrigin = line == `[remote "origin"]`
			continue
		}
		if inOrigin && strings.HasPrefix(line, "url") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				return strings.TrimSpace(parts[1])
			}
		}
	}
	return ""
}

const ignoreContents = `tmp/
locks/
`

// InitCommittedMemory ensures the committed scope directory exists under
// root and writes a minimal ignore file that excludes the process-local
// tmp/ and locks/ subdirectories while keeping everything meant to be
// version-controlled (journal.ndjson, catalog.json, items/, index/,
// config.json).
func InitCommittedMemory(root string) error {
	dir := filepath.Join(root, ".llm-memory")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return memerr.Wrap(memerr.IO, err, "create committed memory dir %s", dir)
	}
	ignorePath := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(ignorePath); err == nil {
		return nil
	}
	if err := os.WriteFile(ignorePath, []byte(ignoreContents), 0o644); err != nil {
		return memerr.Wrap(memerr.IO, err, "write ignore file %s", ignorePath)
	}
	return nil
}
