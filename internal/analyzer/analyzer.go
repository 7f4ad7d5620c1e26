// Package analyzer implements the Project Analyzer: main-source
// selection, supporting-file categorization, and declared
// package/class/graphics parsing over an extracted LaTeX project tree.
package analyzer

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/iago/latex-orchestrator/internal/domain"
)

// ErrNoMainSource is returned when no .tex file can be found anywhere
// under the project root.
var ErrNoMainSource = errors.New("analyzer: no main .tex source found")

var mainCandidates = []string{"main.tex", "document.tex", "finalmanuscript.tex"}

var (
	documentClassPattern = regexp.MustCompile(`\\documentclass(?:\[[^\]]*\])?\{([^}]+)\}`)
	usePackagePattern    = regexp.MustCompile(`\\usepackage(?:\[[^\]]*\])?\{([^}]+)\}`)
	graphicsPattern      = regexp.MustCompile(`\\includegraphics(?:\[[^\]]*\])?\{([^}]+)\}`)
	inputPattern         = regexp.MustCompile(`\\(?:input|include)\{([^}]+)\}`)
	lineCommentPattern   = regexp.MustCompile(`(^|[^\\])%.*$`)
)

// Analyzer builds a ProjectStructure from an extracted project directory.
// Regexes above are package-level (compiled once for the whole process,
// not per call), matching the discipline spec §4.9 requires of the
// post-processor and which the teacher's policy package also follows.
type Analyzer struct {
	MaxDepth int
}

func New() *Analyzer {
	return &Analyzer{MaxDepth: 0}
}

type fileInfo struct {
	relPath string
	depth   int
	size    int64
}

// Analyze walks root (a BFS, cycle-safe walk honoring MaxDepth when > 0)
// and builds the ProjectStructure.
func (a *Analyzer) Analyze(root string) (*domain.ProjectStructure, error) {
	files, err := a.walk(root)
	if err != nil {
		return nil, err
	}

	texFiles := make([]fileInfo, 0)
	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f.relPath), ".tex") {
			texFiles = append(texFiles, f)
		}
	}
	if len(texFiles) == 0 {
		return nil, ErrNoMainSource
	}

	main := selectMainFile(texFiles)

	structure := &domain.ProjectStructure{
		MainSourcePath:  main.relPath,
		SupportingFiles: categorize(files),
	}

	var referencedGraphics, referencedIncludes []string
	content, err := os.ReadFile(filepath.Join(root, main.relPath))
	if err == nil {
		text := stripComments(string(content))
		if m := documentClassPattern.FindStringSubmatch(text); m != nil {
			structure.DocumentClass = strings.TrimSpace(m[1])
		}
		structure.Packages = dedupeCommaLists(usePackagePattern.FindAllStringSubmatch(text, -1))
		referencedGraphics, referencedIncludes = referencedAssets(text, filepath.Dir(main.relPath), files)
	}

	structure.ClassFiles = structure.SupportingFiles["class"]
	structure.BibFiles = structure.SupportingFiles["bibliography"]
	structure.GraphicsFiles = mergeUnique(structure.SupportingFiles["graphics"], referencedGraphics)
	structure.SearchDirs = append(searchDirs(root, files, main), includeDirs(referencedIncludes)...)

	return structure, nil
}

// referencedAssets implements spec §4.4 item 4: \includegraphics,
// \input and \include targets parsed out of the main source, resolved
// against the discovered file set (LaTeX allows the extension to be
// omitted on both commands, so each bare name is tried against the
// categories it is allowed to resolve to before being dropped).
func referencedAssets(text, mainDir string, files []fileInfo) (graphics, includes []string) {
	known := make(map[string]bool, len(files))
	for _, f := range files {
		known[filepath.ToSlash(f.relPath)] = true
	}

	for _, m := range graphicsPattern.FindAllStringSubmatch(text, -1) {
		if resolved, ok := resolveAsset(m[1], mainDir, known, graphicsExtensions); ok {
			graphics = append(graphics, resolved)
		}
	}
	for _, m := range inputPattern.FindAllStringSubmatch(text, -1) {
		if resolved, ok := resolveAsset(m[1], mainDir, known, []string{".tex"}); ok {
			includes = append(includes, resolved)
		}
	}
	return graphics, includes
}

var graphicsExtensions = []string{".pdf", ".png", ".jpg", ".jpeg", ".eps", ".ps", ".svg"}

// resolveAsset tries name as given, then with each candidate extension
// appended when name has none, against both the main file's directory
// and the project root.
func resolveAsset(name, mainDir string, known map[string]bool, exts []string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}

	candidates := []string{name}
	if filepath.Ext(name) == "" {
		for _, ext := range exts {
			candidates = append(candidates, name+ext)
		}
	}

	for _, c := range candidates {
		c = filepath.ToSlash(c)
		if mainDir != "." && mainDir != "" {
			joined := filepath.ToSlash(filepath.Join(mainDir, c))
			if known[joined] {
				return joined, true
			}
		}
		if known[c] {
			return c, true
		}
	}
	return "", false
}

// includeDirs returns the distinct parent directories of resolved
// \input/\include targets, so the converter's search path covers files
// reached only through an include rather than directory classification.
func includeDirs(includes []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, inc := range includes {
		dir := filepath.Dir(filepath.FromSlash(inc))
		if dir == "." || seen[dir] {
			continue
		}
		seen[dir] = true
		out = append(out, dir)
	}
	return out
}

func mergeUnique(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, v := range a {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range b {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// selectMainFile implements spec §4.4: first match among the fixed
// candidate list (case-insensitive basename), else the largest .tex
// file at the shallowest depth, ties broken lexicographically by
// relative path.
func selectMainFile(texFiles []fileInfo) fileInfo {
	for _, candidate := range mainCandidates {
		for _, f := range texFiles {
			if strings.EqualFold(filepath.Base(f.relPath), candidate) {
				return f
			}
		}
	}

	sort.Slice(texFiles, func(i, j int) bool {
		if texFiles[i].depth != texFiles[j].depth {
			return texFiles[i].depth < texFiles[j].depth
		}
		if texFiles[i].size != texFiles[j].size {
			return texFiles[i].size > texFiles[j].size
		}
		return texFiles[i].relPath < texFiles[j].relPath
	})
	return texFiles[0]
}

func categorize(files []fileInfo) map[string][]string {
	categories := map[string][]string{
		"source":       {},
		"class":        {},
		"style":        {},
		"bibliography": {},
		"bib-style":    {},
		"graphics":     {},
		"other":        {},
	}
	graphicsExt := map[string]bool{".pdf": true, ".png": true, ".jpg": true, ".jpeg": true, ".eps": true, ".ps": true, ".svg": true}

	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f.relPath))
		switch ext {
		case ".tex":
			categories["source"] = append(categories["source"], f.relPath)
		case ".cls":
			categories["class"] = append(categories["class"], f.relPath)
		case ".sty":
			categories["style"] = append(categories["style"], f.relPath)
		case ".bib":
			categories["bibliography"] = append(categories["bibliography"], f.relPath)
		case ".bst":
			categories["bib-style"] = append(categories["bib-style"], f.relPath)
		default:
			if graphicsExt[ext] {
				categories["graphics"] = append(categories["graphics"], f.relPath)
			} else {
				categories["other"] = append(categories["other"], f.relPath)
			}
		}
	}
	return categories
}

// walk performs a BFS traversal from root, following directories only
// (symlinks are resolved once and never revisited, guarding against
// cycles) and honoring MaxDepth when set.
func (a *Analyzer) walk(root string) ([]fileInfo, error) {
	type queueItem struct {
		dir   string
		rel   string
		depth int
	}
	visited := map[string]bool{}
	queue := []queueItem{{dir: root, rel: "", depth: 0}}
	results := make([]fileInfo, 0)

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		real, err := filepath.EvalSymlinks(item.dir)
		if err != nil {
			continue
		}
		if visited[real] {
			continue
		}
		visited[real] = true

		entries, err := os.ReadDir(item.dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			relPath := entry.Name()
			if item.rel != "" {
				relPath = filepath.Join(item.rel, entry.Name())
			}
			full := filepath.Join(item.dir, entry.Name())

			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.Mode()&fs.ModeSymlink != 0 {
				target, err := filepath.EvalSymlinks(full)
				if err != nil {
					continue
				}
				targetInfo, err := os.Stat(target)
				if err != nil {
					continue
				}
				if targetInfo.IsDir() {
					if a.MaxDepth > 0 && item.depth+1 > a.MaxDepth {
						continue
					}
					queue = append(queue, queueItem{dir: target, rel: relPath, depth: item.depth + 1})
					continue
				}
				results = append(results, fileInfo{relPath: relPath, depth: item.depth, size: targetInfo.Size()})
				continue
			}

			if entry.IsDir() {
				if a.MaxDepth > 0 && item.depth+1 > a.MaxDepth {
					continue
				}
				queue = append(queue, queueItem{dir: full, rel: relPath, depth: item.depth + 1})
				continue
			}
			results = append(results, fileInfo{relPath: relPath, depth: item.depth, size: info.Size()})
		}
	}
	return results, nil
}

// searchDirs computes the converter search path: the project root, plus
// the directory of each discovered .tex/.sty/.cls file and up to four of
// its ancestors. Directories that hold only other kinds of files are not
// added.
func searchDirs(root string, files []fileInfo, main fileInfo) []string {
	seen := map[string]bool{}
	dirs := []string{root}
	seen[root] = true

	addUp := func(relDir string) {
		parts := strings.Split(relDir, string(filepath.Separator))
		for i := len(parts); i > 0 && len(parts)-i < 5; i-- {
			candidate := filepath.Join(root, filepath.Join(parts[:i]...))
			if !seen[candidate] {
				seen[candidate] = true
				dirs = append(dirs, candidate)
			}
		}
	}

	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f.relPath), ".tex") || strings.EqualFold(filepath.Ext(f.relPath), ".sty") || strings.EqualFold(filepath.Ext(f.relPath), ".cls") {
			dir := filepath.Dir(f.relPath)
			if dir != "." {
				addUp(dir)
			}
		}
	}
	return dirs
}

func stripComments(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = lineCommentPattern.ReplaceAllString(line, "$1")
	}
	return strings.Join(lines, "\n")
}

func dedupeCommaLists(matches [][]string) []string {
	seen := map[string]bool{}
	out := make([]string, 0)
	for _, m := range matches {
		for _, part := range strings.Split(m[1], ",") {
			name := strings.TrimSpace(part)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
