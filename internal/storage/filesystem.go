package storage

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

type FileEntry struct {
	Name     string       `json:"name"`
	Path     string       `json:"path"`
	IsDir    bool         `json:"is_dir"`
	Size     int64        `json:"size,omitempty"`
	Children []*FileEntry `json:"children,omitempty"`
}

var subtitleExtensions = map[string]bool{
	".srt": true, ".vtt": true, ".ass": true, ".ssa": true, ".ttml": true, ".stl": true,
}

// langSuffixRe matches a trailing language marker such as ".en", ".eng" or ".en-US".
var langSuffixRe = regexp.MustCompile(`\.([a-zA-Z]{2,3}(-[a-zA-Z]{2})?)$`)

func IsSubtitleFile(name string) bool {
	return subtitleExtensions[strings.ToLower(filepath.Ext(name))]
}

// TranslatedPath derives the output path for a translation of input:
// "show.en.srt" with target "pt-BR" becomes "show.pt-BR.srt".
func TranslatedPath(input, targetLang string) string {
	ext := filepath.Ext(input)
	base := strings.TrimSuffix(input, ext)
	if loc := langSuffixRe.FindStringIndex(filepath.Base(base)); loc != nil {
		base = base[:len(base)-(loc[1]-loc[0])]
	}
	return base + "." + targetLang + ext
}

// SafeJoin joins relativePath onto basePath and rejects results that escape it.
func SafeJoin(basePath, relativePath string) (string, error) {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return "", err
	}
	absFull, err := filepath.Abs(filepath.Join(basePath, relativePath))
	if err != nil {
		return "", err
	}
	if absFull != absBase && !strings.HasPrefix(absFull, absBase+string(filepath.Separator)) {
		return "", os.ErrPermission
	}
	return absFull, nil
}

// ListDirectory lists sub-directories and subtitle files of relativePath.
func ListDirectory(basePath, relativePath string) ([]*FileEntry, error) {
	fullPath, err := SafeJoin(basePath, relativePath)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, err
	}

	var result []*FileEntry
	for _, entry := range entries {
		// Skip hidden files
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !entry.IsDir() && !IsSubtitleFile(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		fe := &FileEntry{
			Name:  entry.Name(),
			Path:  filepath.Join(relativePath, entry.Name()),
			IsDir: entry.IsDir(),
		}
		if !entry.IsDir() {
			fe.Size = info.Size()
		}
		result = append(result, fe)
	}
	return result, nil
}

func BuildTree(basePath, relativePath string, depth int) (*FileEntry, error) {
	entries, err := ListDirectory(basePath, relativePath)
	if err != nil {
		return nil, err
	}

	if depth > 0 {
		for _, entry := range entries {
			if entry.IsDir {
				subtree, err := BuildTree(basePath, entry.Path, depth-1)
				if err != nil {
					continue
				}
				entry.Children = subtree.Children
			}
		}
	}

	name := filepath.Base(relativePath)
	if relativePath == "" || relativePath == "." {
		name = "root"
	}
	return &FileEntry{
		Name:     name,
		Path:     relativePath,
		IsDir:    true,
		Children: entries,
	}, nil
}
