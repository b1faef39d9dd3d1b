package client

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

type ValidationError struct {
	Arg   string
	Cause string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Arg, e.Cause)
}

type PathKind int

const (
	PathFile PathKind = iota
	PathDir
)

type ParsedPath struct {
	FullPath string
	Kind     PathKind
}

func ParseArgs(args []string) ([]ParsedPath, error) {
	if len(args) == 0 {
		return nil, &ValidationError{Arg: "<files>", Cause: "no files provided"}
	}

	var out []ParsedPath

	for _, raw := range args {
		p := filepath.Clean(raw)
		info, err := os.Stat(p)
		if err != nil {
			return nil, &ValidationError{Arg: raw, Cause: "not found or not accessible"}
		}

		kind := PathFile
		if info.IsDir() {
			kind = PathDir
		} else if !info.Mode().IsRegular() {
			return nil, &ValidationError{Arg: raw, Cause: "not a regular file"}
		}

		out = append(out, ParsedPath{FullPath: p, Kind: kind})
	}

	return out, nil
}

// LocalFile is a file on disk and the display name it is uploaded under.
type LocalFile struct {
	Path string
	Name string
}

// CollectFiles expands parsed paths into the files to upload. Directories
// are walked recursively; their files are named relative to the directory's
// parent using forward slashes, e.g. "photos/2024/a.jpg".
func CollectFiles(paths []ParsedPath) ([]LocalFile, error) {
	var out []LocalFile

	for _, p := range paths {
		if p.Kind == PathFile {
			out = append(out, LocalFile{Path: p.FullPath, Name: filepath.Base(p.FullPath)})
			continue
		}

		files, err := walkDir(p.FullPath)
		if err != nil {
			return nil, err
		}
		out = append(out, files...)
	}

	if len(out) == 0 {
		return nil, &ValidationError{Arg: "<files>", Cause: "no regular files found"}
	}
	return out, nil
}

func walkDir(root string) ([]LocalFile, error) {
	base := filepath.Dir(root)
	var out []LocalFile

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		out = append(out, LocalFile{Path: path, Name: filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
