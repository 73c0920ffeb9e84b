package nosdav

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// AuthorizeWrite decides whether identity may write requestPath and returns the
// absolute, cleaned path the write must land on.
//
// A path with any ".." segment is rejected with ErrPathEscape before anything
// else. In singleuser mode the identity must be one of owners and the boundary
// is rootDir. In multiuser mode the first segment of requestPath must equal the
// identity, the file must sit directly in that directory, and the boundary is
// rootDir/<identity>. In both modes the cleaned target must then descend from
// the boundary; the boundary itself is not a writable file.
//
// AuthorizeWrite performs no filesystem access. Symlinks are not resolved here;
// the storage layer opens every path beneath an os.Root, which refuses to
// follow links out of the root.
func AuthorizeWrite(mode StorageMode, identity Identity, owners OwnerSet, requestPath, rootDir string) (string, error) {
	root, err := absRoot(rootDir)
	if err != nil {
		return "", fmt.Errorf("authorize write: %w", err)
	}

	if !mode.IsValid() {
		return "", fmt.Errorf("authorize write: %w: unknown storage mode %q", ErrInvalidInput, mode)
	}

	segs := segments(requestPath)
	if slices.Contains(segs, "..") {
		return "", fmt.Errorf("authorize write %s: %w", requestPath, ErrPathEscape)
	}

	boundary := root

	switch mode {
	case ModeSingleUser:
		if !owners.Contains(identity) {
			return "", fmt.Errorf("authorize write %s: %w", requestPath, ErrOwnershipMismatch)
		}

	case ModeMultiUser:
		if len(segs) == 0 || segs[0] != string(identity) {
			return "", fmt.Errorf("authorize write %s: %w", requestPath, ErrNamespaceMismatch)
		}
		if len(segs) != 2 || segs[1] == "." {
			return "", fmt.Errorf("authorize write %s: %w", requestPath, ErrInvalidTargetDir)
		}
		boundary = filepath.Join(root, string(identity))
	}

	target := filepath.Join(root, filepath.FromSlash(requestPath))
	if !within(boundary, target) {
		return "", fmt.Errorf("authorize write %s: %w", requestPath, ErrPathEscape)
	}
	if target == boundary {
		return "", fmt.Errorf("authorize write %s: %w: no file name", requestPath, ErrInvalidTargetDir)
	}

	return target, nil
}

// RelativeTo returns target relative to rootDir using forward slashes, for the
// sandboxed store. target must come from AuthorizeWrite with the same rootDir.
func RelativeTo(rootDir, target string) (string, error) {
	root, err := absRoot(rootDir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, target)
	if err != nil || !within(root, target) {
		return "", fmt.Errorf("relative path %s: %w", target, ErrPathEscape)
	}
	return filepath.ToSlash(rel), nil
}

func absRoot(rootDir string) (string, error) {
	if rootDir == "" {
		return "", fmt.Errorf("%w: root directory cannot be empty", ErrInvalidInput)
	}
	root, err := filepath.Abs(rootDir)
	if err != nil {
		return "", fmt.Errorf("%w: resolve root directory: %w", ErrInvalidInput, err)
	}
	return root, nil
}

// within reports whether target is boundary or a descendant of it.
// Both paths must be absolute and clean.
func within(boundary, target string) bool {
	rel, err := filepath.Rel(boundary, target)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
