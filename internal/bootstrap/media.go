package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nextlevelbuilder/vargos/internal/media"
)

// SaveMedia writes content into sessionKey's media directory under
// dataDir (spec §6), naming it via MediaFilename. If content decodes
// as an image, a thumbnail is written alongside it with a "_thumb"
// suffix so a channel adapter can echo back something small without
// re-reading and re-encoding the original on every reply.
func SaveMedia(dataDir, sessionKey string, content []byte, ext string) (path string, err error) {
	dir := MediaDir(dataDir, sessionKey)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	name := MediaFilename(time.Now(), content, ext)
	path = filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("write media file: %w", err)
	}

	if media.IsImage(content) {
		thumb, err := media.Thumbnail(content)
		if err == nil {
			thumbName := name[:len(name)-len(filepath.Ext(name))] + "_thumb.jpg"
			_ = os.WriteFile(filepath.Join(dir, thumbName), thumb, 0o644)
		}
	}

	return path, nil
}
