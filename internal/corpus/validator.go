package corpus

import (
	"fmt"
	"sort"
	"strings"
)

const (
	maxSceneIDLength = 255
	maxTextLength    = 1 << 24
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, field := range keys {
		parts = append(parts, fmt.Sprintf("%s:%s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

// ValidateScene checks one scene. prevNum is the scene number of the
// preceding scene, or -1 for the first.
func ValidateScene(sc *Scene, prevNum int) error {
	errs := make(map[string]string)

	if sc.SceneNum < 0 {
		errs["sceneNum"] = "scene number must not be negative"
	} else if sc.SceneNum <= prevNum {
		errs["sceneNum"] = fmt.Sprintf("scene number %d must be greater than %d", sc.SceneNum, prevNum)
	}
	if strings.TrimSpace(sc.SceneID) == "" {
		errs["sceneId"] = "scene id is required"
	} else if len(sc.SceneID) > maxSceneIDLength {
		errs["sceneId"] = fmt.Sprintf("scene id must be at most %d characters", maxSceneIDLength)
	}
	if len(sc.Text) > maxTextLength {
		errs["text"] = fmt.Sprintf("text must be at most %d bytes", maxTextLength)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
