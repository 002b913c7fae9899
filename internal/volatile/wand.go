package volatile

import (
	"strings"
)

const defaultMimeType = `text/plain`

var mimeTypes = map[string]string{
	`ico`:  `image/x-icon`,
	`html`: `text/html`,
	`jpeg`: `image/jpeg`,
	`pdf`:  `application/pdf`,
}

type FsWand struct {
}

func Magic() FsWand {
	return FsWand{}
}

// Zap maps a file name to the content type sent with its download.
func (wand FsWand) Zap(name string) string {
	if index := strings.LastIndex(name, `.`); index >= 0 && index < len(name)-1 {
		if mimeType, ok := mimeTypes[strings.ToLower(name[index+1:])]; ok {
			return mimeType
		}
	}
	return defaultMimeType
}
