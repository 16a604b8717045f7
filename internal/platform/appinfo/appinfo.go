// Package appinfo reads per-app install metadata.
//
// Each installed app carries an info.properties file in its install
// directory; the key app.md5 holds the content hash of the installed
// version.
package appinfo

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/GriffinCanCode/ModuleOS/supervisor/internal/shared/types"
	"github.com/magiconair/properties"
)

const (
	infoFileName = "info.properties"
	md5Key       = "app.md5"
)

// Hash returns the app's content hash from its install metadata.
//
// Returns NotFound if the app has no info file, Overflow if the stored hash
// exceeds the framework's hash limit, and Fault on any other read or parse
// error (including a missing app.md5 key).
func Hash(installDir, appName string) (string, types.Result) {
	path := filepath.Join(installDir, appName, infoFileName)

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", types.NotFound
		}
		return "", types.Fault
	}

	props, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return "", types.Fault
	}

	hash, ok := props.Get(md5Key)
	if !ok {
		return "", types.Fault
	}

	if len(hash) >= types.MaxMD5StrBytes {
		return hash[:types.MaxMD5StrBytes-1], types.Overflow
	}

	return hash, types.OK
}
