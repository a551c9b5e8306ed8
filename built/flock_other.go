//go:build !unix

package built

import "github.com/spf13/afero"

func lockDir(afero.Fs, string) (func(), error) {
	return func() {}, nil
}
