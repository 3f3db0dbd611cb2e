package assets

import (
	"os"

	"github.com/cockroachdb/errors"
)

type ShaderLoader struct{}

// Load reads a SPIR-V binary. The bytecode is passed on untouched.
func (sl *ShaderLoader) Load(path string) (*Resource, error) {
	data, err := ShaderFile(path)
	if err != nil {
		return nil, err
	}
	return &Resource{
		FullPath: path,
		Type:     ResourceTypeShader,
		DataSize: uint64(len(data)),
		Data:     data,
	}, nil
}

// ShaderFile reads a shader straight from disk. It fits renderer.ShaderSource.
func ShaderFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read shader module '%s'", path)
	}
	return data, nil
}
