package render

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Shader file names looked up by LoadShaders.
const (
	VertexShaderFile   = "vert.spv"
	FragmentShaderFile = "frag.spv"
)

const spirvMagic = 0x07230203

// Shaders is the precompiled SPIR-V of the one graphics pipeline.
type Shaders struct {
	Vertex   []byte
	Fragment []byte
}

// LoadShaders reads vert.spv and frag.spv from dir.
func LoadShaders(dir string) (Shaders, error) {
	var s Shaders
	var err error
	if s.Vertex, err = readSPIRV(filepath.Join(dir, VertexShaderFile)); err != nil {
		return Shaders{}, err
	}
	if s.Fragment, err = readSPIRV(filepath.Join(dir, FragmentShaderFile)); err != nil {
		return Shaders{}, err
	}
	return s, nil
}

func readSPIRV(path string) ([]byte, error) {
	code, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(ErrMissingShader, path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read shader %s", path)
	}
	if err := CheckSPIRV(code); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return code, nil
}

// CheckSPIRV checks the length and magic number of a SPIR-V module.
func CheckSPIRV(code []byte) error {
	if len(code) < 20 || len(code)%4 != 0 {
		return errors.Wrapf(ErrInvalidShader, "%d bytes", len(code))
	}
	if binary.LittleEndian.Uint32(code) != spirvMagic {
		return errors.Wrapf(ErrInvalidShader, "magic %#x", binary.LittleEndian.Uint32(code))
	}
	return nil
}
