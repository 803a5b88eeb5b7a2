package navmesh

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hjson/hjson-go/v4"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// FileVersion is the mesh file revision this build reads and writes.
	FileVersion = 1
	// binaryMagic prefixes compiled .nav files.
	binaryMagic = "NAVB"
)

// File is the on-disk mesh description, authored as hjson/json and compiled
// to msgpack.
type File struct {
	Version int            `json:"version" msgpack:"version" jsonschema:"title=Version,description=Mesh file revision,minimum=1,required"`
	Areas   []AreaRecord   `json:"areas" msgpack:"areas" jsonschema:"title=Areas,required"`
	Ladders []LadderRecord `json:"ladders,omitempty" msgpack:"ladders,omitempty" jsonschema:"title=Ladders"`
}

// AreaRecord describes one area in a mesh file.
type AreaRecord struct {
	ID         uint32     `json:"id" msgpack:"id" jsonschema:"minimum=1,required"`
	Lo         [3]float32 `json:"lo" msgpack:"lo" jsonschema:"description=Corner with the smallest x and y; z is the floor height there,required"`
	Hi         [3]float32 `json:"hi" msgpack:"hi" jsonschema:"description=Corner with the largest x and y; z is the floor height there,required"`
	Attributes []string   `json:"attributes,omitempty" msgpack:"attributes,omitempty" jsonschema:"enum=crouch,enum=jump,enum=precise,enum=no_jump"`
	North      []uint32   `json:"north,omitempty" msgpack:"north,omitempty"`
	East       []uint32   `json:"east,omitempty" msgpack:"east,omitempty"`
	South      []uint32   `json:"south,omitempty" msgpack:"south,omitempty"`
	West       []uint32   `json:"west,omitempty" msgpack:"west,omitempty"`
}

// LadderRecord describes one ladder in a mesh file.
type LadderRecord struct {
	ID         uint32     `json:"id" msgpack:"id" jsonschema:"minimum=1,required"`
	Top        [3]float32 `json:"top" msgpack:"top" jsonschema:"required"`
	Bottom     [3]float32 `json:"bottom" msgpack:"bottom" jsonschema:"required"`
	Width      float32    `json:"width,omitempty" msgpack:"width,omitempty"`
	TopArea    uint32     `json:"topArea" msgpack:"topArea" jsonschema:"required"`
	BottomArea uint32     `json:"bottomArea" msgpack:"bottomArea" jsonschema:"required"`
}

type binaryFile struct {
	Magic string `msgpack:"magic"`
	File  File   `msgpack:"file"`
}

// LoadError pairs a load status with its cause.
type LoadError struct {
	Status NavError
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return "navmesh: " + e.Status.String()
	}
	return fmt.Sprintf("navmesh: %s: %v", e.Status, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// StatusOf extracts the NavError carried by err, NavOK for nil.
func StatusOf(err error) NavError {
	if err == nil {
		return NavOK
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Status
	}
	return NavInvalidFile
}

// ReadFile reads a mesh file. Files ending in .nav are compiled msgpack;
// anything else is parsed as hjson.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Status: NavCantAccessFile, Err: err}
	}
	if strings.EqualFold(filepath.Ext(path), ".nav") {
		return DecodeBinary(data)
	}
	return DecodeText(data)
}

// DecodeText parses an hjson (or plain json) mesh description.
func DecodeText(data []byte) (*File, error) {
	var file File
	if err := hjson.Unmarshal(data, &file); err != nil {
		return nil, &LoadError{Status: NavInvalidFile, Err: err}
	}
	if file.Version != FileVersion {
		return nil, &LoadError{Status: NavBadFileVersion, Err: fmt.Errorf("version %d, want %d", file.Version, FileVersion)}
	}
	return &file, nil
}

// DecodeBinary parses a compiled mesh.
func DecodeBinary(data []byte) (*File, error) {
	var wire binaryFile
	if err := msgpack.NewDecoder(bytes.NewReader(data)).Decode(&wire); err != nil {
		return nil, &LoadError{Status: NavInvalidFile, Err: err}
	}
	if wire.Magic != binaryMagic {
		return nil, &LoadError{Status: NavInvalidFile, Err: fmt.Errorf("bad magic %q", wire.Magic)}
	}
	if wire.File.Version != FileVersion {
		return nil, &LoadError{Status: NavBadFileVersion, Err: fmt.Errorf("version %d, want %d", wire.File.Version, FileVersion)}
	}
	return &wire.File, nil
}

// EncodeBinary compiles a mesh description to the .nav format.
func EncodeBinary(file *File) ([]byte, error) {
	if file == nil {
		return nil, errors.New("navmesh: nil file")
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.Encode(binaryFile{Magic: binaryMagic, File: *file}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Build links a file's records into a Mesh. Inconsistent references are
// reported as NavCorruptData.
func (f *File) Build() (*Mesh, error) {
	specs := make([]AreaSpec, 0, len(f.Areas))
	for _, rec := range f.Areas {
		attrs, err := ParseAttributes(rec.Attributes)
		if err != nil {
			return nil, &LoadError{Status: NavCorruptData, Err: fmt.Errorf("area %d: %w", rec.ID, err)}
		}
		spec := AreaSpec{
			ID:         rec.ID,
			Extent:     Extent{Lo: Vector(rec.Lo), Hi: Vector(rec.Hi)},
			Attributes: attrs,
		}
		spec.Connect[North] = rec.North
		spec.Connect[East] = rec.East
		spec.Connect[South] = rec.South
		spec.Connect[West] = rec.West
		specs = append(specs, spec)
	}
	ladders := make([]Ladder, 0, len(f.Ladders))
	for _, rec := range f.Ladders {
		ladders = append(ladders, Ladder{
			ID:         rec.ID,
			Top:        Vector(rec.Top),
			Bottom:     Vector(rec.Bottom),
			Width:      rec.Width,
			TopArea:    rec.TopArea,
			BottomArea: rec.BottomArea,
		})
	}
	mesh, err := NewMesh(specs, ladders)
	if err != nil {
		return nil, &LoadError{Status: NavCorruptData, Err: err}
	}
	return mesh, nil
}

// LoadMesh reads and builds the mesh at path.
func LoadMesh(path string) (*Mesh, error) {
	file, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return file.Build()
}
