// Package surface loads surface definitions from YAML and keeps the built
// surfaces in a reloadable registry.
package surface

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition is the on-disk form of a surface.
type Definition struct {
	Name      string            `yaml:"name"`
	Types     map[int]string    `yaml:"types,omitempty"` // Display names for surface types
	Mesh      MeshDef           `yaml:"mesh"`
	Transform TransformDef      `yaml:"transform,omitempty"`
	Maps      []BlendMapDef     `yaml:"maps"`
	Meta      map[string]string `yaml:"meta,omitempty"`
}

// MeshDef holds inline triangle geometry.
type MeshDef struct {
	Vertices  [][3]float64   `yaml:"vertices"`
	Triangles [][3]int       `yaml:"triangles"`
	UVs       [][][2]float64 `yaml:"uvs"`
	Submeshes []SubmeshDef   `yaml:"submeshes,omitempty"`
}

// SubmeshDef is a triangle range.
type SubmeshDef struct {
	Start int `yaml:"start"`
	Count int `yaml:"count"`
}

// TransformDef places the mesh in the world. Rotation is Euler degrees
// (pitch, yaw, roll). Omitted scale means (1,1,1).
type TransformDef struct {
	Position [3]float64  `yaml:"position,omitempty"`
	Rotation [3]float64  `yaml:"rotation,omitempty"`
	Scale    *[3]float64 `yaml:"scale,omitempty"`
}

// BlendMapDef is one blend source.
type BlendMapDef struct {
	Name      string      `yaml:"name,omitempty"`
	Weight    *float64    `yaml:"weight,omitempty"` // Omitted means 1
	Image     string      `yaml:"image"`
	Wrap      string      `yaml:"wrap,omitempty"`
	UVChannel int         `yaml:"uv_channel,omitempty"`
	UVScale   *[2]float64 `yaml:"uv_scale,omitempty"` // Omitted means (1,1)
	UVOffset  [2]float64  `yaml:"uv_offset,omitempty"`
	Submeshes []int       `yaml:"submeshes"`
	Channels  ChannelsDef `yaml:"channels"`
}

// ChannelsDef binds each image channel to a blend.
type ChannelsDef struct {
	R ChannelDef `yaml:"r,omitempty"`
	G ChannelDef `yaml:"g,omitempty"`
	B ChannelDef `yaml:"b,omitempty"`
	A ChannelDef `yaml:"a,omitempty"`
}

// ChannelDef is a weighted surface type list with optional tinting. The
// color map has its own wrap mode; omitted means the blend map's.
type ChannelDef struct {
	Tint     *[4]float64 `yaml:"tint,omitempty"` // Omitted means white
	ColorMap string      `yaml:"color_map,omitempty"`
	Wrap     string      `yaml:"wrap,omitempty"`
	Entries  []EntryDef  `yaml:"entries,omitempty"`
}

// EntryDef is one surface type in a channel.
type EntryDef struct {
	Type   int         `yaml:"type"`
	Weight float64     `yaml:"weight"`
	Color  *[4]float64 `yaml:"color,omitempty"`
}

// ErrNoMaps is returned for a definition without blend maps.
var ErrNoMaps = errors.New("definition has no blend maps")

// Parse decodes a definition. Unknown keys are rejected.
func Parse(r io.Reader) (*Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty definition")
		}
		return nil, err
	}
	if len(def.Maps) == 0 {
		return nil, ErrNoMaps
	}
	return &def, nil
}

// ReadFile parses the definition at path.
func ReadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	def, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return def, nil
}

// Marshal encodes the definition as YAML.
func (d *Definition) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TypeName returns the display name for a surface type, or its number.
func (d *Definition) TypeName(surfaceType int) string {
	if name, ok := d.Types[surfaceType]; ok {
		return name
	}
	return fmt.Sprintf("%d", surfaceType)
}
