package scene

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/df07/go-sphere-pathtracer/pkg/core"
	"github.com/df07/go-sphere-pathtracer/pkg/geometry"
	"github.com/df07/go-sphere-pathtracer/pkg/material"
	"github.com/df07/go-sphere-pathtracer/pkg/renderer"
)

// vec3Config is a YAML triple such as [0.5, 0.7, 1.0]
type vec3Config [3]float64

func (v vec3Config) vec() core.Vec3 {
	return core.NewVec3(v[0], v[1], v[2])
}

func fromVec(v core.Vec3) vec3Config {
	return vec3Config{v.X, v.Y, v.Z}
}

// FileConfig is the on-disk layout of a YAML scene file
type FileConfig struct {
	Camera    CameraFileConfig              `yaml:"camera"`
	Sampling  SamplingFileConfig            `yaml:"sampling"`
	Sky       *SkyFileConfig                `yaml:"sky,omitempty"`
	Materials map[string]MaterialFileConfig `yaml:"materials"`
	Spheres   []SphereFileConfig            `yaml:"spheres"`
}

type CameraFileConfig struct {
	LookFrom      vec3Config `yaml:"look_from"`
	LookAt        vec3Config `yaml:"look_at"`
	Up            vec3Config `yaml:"up"`
	Width         int        `yaml:"width"`
	AspectRatio   float64    `yaml:"aspect_ratio"`
	VFov          float64    `yaml:"vfov"`
	DefocusAngle  float64    `yaml:"defocus_angle"`
	FocusDistance float64    `yaml:"focus_distance"`
}

type SamplingFileConfig struct {
	SamplesPerPixel int `yaml:"samples_per_pixel"`
	MaxDepth        int `yaml:"max_depth"`
}

type SkyFileConfig struct {
	Top    vec3Config `yaml:"top"`
	Bottom vec3Config `yaml:"bottom"`
}

// MaterialFileConfig describes one named material. Type selects which of the
// remaining fields apply: lambertian and metal use Albedo, metal also uses
// Fuzz, dielectric uses RefractiveIndex.
type MaterialFileConfig struct {
	Type            string     `yaml:"type"`
	Albedo          vec3Config `yaml:"albedo,omitempty"`
	Fuzz            float64    `yaml:"fuzz,omitempty"`
	RefractiveIndex float64    `yaml:"refractive_index,omitempty"`
}

// SphereFileConfig places one sphere. Center2, when present, makes the sphere
// move from Center at time 0 to Center2 at time 1.
type SphereFileConfig struct {
	Center   vec3Config  `yaml:"center"`
	Center2  *vec3Config `yaml:"center2,omitempty"`
	Radius   float64     `yaml:"radius"`
	Material string      `yaml:"material"`
}

// defaultFileConfig holds the values a scene file starts from before decoding
func defaultFileConfig() FileConfig {
	camera := renderer.DefaultCameraConfig()
	sampling := core.DefaultSamplingConfig()
	return FileConfig{
		Camera: CameraFileConfig{
			LookFrom:    fromVec(camera.LookFrom),
			LookAt:      fromVec(camera.LookAt),
			Up:          fromVec(camera.Up),
			Width:       camera.Width,
			AspectRatio: camera.AspectRatio,
			VFov:        camera.VFov,
		},
		Sampling: SamplingFileConfig{
			SamplesPerPixel: sampling.SamplesPerPixel,
			MaxDepth:        sampling.MaxDepth,
		},
	}
}

// LoadSceneFile reads and builds a YAML scene file
func LoadSceneFile(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("while opening scene file: %w", err)
	}
	defer f.Close()

	s, err := ParseScene(f)
	if err != nil {
		return nil, fmt.Errorf("while loading %s: %w", path, err)
	}
	return s, nil
}

// ParseScene decodes a YAML scene and builds it. Unknown keys are rejected.
func ParseScene(r io.Reader) (*Scene, error) {
	config := defaultFileConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("while decoding scene YAML: %w", err)
	}

	return config.Build()
}

// Build validates the configuration and constructs the scene. Materials are
// created once each and shared by every sphere that names them.
func (c FileConfig) Build() (*Scene, error) {
	if c.Camera.Width <= 0 {
		return nil, fmt.Errorf("camera width must be positive, got %d", c.Camera.Width)
	}
	if c.Camera.AspectRatio <= 0 {
		return nil, fmt.Errorf("camera aspect_ratio must be positive, got %v", c.Camera.AspectRatio)
	}
	if c.Sampling.SamplesPerPixel < 0 || c.Sampling.MaxDepth < 0 {
		return nil, fmt.Errorf("sampling values must not be negative, got %+v", c.Sampling)
	}

	materials, err := c.buildMaterials()
	if err != nil {
		return nil, err
	}

	cameraConfig := renderer.CameraConfig{
		LookFrom:      c.Camera.LookFrom.vec(),
		LookAt:        c.Camera.LookAt.vec(),
		Up:            c.Camera.Up.vec(),
		Width:         c.Camera.Width,
		AspectRatio:   c.Camera.AspectRatio,
		VFov:          c.Camera.VFov,
		DefocusAngle:  c.Camera.DefocusAngle,
		FocusDistance: c.Camera.FocusDistance,
	}
	samplingConfig := core.SamplingConfig{
		SamplesPerPixel: c.Sampling.SamplesPerPixel,
		MaxDepth:        c.Sampling.MaxDepth,
	}

	s := newScene(cameraConfig, samplingConfig, nil)
	if c.Sky != nil {
		s.TopColor = c.Sky.Top.vec()
		s.BottomColor = c.Sky.Bottom.vec()
	}

	for i, sphere := range c.Spheres {
		mat, ok := materials[sphere.Material]
		if !ok {
			return nil, fmt.Errorf("sphere %d: unknown material %q", i, sphere.Material)
		}
		if sphere.Radius == 0 {
			return nil, fmt.Errorf("sphere %d: radius must be non-zero", i)
		}

		if sphere.Center2 != nil {
			s.World.Add(geometry.NewMovingSphere(sphere.Center.vec(), sphere.Center2.vec(), sphere.Radius, mat))
		} else {
			s.World.Add(geometry.NewSphere(sphere.Center.vec(), sphere.Radius, mat))
		}
	}

	return s, nil
}

func (c FileConfig) buildMaterials() (map[string]material.Material, error) {
	// Sorted so the first reported error does not depend on map order
	names := make([]string, 0, len(c.Materials))
	for name := range c.Materials {
		names = append(names, name)
	}
	sort.Strings(names)

	materials := make(map[string]material.Material, len(names))
	for _, name := range names {
		m, err := c.Materials[name].build()
		if err != nil {
			return nil, fmt.Errorf("material %q: %w", name, err)
		}
		materials[name] = m
	}
	return materials, nil
}

func (m MaterialFileConfig) build() (material.Material, error) {
	switch m.Type {
	case "lambertian":
		return material.NewLambertian(m.Albedo.vec()), nil
	case "metal":
		return material.NewMetal(m.Albedo.vec(), m.Fuzz), nil
	case "dielectric":
		if m.RefractiveIndex <= 0 {
			return nil, fmt.Errorf("refractive_index must be positive, got %v", m.RefractiveIndex)
		}
		return material.NewDielectric(m.RefractiveIndex), nil
	default:
		return nil, fmt.Errorf("unknown type %q", m.Type)
	}
}
