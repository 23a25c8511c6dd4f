package server

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/df07/go-sphere-pathtracer/pkg/core"
	"github.com/df07/go-sphere-pathtracer/pkg/geometry"
	"github.com/df07/go-sphere-pathtracer/pkg/integrator"
	"github.com/df07/go-sphere-pathtracer/pkg/material"
	"github.com/df07/go-sphere-pathtracer/pkg/scene"
)

// InspectResponse represents the JSON response for object inspection
type InspectResponse struct {
	Hit          bool                   `json:"hit"`
	MaterialType string                 `json:"materialType"`
	GeometryType string                 `json:"geometryType"`
	Point        [3]float64             `json:"point"`
	Normal       [3]float64             `json:"normal"`
	Distance     float64                `json:"distance"`
	FrontFace    bool                   `json:"frontFace"`
	Properties   map[string]interface{} `json:"properties"`
}

func triple(v core.Vec3) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

func hexColor(c core.Color) string {
	c = c.Clamp(0, 1)
	return fmt.Sprintf("#%02x%02x%02x", int(c.X*255), int(c.Y*255), int(c.Z*255))
}

// extractMaterialInfo names a material and lists its parameters
func extractMaterialInfo(mat material.Material) (string, map[string]interface{}) {
	properties := make(map[string]interface{})

	switch m := mat.(type) {
	case *material.Lambertian:
		properties["albedo"] = triple(m.Albedo)
		properties["color"] = hexColor(m.Albedo)
		return "lambertian", properties

	case *material.Metal:
		properties["albedo"] = triple(m.Albedo)
		properties["color"] = hexColor(m.Albedo)
		properties["fuzzness"] = m.Fuzzness
		return "metal", properties

	case *material.Dielectric:
		properties["refractiveIndex"] = m.RefractiveIndex
		properties["color"] = "#ffffff" // Clear glass
		return "dielectric", properties

	default:
		return "unknown", properties
	}
}

// extractGeometryInfo lists the parameters of the sphere that was hit
func extractGeometryInfo(sphere *geometry.Sphere, time float64) (string, map[string]interface{}) {
	properties := make(map[string]interface{})
	if sphere == nil {
		return "unknown", properties
	}

	properties["center"] = triple(sphere.CenterAt(time))
	properties["radius"] = sphere.Radius
	if sphere.Radius < 0 {
		properties["hollow"] = true
	}
	if sphere.IsMoving() {
		properties["center0"] = triple(sphere.CenterAt(0))
		properties["center1"] = triple(sphere.CenterAt(1))
		return "moving_sphere", properties
	}
	return "sphere", properties
}

// InspectResult describes what the ray through a pixel hits first
type InspectResult struct {
	Hit       bool
	HitRecord *material.HitRecord
	Sphere    *geometry.Sphere // The sphere that was hit, nil if not found
	Time      float64          // Ray time used for moving spheres
}

// inspectPixel casts the ray through the center of pixel (x, y), from the
// center of the lens at mid-shutter, and reports the closest hit
func inspectPixel(sceneObj *scene.Scene, pixelX, pixelY int) InspectResult {
	sampler := core.NewSequenceSampler(0.5)
	ray := sceneObj.GetCamera().GetRay(pixelX, pixelY, sampler)

	hit, sphere := closestHit(sceneObj.World, ray, core.NewInterval(integrator.HitEpsilon, math.Inf(1)))
	if hit == nil {
		return InspectResult{Hit: false, Time: ray.Time}
	}
	return InspectResult{Hit: true, HitRecord: hit, Sphere: sphere, Time: ray.Time}
}

// closestHit walks a shape tree and returns the nearest hit along with the
// sphere that produced it
func closestHit(shape geometry.Shape, ray core.Ray, rayT core.Interval) (*material.HitRecord, *geometry.Sphere) {
	switch s := shape.(type) {
	case *geometry.ShapeList:
		var closest *material.HitRecord
		var closestSphere *geometry.Sphere
		for _, child := range s.Shapes {
			if hit, sphere := closestHit(child, ray, rayT); hit != nil {
				closest, closestSphere = hit, sphere
				rayT = core.NewInterval(rayT.Min, hit.T)
			}
		}
		return closest, closestSphere
	case *geometry.Sphere:
		if hit, ok := s.Hit(ray, rayT); ok {
			return hit, s
		}
		return nil, nil
	default:
		if hit, ok := shape.Hit(ray, rayT); ok {
			return hit, nil
		}
		return nil, nil
	}
}

// handleInspect reports what the camera sees through a single pixel
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	sceneName := query.Get("scene")
	if sceneName == "" {
		sceneName = defaultScene
	}

	width, err := parseIntParam(query, "width", 400, minWidth, maxWidth)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid scene parameters: " + err.Error()})
		return
	}
	seed, err := parseIntParam(query, "seed", defaultSeed, 0, 1<<31-1)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid scene parameters: " + err.Error()})
		return
	}

	pixelX, err := strconv.Atoi(query.Get("x"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid x coordinate"})
		return
	}
	pixelY, err := strconv.Atoi(query.Get("y"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid y coordinate"})
		return
	}

	sceneObj, err := s.createScene(sceneName, width, int64(seed))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	camera := sceneObj.GetCamera()
	if pixelX < 0 || pixelX >= camera.ImageWidth() || pixelY < 0 || pixelY >= camera.ImageHeight() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Pixel coordinates out of bounds"})
		return
	}

	result := inspectPixel(sceneObj, pixelX, pixelY)
	if !result.Hit {
		writeJSON(w, http.StatusOK, InspectResponse{Hit: false})
		return
	}

	materialType, materialProps := extractMaterialInfo(result.HitRecord.Material)
	geometryType, geometryProps := extractGeometryInfo(result.Sphere, result.Time)

	writeJSON(w, http.StatusOK, InspectResponse{
		Hit:          true,
		MaterialType: materialType,
		GeometryType: geometryType,
		Point:        triple(result.HitRecord.Point),
		Normal:       triple(result.HitRecord.Normal),
		Distance:     result.HitRecord.T,
		FrontFace:    result.HitRecord.FrontFace,
		Properties: map[string]interface{}{
			"material": materialProps,
			"geometry": geometryProps,
		},
	})
}
