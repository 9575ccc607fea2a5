package scene

import (
	"context"
	_ "embed"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-draw/engine/buffer_registry"
	"github.com/Carmen-Shannon/oxy-draw/engine/camera"
	"github.com/Carmen-Shannon/oxy-draw/engine/compute_manager"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-draw/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-draw/engine/scene_object"
	"github.com/Carmen-Shannon/oxy-draw/logger"
	"github.com/cogentcore/webgpu/wgpu"
)

// MeshPipelineKey is the render pipeline every scene mesh is drawn with.
const MeshPipelineKey = "mesh"

//go:embed assets/mesh.wgsl
var meshSource string

// MeshShaderSource is the complete WGSL of the mesh pipeline, camera struct included.
var MeshShaderSource = camera.GPUCameraUniformSource + "\n" + meshSource

// worldMatrixSize is the byte size of the per-object mat4x4<f32> uniform.
const worldMatrixSize = 64

// entry is one object owned by the scene together with the GPU resources created for it.
type entry struct {
	obj      scene_object.SceneObject
	world    renderer.Buffer
	provider bind_group_provider.BindGroupProvider
}

type scene struct {
	mu *sync.Mutex

	name   string
	active bool
	orbit  bool

	cam     camera.Camera
	manager compute_manager.ComputeManager
	sides   []scene_object.Side

	objects map[int]*entry
	order   []int

	cameraProvider bind_group_provider.BindGroupProvider
}

// Scene owns the objects of one view and drives them through the compute manager.
// Objects added to a scene are registered for indirect drawing, frustum culling and,
// when they carry a LOD threshold, LOD selection.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// Active returns whether this scene is currently active for rendering.
	Active() bool

	// SetActive sets whether this scene is active for rendering.
	SetActive(active bool)

	// Camera returns the scene's camera.
	Camera() camera.Camera

	// Manager returns the frame orchestrator the scene draws through.
	Manager() compute_manager.ComputeManager

	// Count returns the number of objects in the scene.
	Count() int

	// Add registers obj with every engine of the manager. Objects are tracked by ID, so
	// adding the same object twice does nothing.
	//
	// Parameters:
	//   - obj: the object to add
	//
	// Returns:
	//   - int: the object's ID
	Add(obj scene_object.SceneObject) int

	// AddMesh creates an object drawing mesh with the mesh pipeline at translation and
	// adds it. A threshold of zero or less leaves the object out of LOD selection.
	//
	// Parameters:
	//   - mesh: the geometry and LOD ladder
	//   - translation: world position of the object
	//   - threshold: LOD distance step
	//
	// Returns:
	//   - scene_object.SceneObject: the new object
	//   - error: the renderer's buffer creation error
	AddMesh(mesh Mesh, translation [3]float32, threshold float32) (scene_object.SceneObject, error)

	// AddGrid lays out n×n copies of mesh spaced apart on the XZ plane, centred on the origin.
	//
	// Parameters:
	//   - mesh: the geometry shared by every cell
	//   - n: cells per side
	//   - spacing: distance between cell centres
	//   - threshold: LOD distance step of every cell
	//
	// Returns:
	//   - []scene_object.SceneObject: the new objects in row-major order
	//   - error: the first AddMesh error
	AddGrid(mesh Mesh, n int, spacing, threshold float32) ([]scene_object.SceneObject, error)

	// Get retrieves an object by ID, or nil.
	Get(id int) scene_object.SceneObject

	// Remove drops the object from the manager and releases its GPU resources.
	Remove(id int)

	// Clear removes every object.
	Clear()

	// Update advances the orbit camera by dt seconds, recomputes the camera matrices and
	// refreshes dirty world matrices anywhere below the root objects.
	//
	// Parameters:
	//   - dt: elapsed seconds since the previous update
	Update(dt float32)

	// Frame uploads the camera uniform and runs one manager frame with the current
	// camera.
	//
	// Parameters:
	//   - ctx: cancels the frame before any work is encoded
	//
	// Returns:
	//   - error: the camera upload error or the manager's frame error
	Frame(ctx context.Context) error

	// Release removes every object and frees the scene's bind groups.
	Release()
}

var _ Scene = &scene{}

// NewScene creates a scene drawing through manager and registers the mesh render
// pipeline on the manager's renderer. A nil camera or manager panics.
//
// Parameters:
//   - name: the scene's identifier
//   - cam: the camera
//   - manager: the frame orchestrator
//   - options: variadic list of SceneBuilderOption functions
//
// Returns:
//   - Scene: the new scene
func NewScene(name string, cam camera.Camera, manager compute_manager.ComputeManager, options ...SceneBuilderOption) Scene {
	if cam == nil || manager == nil {
		panic("scene: camera and compute manager are required")
	}
	s := &scene{
		mu:      &sync.Mutex{},
		name:    name,
		active:  true,
		orbit:   true,
		cam:     cam,
		manager: manager,
		sides:   []scene_object.Side{scene_object.SideFront},
		objects: make(map[int]*entry),
	}
	for _, opt := range options {
		opt(s)
	}

	ctx := manager.Context()
	r := ctx.Renderer()
	if r.Pipeline(MeshPipelineKey) == nil {
		mesh := pipeline.NewPipeline(MeshPipelineKey, pipeline.PipelineTypeRender,
			pipeline.WithVertexShader(shader.NewShader("mesh_vs", shader.ShaderTypeVertex, MeshShaderSource)),
			pipeline.WithFragmentShader(shader.NewShader("mesh_fs", shader.ShaderTypeFragment, MeshShaderSource)),
			pipeline.WithVertexLayouts(wgpu.VertexBufferLayout{
				ArrayStride: 12,
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
				},
			}),
			pipeline.WithCullMode(wgpu.CullModeBack),
			pipeline.WithDepthTestEnabled(true),
			pipeline.WithDepthWriteEnabled(true),
		)
		if err := r.RegisterPipelines(mesh); err != nil {
			panic(fmt.Sprintf("scene: %v", err))
		}
	}

	s.cameraProvider = bind_group_provider.NewBindGroupProvider(name+" camera", MeshPipelineKey, 0,
		bind_group_provider.WithBinding(0, ctx.Ensure(buffer_registry.BufferCameraUniform, renderer.BufferUsageUniform|renderer.BufferUsageCopyDst)),
	)
	return s
}

func (s *scene) Name() string {
	return s.name
}

func (s *scene) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Camera() camera.Camera {
	return s.cam
}

func (s *scene) Manager() compute_manager.ComputeManager {
	return s.manager
}

func (s *scene) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func (s *scene) Add(obj scene_object.SceneObject) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(&entry{obj: obj})
	return obj.ID()
}

// addLocked registers e with the manager unless its object is already present.
// Caller must hold the mutex.
func (s *scene) addLocked(e *entry) {
	id := e.obj.ID()
	if _, ok := s.objects[id]; ok {
		return
	}
	s.objects[id] = e
	s.order = append(s.order, id)

	s.manager.AppendIndirect(e.obj)
	s.manager.AppendIndex(e.obj)
	s.manager.AppendFrustumCulling(e.obj)
	if _, ok := e.obj.LodSelectionThreshold(); ok {
		s.manager.AppendLodSelection(e.obj)
	}
}

func (s *scene) AddMesh(mesh Mesh, translation [3]float32, threshold float32) (scene_object.SceneObject, error) {
	r := s.manager.Context().Renderer()
	world, err := r.CreateBuffer("object world", renderer.BufferUsageUniform|renderer.BufferUsageCopyDst, make([]byte, worldMatrixSize))
	if err != nil {
		return nil, fmt.Errorf("create world matrix buffer: %w", err)
	}

	provider := bind_group_provider.NewBindGroupProvider(s.name+" object world", MeshPipelineKey, 1,
		bind_group_provider.WithBuffer(0, world),
	)
	prim := scene_object.NewPrimitive(mesh.Positions,
		scene_object.WithIndices(mesh.Indices),
		scene_object.WithLodRanges(mesh.Ranges...),
		scene_object.WithPipeline(scene_object.SideFront, MeshPipelineKey),
		scene_object.WithBindGroups(s.cameraProvider, provider),
	)
	objOptions := []scene_object.SceneObjectBuilderOption{
		scene_object.WithTranslation(translation[0], translation[1], translation[2]),
		scene_object.WithTransformBuffer(r, world, nil),
		scene_object.WithPrimitives(prim),
	}
	if threshold > 0 {
		objOptions = append(objOptions, scene_object.WithLodSelectionThreshold(threshold))
	}
	obj := scene_object.NewSceneObject(objOptions...)
	obj.UpdateWorldMatrix()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(&entry{obj: obj, world: world, provider: provider})
	return obj, nil
}

func (s *scene) AddGrid(mesh Mesh, n int, spacing, threshold float32) ([]scene_object.SceneObject, error) {
	out := make([]scene_object.SceneObject, 0, n*n)
	offset := float32(n-1) * spacing / 2
	for row := range n {
		for col := range n {
			obj, err := s.AddMesh(mesh, [3]float32{float32(col)*spacing - offset, 0, float32(row)*spacing - offset}, threshold)
			if err != nil {
				return out, err
			}
			out = append(out, obj)
		}
	}
	logger.Component("scene").Info("grid added", "scene", s.name, "objects", len(out),
		"indices_per_object", len(mesh.Indices), "lod_levels", len(mesh.Ranges))
	return out, nil
}

func (s *scene) Get(id int) scene_object.SceneObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.objects[id]; ok {
		return e.obj
	}
	return nil
}

func (s *scene) Remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
}

// removeLocked drops id from the manager and frees what the scene created for it.
// Caller must hold the mutex.
func (s *scene) removeLocked(id int) {
	e, ok := s.objects[id]
	if !ok {
		return
	}
	delete(s.objects, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.manager.Remove(e.obj)
	if e.provider != nil {
		e.provider.Release()
	}
	if e.world != nil {
		e.world.Release()
		for _, prim := range e.obj.Primitives() {
			prim.Release()
		}
	}
}

func (s *scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range append([]int(nil), s.order...) {
		s.removeLocked(id)
	}
}

func (s *scene) Update(dt float32) {
	s.mu.Lock()
	orbit := s.orbit
	roots := make([]scene_object.SceneObject, 0, len(s.order))
	for _, id := range s.order {
		if obj := s.objects[id].obj; obj.Parent() == nil {
			roots = append(roots, obj)
		}
	}
	s.mu.Unlock()

	if orbit {
		s.cam.Controller().Advance(dt)
	}
	s.cam.Update()
	// Clean roots skip their own recompute but still reach dirty descendants.
	for _, obj := range roots {
		obj.UpdateWorldMatrix()
	}
}

func (s *scene) Frame(ctx context.Context) error {
	uniform := s.cam.Uniform()
	if err := s.manager.Context().Upload(buffer_registry.BufferCameraUniform, uniform.Marshal(), buffer_registry.ElementFormatFloat32); err != nil {
		return fmt.Errorf("upload camera uniform: %w", err)
	}
	s.mu.Lock()
	sides := s.sides
	s.mu.Unlock()
	return s.manager.Frame(ctx, s.cam.ViewMatrix(), s.cam.ProjectionMatrix(), s.cam.Position(), sides)
}

func (s *scene) Release() {
	s.Clear()
	s.cameraProvider.Release()
}
