package showcase

import (
	"image/color"
	"strings"
	"sync"

	mst "github.com/flywave/go-mst"
	"github.com/flywave/go3d/vec3"
	"github.com/pkg/errors"
)

// Camera is the perspective camera of the scene. Orbit controls are the
// viewer's business, the scene only records the pose and projection.
type Camera struct {
	Fov      float64
	Aspect   float64
	Near     float64
	Far      float64
	Position vec3.T
	Target   vec3.T
}

// Resize updates the aspect ratio for a new viewport size.
func (c *Camera) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	c.Aspect = float64(width) / float64(height)
}

type LightKind string

const (
	SpotLight        LightKind = "spot"
	PointLight       LightKind = "point"
	DirectionalLight LightKind = "directional"
	AmbientLight     LightKind = "ambient"
)

type Light struct {
	Name      string
	Kind      LightKind
	Color     color.RGBA
	Intensity float32
	Position  vec3.T
	Target    vec3.T

	CastShadow    bool
	ShadowMapSize int
	ShadowNear    float32
	ShadowFar     float32
	ShadowFov     float32
}

// Object is a node of the scene graph. Mesh and Material are optional, a
// node without a mesh only groups and offsets its children.
type Object struct {
	Name     string
	Mesh     *mst.MeshNode
	Material *Material
	Position vec3.T
	Children []*Object
}

func NewGroup(name string) *Object {
	return &Object{Name: name}
}

func (o *Object) child(name string) (int, *Object) {
	for i, c := range o.Children {
		if c.Name == name {
			return i, c
		}
	}
	return -1, nil
}

var (
	ErrNotFound  = errors.New("object not found")
	ErrDuplicate = errors.New("object already exists")
)

// Scene owns everything that gets rendered. It is created once per showcase
// and shared by the asset pipeline callbacks and the engraver, so every
// access goes through its lock.
type Scene struct {
	mu sync.RWMutex

	background  color.RGBA
	camera      Camera
	lights      []Light
	environment *Texture
	root        *Object
	version     int
}

func NewScene(background color.RGBA, camera Camera) *Scene {
	return &Scene{
		background: background,
		camera:     camera,
		root:       &Object{},
	}
}

func splitPath(path string) []string {
	var out []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *Scene) lookup(path string) *Object {
	cur := s.root
	for _, name := range splitPath(path) {
		_, c := cur.child(name)
		if c == nil {
			return nil
		}
		cur = c
	}
	return cur
}

// ensure walks path, creating empty groups for missing components.
func (s *Scene) ensure(path string) *Object {
	cur := s.root
	for _, name := range splitPath(path) {
		_, c := cur.child(name)
		if c == nil {
			c = NewGroup(name)
			cur.Children = append(cur.Children, c)
		}
		cur = c
	}
	return cur
}

// Add inserts obj under the group at parent, creating missing groups. An
// existing sibling of the same name is an error.
func (s *Scene) Add(parent string, obj *Object) error {
	if obj == nil || obj.Name == "" || strings.Contains(obj.Name, "/") {
		return errors.New("object needs a name without slashes")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.ensure(parent)
	if _, c := p.child(obj.Name); c != nil {
		return errors.Wrapf(ErrDuplicate, "%s/%s", parent, obj.Name)
	}
	p.Children = append(p.Children, obj)
	s.version++
	return nil
}

// Replace removes any object with obj's name under parent and inserts obj,
// in one step, so no reader ever sees both or neither.
func (s *Scene) Replace(parent string, obj *Object) (old *Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.ensure(parent)
	if i, c := p.child(obj.Name); c != nil {
		old = c
		p.Children = append(p.Children[:i], p.Children[i+1:]...)
	}
	p.Children = append(p.Children, obj)
	s.version++
	return old
}

// Remove detaches the object at path. Removing a missing object is a no-op
// that reports false.
func (s *Scene) Remove(path string) (*Object, bool) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.lookup(strings.Join(parts[:len(parts)-1], "/"))
	if p == nil {
		return nil, false
	}
	i, c := p.child(parts[len(parts)-1])
	if c == nil {
		return nil, false
	}
	p.Children = append(p.Children[:i], p.Children[i+1:]...)
	s.version++
	return c, true
}

func (s *Scene) Find(path string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(splitPath(path)) == 0 {
		return nil, errors.Wrap(ErrNotFound, "empty path")
	}
	o := s.lookup(path)
	if o == nil {
		return nil, errors.Wrap(ErrNotFound, path)
	}
	return o, nil
}

// Walk visits every object depth first with its slash path and world
// position. Returning false from fn skips the children of that object.
// fn runs under the read lock and must not modify the scene.
func (s *Scene) Walk(fn func(path string, obj *Object, world vec3.T) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var walk func(prefix string, o *Object, base vec3.T)
	walk = func(prefix string, o *Object, base vec3.T) {
		for _, c := range o.Children {
			path := c.Name
			if prefix != "" {
				path = prefix + "/" + c.Name
			}
			world := vec3.Add(&base, &c.Position)
			if fn(path, c, world) {
				walk(path, c, world)
			}
		}
	}
	walk("", s.root, vec3.T{})
}

// Count returns the number of objects carrying a mesh under path ("" for
// the whole scene).
func (s *Scene) Count(path string) int {
	prefix := strings.Join(splitPath(path), "/")
	n := 0
	s.Walk(func(p string, o *Object, _ vec3.T) bool {
		if o.Mesh != nil && (prefix == "" || p == prefix || strings.HasPrefix(p, prefix+"/")) {
			n++
		}
		return true
	})
	return n
}

// Update runs fn with the scene locked for writing. Material changes on
// objects already in the scene go through here.
func (s *Scene) Update(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	s.version++
}

func (s *Scene) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Scene) Background() color.RGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.background
}

func (s *Scene) Camera() Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.camera
}

func (s *Scene) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.camera.Resize(width, height)
	s.version++
}

func (s *Scene) AddLight(l Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lights = append(s.lights, l)
	s.version++
}

func (s *Scene) Lights() []Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Light(nil), s.lights...)
}

// SetEnvironment installs the environment map used for reflections and
// image based lighting.
func (s *Scene) SetEnvironment(tex *Texture) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.environment = tex
	s.version++
}

func (s *Scene) Environment() *Texture {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.environment
}
