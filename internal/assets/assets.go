// Package assets caches decoded game assets: skeletons, motion clips,
// and entity templates. Lookups are warm-path; cold loads hit the disk
// and are tolerated as frame hitches.
package assets

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/voidworks/darkvr/internal/engine/anim"
	"github.com/voidworks/darkvr/internal/engine/skeleton"
	"github.com/voidworks/darkvr/internal/game/entity"
	"github.com/voidworks/darkvr/internal/logger"
	"github.com/voidworks/darkvr/pkg/formats"
	"github.com/voidworks/darkvr/pkg/math"
)

var (
	ErrClipMissing     = errors.New("assets: motion clip not found")
	ErrSkeletonMissing = errors.New("assets: skeleton not found")
)

// Template describes an instantiable entity archetype.
type Template struct {
	Name            string
	ID              entity.TemplateID
	ModelName       string
	Creature        entity.Creature
	InitialVelocity math.Vec3
	Radius          float32
	HitPoints       int32
	Scripts         []string
	MotionActorTags []string
	VoiceIndex      int
}

// Cache holds decoded assets keyed by name. Safe for concurrent reads;
// loads take the write lock.
type Cache struct {
	root string

	mu        sync.RWMutex
	clips     map[string]*anim.Clip
	skeletons map[string]*skeleton.Skeleton
	templates map[string]*Template
}

// NewCache returns a cache rooted at the asset directory. An empty
// root disables disk loads; everything must be registered explicitly.
func NewCache(root string) *Cache {
	return &Cache{
		root:      root,
		clips:     make(map[string]*anim.Clip),
		skeletons: make(map[string]*skeleton.Skeleton),
		templates: make(map[string]*Template),
	}
}

// RegisterClip adds a clip under its own name.
func (c *Cache) RegisterClip(clip *anim.Clip) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clips[strings.ToLower(clip.Name)] = clip
}

// RegisterSkeleton adds a skeleton under a model name.
func (c *Cache) RegisterSkeleton(model string, s *skeleton.Skeleton) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skeletons[strings.ToLower(model)] = s
}

// RegisterTemplate adds a template under its name.
func (c *Cache) RegisterTemplate(t *Template) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates[strings.ToLower(t.Name)] = t
}

// Clip returns a motion clip by name, loading <root>/<name>.mc on a
// miss.
func (c *Cache) Clip(name string) (*anim.Clip, error) {
	key := strings.ToLower(name)

	c.mu.RLock()
	clip, ok := c.clips[key]
	c.mu.RUnlock()
	if ok {
		return clip, nil
	}
	if c.root == "" {
		return nil, fmt.Errorf("%w: %q", ErrClipMissing, name)
	}

	mc, err := formats.ParseMCFile(filepath.Join(c.root, key+".mc"))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrClipMissing, name, err)
	}
	clip = anim.ClipFromMC(mc)

	c.mu.Lock()
	c.clips[key] = clip
	c.mu.Unlock()
	logger.Debug("clip loaded", zap.String("name", name), zap.Uint32("frames", clip.NumFrames))
	return clip, nil
}

// Skeleton returns a model's skeleton, loading <root>/<model>.cal on a
// miss.
func (c *Cache) Skeleton(model string) (*skeleton.Skeleton, error) {
	key := strings.ToLower(model)

	c.mu.RLock()
	s, ok := c.skeletons[key]
	c.mu.RUnlock()
	if ok {
		return s, nil
	}
	if c.root == "" {
		return nil, fmt.Errorf("%w: %q", ErrSkeletonMissing, model)
	}

	cal, err := formats.ParseCALFile(filepath.Join(c.root, key+".cal"))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrSkeletonMissing, model, err)
	}
	s = skeleton.FromCAL(cal)

	c.mu.Lock()
	c.skeletons[key] = s
	c.mu.Unlock()
	logger.Debug("skeleton loaded", zap.String("model", model), zap.Int("bones", s.BoneCount()))
	return s, nil
}

// Template looks up a template by name.
func (c *Cache) Template(name string) (*Template, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.templates[strings.ToLower(name)]
	return t, ok
}

// TemplateByID looks up a template by numeric ID.
func (c *Cache) TemplateByID(id entity.TemplateID) (*Template, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.templates {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// LoadGLB parses a binary glTF file and registers its skeleton under
// the model name plus every contained clip.
func (c *Cache) LoadGLB(model, path string) error {
	glb, err := formats.ParseGLBFile(path)
	if err != nil {
		return fmt.Errorf("load glb %q: %w", path, err)
	}
	c.RegisterSkeleton(model, skeleton.FromGLB(glb))
	for i := range glb.Clips {
		c.RegisterClip(anim.ClipFromGLB(&glb.Clips[i]))
	}
	logger.Info("glb registered",
		zap.String("model", model),
		zap.Int("joints", len(glb.Joints)),
		zap.Int("clips", len(glb.Clips)))
	return nil
}
