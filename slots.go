package showcase

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// SlotSpec describes the material of one model part. Name labels the slot
// for texture bindings. The part is looked up by Mesh, its name in the model
// file; Index is only used when Mesh is empty.
type SlotSpec struct {
	Name     string
	Mesh     string
	Index    *int
	Material *Material
}

func (s SlotSpec) String() string {
	switch {
	case s.Mesh != "":
		return fmt.Sprintf("%s(%q)", s.Name, s.Mesh)
	case s.Index != nil:
		return fmt.Sprintf("%s(#%d)", s.Name, *s.Index)
	}
	return s.Name
}

// SlotError lists every slot that could not be matched against a model.
type SlotError struct {
	Model    string
	Problems []string
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("model %s: %d unresolved material slot(s): %s",
		e.Model, len(e.Problems), strings.Join(e.Problems, "; "))
}

// Slots maps slot names to the parts they resolved to.
type Slots map[string]*Part

// ResolveSlots matches specs against model parts. Nothing is partially
// resolved: when any slot fails, the returned *SlotError names all of them.
func ResolveSlots(model *Model, specs []SlotSpec) (Slots, error) {
	if model == nil {
		return nil, errors.New("resolve slots: nil model")
	}
	var (
		out      = make(Slots, len(specs))
		problems []string
		claimed  = make(map[*Part]string)
	)
	for _, s := range specs {
		if s.Name == "" {
			problems = append(problems, "slot without a name")
			continue
		}
		if _, dup := out[s.Name]; dup {
			problems = append(problems, fmt.Sprintf("slot %q declared twice", s.Name))
			continue
		}
		var part *Part
		switch {
		case s.Mesh != "":
			p, ok := model.Part(s.Mesh)
			if !ok {
				problems = append(problems, fmt.Sprintf("slot %q: no part named %q (have %s)",
					s.Name, s.Mesh, strings.Join(model.Names(), ", ")))
				continue
			}
			part = p
		case s.Index != nil:
			p, err := model.PartAt(*s.Index)
			if err != nil {
				problems = append(problems, fmt.Sprintf("slot %q: %v", s.Name, err))
				continue
			}
			part = p
		default:
			problems = append(problems, fmt.Sprintf("slot %q has neither mesh nor index", s.Name))
			continue
		}
		if prev, ok := claimed[part]; ok {
			problems = append(problems, fmt.Sprintf("part %q claimed by both %s and %s", part.Name, prev, s))
			continue
		}
		claimed[part] = s.String()
		out[s.Name] = part
	}
	if len(problems) > 0 {
		return nil, &SlotError{Model: model.Name, Problems: problems}
	}
	return out, nil
}

// AssignSlots resolves the slots and gives each matched part its own copy
// of the slot material. Parts without a slot keep their material.
func AssignSlots(model *Model, specs []SlotSpec) (Slots, error) {
	slots, err := ResolveSlots(model, specs)
	if err != nil {
		return nil, err
	}
	for _, s := range specs {
		if s.Material == nil {
			continue
		}
		part := slots[s.Name]
		m := s.Material.Clone()
		if part.Material != nil {
			m.Version = part.Material.Version + 1
		}
		part.Material = m
	}
	return slots, nil
}

// MapBinding attaches a loaded texture to one map of one slot.
type MapBinding struct {
	Slot string
	Map  MapKind
}

// TextureBinding is a texture file and every material map it feeds.
type TextureBinding struct {
	URL        string
	ColorSpace ColorSpace
	FlipY      bool
	Bind       []MapBinding
}

// Options returns the decode flags of the binding.
func (t TextureBinding) Options() TextureOptions {
	return TextureOptions{ColorSpace: t.ColorSpace, FlipY: t.FlipY, Mapping: UVMapping}
}

// Apply binds tex to the mapped slots. Unknown slots are reported together,
// known ones are still bound.
func (t TextureBinding) Apply(slots Slots, tex *Texture) error {
	var problems []string
	for _, b := range t.Bind {
		part, ok := slots[b.Slot]
		if !ok {
			problems = append(problems, fmt.Sprintf("no slot named %q", b.Slot))
			continue
		}
		if part.Material == nil {
			part.Material = NewMaterial()
		}
		if err := part.Material.SetMap(b.Map, tex); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.Errorf("%s: %s", t.URL, strings.Join(problems, "; "))
	}
	return nil
}

// Validate checks the bindings against slot names without a model, so
// configuration mistakes surface before anything is fetched.
func (t TextureBinding) Validate(slots map[string]bool) error {
	var problems []string
	if t.URL == "" {
		problems = append(problems, "texture without url")
	}
	for _, b := range t.Bind {
		if !b.Map.Valid() {
			problems = append(problems, fmt.Sprintf("%s: unknown map %q", t.URL, b.Map))
		}
		if !slots[b.Slot] {
			problems = append(problems, fmt.Sprintf("%s: unknown slot %q", t.URL, b.Slot))
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
