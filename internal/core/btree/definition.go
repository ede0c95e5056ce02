package btree

import (
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// AssetID is the resolved handle of a node definition: the xxhash of its asset path.
type AssetID uint64

func AssetIDFromPath(path string) AssetID {
	return AssetID(xxhash.Sum64String(path))
}

// Definition is one node asset as the loading pipeline hands it over. Children refer
// to other assets by path; the binder resolves them.
type Definition struct {
	Path string    `json:"path" yaml:"path"`
	GUID uuid.UUID `json:"guid,omitempty" yaml:"guid,omitempty"`
	Name string    `json:"name,omitempty" yaml:"name,omitempty"`
	Kind Kind      `json:"type" yaml:"type"`

	// Children for composites, Child for decorators.
	Children []string `json:"children,omitempty" yaml:"children,omitempty"`
	Child    string   `json:"child,omitempty" yaml:"child,omitempty"`

	Abort AbortType `json:"abort,omitempty" yaml:"abort,omitempty"`

	// Leaf names a registered action, Condition a registered condition. Conditional
	// decorators and condition leaves use Condition.
	Leaf      string         `json:"leaf,omitempty" yaml:"leaf,omitempty"`
	Condition string         `json:"condition,omitempty" yaml:"condition,omitempty"`
	Params    map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// ID returns the definition's asset handle.
func (d *Definition) ID() AssetID {
	return AssetIDFromPath(d.Path)
}

// DisplayName falls back to the asset path.
func (d *Definition) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Path
}

// refs lists child references in evaluation order.
func (d *Definition) refs() []string {
	switch d.Kind.Category() {
	case CategoryComposite:
		return d.Children
	case CategoryDecorator:
		if d.Child == "" {
			return nil
		}
		return []string{d.Child}
	default:
		return nil
	}
}

// ResourceLookup resolves asset handles. Implementations return *MissingAssetError
// for unknown ids.
type ResourceLookup interface {
	GetAsset(id AssetID) (*Definition, error)
}

// guidFor returns the definition GUID, deriving a stable one from the path when the
// asset did not declare it.
func guidFor(d *Definition) uuid.UUID {
	if d.GUID != uuid.Nil {
		return d.GUID
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("btree:"+d.Path))
}
