package tracker

// Alias maps a loose type name onto a schema. ObjectTypeID, when set,
// restricts the alias to contexts of that object type.
type Alias struct {
	Name         string `yaml:"name" json:"name"`
	ObjectTypeID string `yaml:"object_type_id,omitempty" json:"object_type_id,omitempty"`
}

// Schema is one concrete entity type known to the tracking platform.
type Schema struct {
	ID      string  `yaml:"id" json:"id"`
	Aliases []Alias `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// Disk holds per-platform mount points for a project.
type Disk struct {
	Unix    string `yaml:"unix" json:"unix"`
	Windows string `yaml:"windows" json:"windows"`
}

// Context is a node of the production hierarchy: project, episode,
// sequence, shot, folder or task.
type Context struct {
	ID           string            `yaml:"id" json:"id"`
	Name         string            `yaml:"name" json:"name"`
	ObjectType   string            `yaml:"object_type" json:"object_type"`
	ObjectTypeID string            `yaml:"object_type_id,omitempty" json:"object_type_id,omitempty"`
	TypeName     string            `yaml:"type,omitempty" json:"type,omitempty"` // task type, e.g. "Compositing"
	ParentID     string            `yaml:"parent_id,omitempty" json:"parent_id,omitempty"`
	FrameStart   *float64          `yaml:"frame_start,omitempty" json:"frame_start,omitempty"`
	FrameEnd     *float64          `yaml:"frame_end,omitempty" json:"frame_end,omitempty"`
	Attributes   map[string]string `yaml:"attributes,omitempty" json:"attributes,omitempty"`

	// Project only.
	Root string `yaml:"root,omitempty" json:"root,omitempty"`
	Disk Disk   `yaml:"disk,omitempty" json:"disk,omitempty"`
}

// IsTask reports whether the context is a task.
func (c Context) IsTask() bool { return c.ObjectType == "Task" }

// Asset groups the versions of one deliverable under a context.
type Asset struct {
	ID        string `yaml:"id" json:"id"`
	Name      string `yaml:"name" json:"name"`
	Type      string `yaml:"type" json:"type"`
	ContextID string `yaml:"context_id" json:"context_id"`
}

// AssetVersion is one numbered version of an asset.
type AssetVersion struct {
	ID        string `yaml:"id" json:"id"`
	AssetID   string `yaml:"asset_id" json:"asset_id"`
	Version   int    `yaml:"version" json:"version"`
	Published bool   `yaml:"published" json:"published"`
}

// Component is a named file or file sequence attached to a version.
type Component struct {
	ID        string `yaml:"id" json:"id"`
	VersionID string `yaml:"version_id" json:"version_id"`
	Name      string `yaml:"name" json:"name"`
	Path      string `yaml:"path" json:"path"`
}
