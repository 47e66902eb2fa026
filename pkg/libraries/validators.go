package libraries

type LibraryMetadataPayload struct {
	Provider string `json:"provider" validate:"required,max=100"`
	APIKey   string `json:"apiKey,omitempty" validate:"omitempty,max=200"`
}

type CreateLibraryPayload struct {
	Name     string                  `json:"name" validate:"required,max=100"`
	Path     string                  `json:"path" validate:"required,max=1000"`
	Type     string                  `json:"type" validate:"required,oneof=book manga"`
	Metadata *LibraryMetadataPayload `json:"metadata,omitempty"`
}

type ListLibrariesQuery struct {
	Limit  int     `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=100"`
	Offset int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Type   *string `query:"type" json:"type,omitempty" validate:"omitempty,oneof=book manga"`
}

type UpdateLibraryPayload struct {
	Name     *string                 `json:"name,omitempty" validate:"omitempty,max=100"`
	Path     *string                 `json:"path,omitempty" validate:"omitempty,max=1000"`
	Metadata *LibraryMetadataPayload `json:"metadata,omitempty"`
}
