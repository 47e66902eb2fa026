package collections

type CreateCollectionPayload struct {
	LibraryID int    `json:"library_id" validate:"required,min=1"`
	Name      string `json:"name" validate:"required,max=200"`
	Series    []int  `json:"series" validate:"omitempty,dive,min=1"`
}

type ListCollectionsQuery struct {
	LibraryID *int `query:"library_id" json:"library_id,omitempty" validate:"omitempty,min=1"`
	Limit     int  `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=100"`
	Offset    int  `query:"offset" json:"offset,omitempty" validate:"min=0"`
}

type UpdateCollectionPayload struct {
	Name   *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Series []int   `json:"series,omitempty" validate:"omitempty,dive,min=1"`
}
