package dto

// CreateRelationshipRequest creates one directed, named edge.
type CreateRelationshipRequest struct {
	ClientID         string `json:"clientid" validate:"required"`
	ParentID         string `json:"parentci_id" validate:"required"`
	ParentCategory   string `json:"parentci_classname" validate:"required"`
	RelationshipName string `json:"relationship_name" validate:"required"`
	ChildID          string `json:"childci_id" validate:"required"`
	ChildCategory    string `json:"childci_classname" validate:"required"`
	CreatedBy        string `json:"created_by,omitempty"`
}

// DeleteRelationshipRequest removes edges matching the full key.
type DeleteRelationshipRequest struct {
	ClientID         string `json:"clientid" validate:"required"`
	ParentID         string `json:"parentci_id" validate:"required"`
	RelationshipName string `json:"relationship_name" validate:"required"`
	ChildID          string `json:"childci_id" validate:"required"`
}
