package domain

// ResourceRef is an opaque reference to a retrievable resource.
// The engine never interprets its contents; it only passes refs through
// to the retrieval collaborator.
type ResourceRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

// NormalizeResources converts bare identifiers into reference objects.
// Values that are already ResourceRefs pass through unchanged.
func NormalizeResources(raw []any) []ResourceRef {
	refs := make([]ResourceRef, 0, len(raw))
	for _, r := range raw {
		switch v := r.(type) {
		case ResourceRef:
			refs = append(refs, v)
		case *ResourceRef:
			if v != nil {
				refs = append(refs, *v)
			}
		case string:
			refs = append(refs, ResourceRef{ID: v})
		}
	}
	return refs
}
