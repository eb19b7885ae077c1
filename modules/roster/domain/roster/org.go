package roster

// OrgRecord is an institution as held by the canonical store.
// Code is zero when the store has none recorded.
type OrgRecord struct {
	ID   string `json:"id"`
	Code int    `json:"code,omitempty"`
	Name string `json:"name"`
}

func (o OrgRecord) HasCode() bool {
	return o.Code > 0
}
