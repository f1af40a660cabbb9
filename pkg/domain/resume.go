package domain

// ResumptionRecord is the serialized snapshot enabling a paused run to
// continue later. It is the entire contract a caller needs to resume:
// serialize it, store it, later deserialize it unchanged and hand it back.
type ResumptionRecord struct {
	CurrentStateName  string         `json:"currentStateName"`
	Data              map[string]any `json:"data"`
	Task              string         `json:"task"`
	DataSources       []ResourceRef  `json:"dataSources"`
	ActiveDataSources []ResourceRef  `json:"activeDataSources"`
}

// Suspend captures the resumption record for a run paused at stateName.
func (c *Context) Suspend(stateName string) ResumptionRecord {
	return ResumptionRecord{
		CurrentStateName:  stateName,
		Data:              c.Snapshot(),
		Task:              c.Task,
		DataSources:       append([]ResourceRef(nil), c.DataSources...),
		ActiveDataSources: append([]ResourceRef(nil), c.ActiveDataSources...),
	}
}

// Restore rebuilds a working context from a resumption record.
func (r ResumptionRecord) Restore() *Context {
	c := NewContext(r.Task)
	c.SetAll(r.Data)
	c.DataSources = append([]ResourceRef(nil), r.DataSources...)
	c.ActiveDataSources = append([]ResourceRef(nil), r.ActiveDataSources...)
	return c
}
