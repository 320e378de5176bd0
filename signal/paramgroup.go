package signal

// ParameterGroup is an external, typed key/value container used only to
// mirror slot counters and schema for UI/observability consumers (spec
// §6.3). The core calls these but never observes their results — callers
// (e.g. a UI tree or DataModel-backed adapter) implement it.
type ParameterGroup interface {
	AddNewIntParameter(name, description string, defaultValue int) error
	SetIntParameterValueByName(name string, value int) error
	AddNewTypedParameter(name string, typeTag ParameterType, description, defaultStr, unitsStr string) error
}
