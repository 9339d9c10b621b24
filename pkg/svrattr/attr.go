// Package svrattr implements the typed attribute store described in
// spec.md §4.2 (component C2): a table of attribute definitions keyed by
// id, each carrying decode/encode behavior plus an optional action
// callback fired on NEW/ALTER/RECOV, and a per-job Store
// that tracks which attributes are dirty and caches their encoded form.
//
// The definition table is modeled the way the teacher's registry package
// models per-kind model behavior (pkg/registry.Model + Hook): an interface
// with a handful of methods, one implementation per attribute kind,
// selected by id instead of switched on by a type tag.
package svrattr

import "fmt"

// ID enumerates the attribute identifiers named in spec.md §3: jobname,
// resource, eligible_time, exit_status, array_indices_submitted, etc. Only
// the identifiers the array-job subsystem touches are enumerated here;
// an attribute without an identifier in this list cannot be held by a
// Store, so create_subjob copies only these.
type ID int

const (
	Unknown ID = iota
	JobName
	JobOwner
	Resource
	EligibleTime
	SampleStartTime
	ExitStatus
	StageoutStatus
	ArrayFlag
	ArrayIndicesSubmitted
	ArrayIndicesRemaining
	ArrayStateCount
	ArrayID
	ArrayIndex
	OutPath
	ErrPath
	SubmitHost
	GridName
	CredID
	CredValidity
	Endtime
	Depend
	idSentinel
)

// Mode is the installation context under which an attribute's action hook
// runs: spec.md §4.2/§4.4 name these NEW, ALTER, and RECOV.
type Mode int

const (
	ModeNew Mode = iota
	ModeAlter
	ModeRecov
	ModeInternal // bypasses the action hook entirely, per spec.md §4.3
)

// Flag bits carried on every attribute value, per spec.md §3.
type Flag uint8

const (
	FlagSet Flag = 1 << iota
	FlagDefault
	FlagIndirect
	FlagTarget
)

func (f Flag) Has(bit Flag) bool { return f&bit != 0 }

// Def is the per-kind behavior table entry for one attribute id: the
// function-pointer table of spec.md §4.2, expressed as methods instead of
// raw function pointers.
type Def interface {
	Name() string
	Decode(raw string) (any, error)
	Encode(value any) (string, error)
	// Action runs NEW/ALTER/RECOV side effects (e.g. installing an array
	// tracker). A nil return means "no action defined".
	Action(owner Owner, mode Mode, value any) error
}

// Owner is the minimal surface a Def.Action needs from the record that
// holds the attribute store — deliberately narrow so pkg/svrattr never
// imports pkg/job (per spec.md §9's "avoid reference cycles" note).
type Owner interface {
	GetKey() string
}

// BaseDef provides a no-op Action for definitions that don't need one.
type BaseDef struct {
	AttrName string
}

func (d BaseDef) Name() string                                 { return d.AttrName }
func (d BaseDef) Action(_ Owner, _ Mode, _ any) error           { return nil }
func (d BaseDef) Decode(raw string) (any, error)                { return raw, nil }
func (d BaseDef) Encode(value any) (string, error)              { return fmt.Sprintf("%v", value), nil }

// UnknownAttribute is returned when a definition lookup by name fails,
// per spec.md §4.2.
type UnknownAttribute struct {
	Name string
}

func (e *UnknownAttribute) Error() string {
	return fmt.Sprintf("svrattr: unknown attribute %q", e.Name)
}

// Table is the process-wide registry of attribute definitions, analogous to
// the teacher's registry.TypeRegistry but keyed by attribute id rather than
// Go type.
type Table struct {
	byID   map[ID]Def
	byName map[string]ID
}

// NewTable constructs an empty definition table.
func NewTable() *Table {
	return &Table{byID: make(map[ID]Def), byName: make(map[string]ID)}
}

// Register adds a definition to the table.
func (t *Table) Register(id ID, def Def) {
	t.byID[id] = def
	t.byName[def.Name()] = id
}

// Lookup resolves an attribute name to its id and definition.
func (t *Table) Lookup(name string) (ID, Def, error) {
	id, ok := t.byName[name]
	if !ok {
		return Unknown, nil, &UnknownAttribute{Name: name}
	}
	return id, t.byID[id], nil
}

// Def returns the definition registered for id, or nil.
func (t *Table) Def(id ID) Def {
	return t.byID[id]
}
