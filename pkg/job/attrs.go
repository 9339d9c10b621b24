package job

import (
	"strconv"

	"golang.org/x/net/idna"

	"github.com/hpcflow/jobcore/pkg/svrattr"
)

// stringDef is a Def for a plain string-valued attribute with an optional
// normalizing Action, modeled on the teacher's registry.Hook pattern
// (pkg/model/model/asset.go's GetHooks): a small Call closure run on
// NEW/ALTER/RECOV that mutates the value in place before it is stored.
// Store.Set records value before invoking Action, so normalization writes
// the corrected value back through the store rather than returning it.
type stringDef struct {
	svrattr.BaseDef
	id        svrattr.ID
	normalize func(string) (string, error)
}

func (d stringDef) Action(owner svrattr.Owner, mode svrattr.Mode, value any) error {
	if d.normalize == nil {
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return nil
	}
	normalized, err := d.normalize(s)
	if err != nil {
		return Wrap(KindBadAttrValue, err, "normalizing attribute %q", d.Name())
	}
	if normalized == s {
		return nil
	}
	j, ok := owner.(*Job)
	if !ok {
		return nil
	}
	return j.Attrs.Set(d.id, normalized, svrattr.ModeInternal)
}

// longDef is a Def for an int64-valued attribute.
type longDef struct {
	svrattr.BaseDef
}

func (longDef) Decode(raw string) (any, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, Wrap(KindBadAttrValue, err, "parsing integer attribute %q", raw)
	}
	return n, nil
}

func (longDef) Encode(value any) (string, error) {
	n, ok := value.(int64)
	if !ok {
		return "", Newf(KindBadAttrValue, "expected int64, got %T", value)
	}
	return strconv.FormatInt(n, 10), nil
}

// arrayInstallDef is the Def for array_indices_submitted: its Action is
// the installation hook spec.md §4.4 describes — parsing the submitted
// range and building the ArrayInfo tracker — wired through the attribute
// store exactly the way spec.md §4.2 says an attribute Action runs on
// NEW/ALTER/RECOV.
type arrayInstallDef struct {
	svrattr.BaseDef
	maxArraySize int
}

func (d arrayInstallDef) Action(owner svrattr.Owner, mode svrattr.Mode, value any) error {
	j, ok := owner.(*Job)
	if !ok {
		return Newf(KindInternal, "array_indices_submitted action on non-Job owner")
	}
	text, ok := value.(string)
	if !ok {
		return Newf(KindBadAttrValue, "array_indices_submitted expects a string, got %T", value)
	}
	if mode == svrattr.ModeNew && j.Array != nil {
		// Defensive double-submit guard (original_source/src/server/array_func.c):
		// a second NEW-mode install for a job that already has a tracker is a
		// bug in the caller, not a user-correctable input error. ALTER/RECOV
		// against an already-installed parent are the documented paths (spec.md
		// §4.4: "mode ∈ {NEW, RECOV, ALTER} … Release any previous tracker") and
		// must reach Install below.
		return Newf(KindInternal, "array_indices_submitted already installed for %q", j.ID)
	}
	return Install(j, text, mode, d.maxArraySize)
}

// NewAttrTable builds the attribute definition table the array-job
// subsystem needs: the identifiers spec.md §3 names, plus the
// array_indices_submitted install hook and idna normalization for
// submit_host/gridname (mirroring the teacher's Asset.DNS/Asset.Name
// punycode normalization).
func NewAttrTable(maxArraySize int) *svrattr.Table {
	t := svrattr.NewTable()

	t.Register(svrattr.JobName, svrattr.BaseDef{AttrName: "jobname"})
	t.Register(svrattr.JobOwner, svrattr.BaseDef{AttrName: "job_owner"})
	t.Register(svrattr.Resource, svrattr.BaseDef{AttrName: "resource"})
	t.Register(svrattr.EligibleTime, longDef{svrattr.BaseDef{AttrName: "eligible_time"}})
	t.Register(svrattr.SampleStartTime, longDef{svrattr.BaseDef{AttrName: "sample_starttime"}})
	t.Register(svrattr.ExitStatus, longDef{svrattr.BaseDef{AttrName: "exit_status"}})
	t.Register(svrattr.StageoutStatus, longDef{svrattr.BaseDef{AttrName: "stageout_status"}})
	t.Register(svrattr.ArrayFlag, svrattr.BaseDef{AttrName: "array"})
	t.Register(svrattr.ArrayIndicesSubmitted, arrayInstallDef{
		BaseDef:      svrattr.BaseDef{AttrName: "array_indices_submitted"},
		maxArraySize: maxArraySize,
	})
	t.Register(svrattr.ArrayIndicesRemaining, svrattr.BaseDef{AttrName: "array_indices_remaining"})
	t.Register(svrattr.ArrayStateCount, svrattr.BaseDef{AttrName: "array_state_count"})
	t.Register(svrattr.ArrayID, svrattr.BaseDef{AttrName: "array_id"})
	t.Register(svrattr.ArrayIndex, longDef{svrattr.BaseDef{AttrName: "array_index"}})
	t.Register(svrattr.OutPath, svrattr.BaseDef{AttrName: "Output_Path"})
	t.Register(svrattr.ErrPath, svrattr.BaseDef{AttrName: "Error_Path"})
	t.Register(svrattr.SubmitHost, stringDef{
		BaseDef:   svrattr.BaseDef{AttrName: "submit_host"},
		id:        svrattr.SubmitHost,
		normalize: idna.ToASCII,
	})
	t.Register(svrattr.GridName, stringDef{
		BaseDef:   svrattr.BaseDef{AttrName: "gridname"},
		id:        svrattr.GridName,
		normalize: idna.ToASCII,
	})
	t.Register(svrattr.CredID, svrattr.BaseDef{AttrName: "cred_id"})
	t.Register(svrattr.CredValidity, longDef{svrattr.BaseDef{AttrName: "cred_validity"}})
	t.Register(svrattr.Endtime, longDef{svrattr.BaseDef{AttrName: "endtime"}})
	t.Register(svrattr.Depend, svrattr.BaseDef{AttrName: "depend"})

	return t
}
