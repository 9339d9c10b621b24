// Package schema generates an OpenAPI document describing jobcore's
// external wire attributes (spec.md §6): array_indices_submitted,
// array_indices_remaining, array_state_count, and a few related job
// attributes (the ArrayAttributes list below) that a client-facing RPC
// layer (out of scope per spec.md §1) would validate requests and
// responses against. The rest of the copied-attribute set is not described.
//
// The generator walks a fixed attribute descriptor table rather than
// reflecting over registered Go types the way the teacher's
// pkg/schema.GenerateOpenAPISchema walks its model registry — jobcore has
// no struct-per-resource model layer, only pkg/svrattr's id-keyed
// attribute table, so the descriptor list here plays the role the
// teacher's reflected struct fields play.
package schema

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// AttrKind is the wire type an attribute descriptor renders as.
type AttrKind int

const (
	KindString AttrKind = iota
	KindInteger
	KindBoolean
)

// AttrDescriptor documents one attribute's external wire shape.
type AttrDescriptor struct {
	Name        string
	Kind        AttrKind
	Description string
	Pattern     string // optional OpenAPI "pattern" (e.g. the range grammar)
	ReadOnly    bool
}

// ArrayAttributes is the exhaustive set of array-job wire attributes
// spec.md §6 names, the list cmd/schemagen renders into an OpenAPI
// document.
var ArrayAttributes = []AttrDescriptor{
	{
		Name:        "array_indices_submitted",
		Kind:        KindString,
		Description: "User-supplied index expression, grammar: indices := item (\",\" item)*; item := N | N \"-\" N [\":\" N].",
		Pattern:     `^[0-9]+(-[0-9]+(:[0-9]+)?)?(,[0-9]+(-[0-9]+(:[0-9]+)?)?)*$`,
	},
	{
		Name:        "array_indices_remaining",
		Kind:        KindString,
		Description: "Serialized queued-index range set, or \"-\" when empty.",
		Pattern:     `^(-|[0-9]+(-[0-9]+(:[0-9]+)?)?(,[0-9]+(-[0-9]+(:[0-9]+)?)?)*)$`,
		ReadOnly:    true,
	},
	{
		Name:        "array_state_count",
		Kind:        KindString,
		Description: `Fixed-order per-state subjob counts: "Queued:<q> Running:<r> Exiting:<e> Expired:<x>".`,
		Pattern:     `^Queued:[0-9]+ Running:[0-9]+ Exiting:[0-9]+ Expired:[0-9]+$`,
		ReadOnly:    true,
	},
	{
		Name:        "array_id",
		Kind:        KindString,
		Description: "The array parent's job id, set on every materialized subjob.",
		ReadOnly:    true,
	},
	{
		Name:        "array_index",
		Kind:        KindInteger,
		Description: "This subjob's index within its parent's submitted range.",
		ReadOnly:    true,
	},
	{
		Name:        "array",
		Kind:        KindBoolean,
		Description: "True on a job once it has become an array parent.",
		ReadOnly:    true,
	},
	{
		Name:        "exit_status",
		Kind:        KindInteger,
		Description: "Monotone join of children's exit status: 0 clean, 1 positive, 2 negative; never retreats.",
	},
	{
		Name:        "stageout_status",
		Kind:        KindInteger,
		Description: "Max of children's stage-out status.",
	},
	{
		Name:        "eligible_time",
		Kind:        KindInteger,
		Description: "Accrued eligible-time seconds, inherited by subjobs from their parent at creation.",
	},
	{
		Name:        "submit_host",
		Kind:        KindString,
		Description: "Submitting host, normalized to ASCII-compatible encoding.",
	},
	{
		Name:        "gridname",
		Kind:        KindString,
		Description: "Grid identifier, normalized to ASCII-compatible encoding.",
	},
}

func (k AttrKind) openAPIType() *openapi3.Types {
	switch k {
	case KindInteger:
		return &openapi3.Types{openapi3.TypeInteger}
	case KindBoolean:
		return &openapi3.Types{openapi3.TypeBoolean}
	default:
		return &openapi3.Types{openapi3.TypeString}
	}
}

// Generate builds the OpenAPI v3 document describing ArrayAttributes.
func Generate() (*openapi3.T, error) {
	props := make(openapi3.Schemas, len(ArrayAttributes))
	for _, d := range ArrayAttributes {
		s := &openapi3.Schema{
			Type:        d.Kind.openAPIType(),
			Description: d.Description,
			ReadOnly:    d.ReadOnly,
		}
		if d.Pattern != "" {
			s.Pattern = d.Pattern
		}
		props[d.Name] = &openapi3.SchemaRef{Value: s}
	}

	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "jobcore array-job wire attributes",
			Version:     "0.1.0",
			Description: "External attribute surface for the array-job subsystem (spec.md §6).",
		},
		Components: &openapi3.Components{
			Schemas: openapi3.Schemas{
				"ArrayJobAttributes": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:       &openapi3.Types{openapi3.TypeObject},
						Properties: props,
					},
				},
			},
		},
	}
	return doc, nil
}
