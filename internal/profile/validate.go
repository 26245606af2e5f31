package profile

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// ValidateTree checks a merged raw profile tree against the embedded
// schema. Violations come back as a ProfileError whose detail lists every
// offending path.
func ValidateTree(name string, tree map[string]any) error {
	ctx := cuecontext.New()

	schemaFile := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schemaFile.Err(); err != nil {
		return fmt.Errorf("compile profile schema: %w", err)
	}
	schema := schemaFile.LookupPath(cue.ParsePath("#Profile"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("lookup #Profile: %w", err)
	}

	if tree == nil {
		tree = map[string]any{}
	}
	doc := ctx.Encode(tree)
	if err := doc.Err(); err != nil {
		return &ProfileError{Profile: name, Detail: "encode profile tree", Err: err}
	}

	unified := schema.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &ProfileError{
			Profile: name,
			Detail:  "schema violation\n" + cueerrors.Details(err, nil),
		}
	}
	return nil
}
