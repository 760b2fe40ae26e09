package manifest

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// schemaSrc constrains the decoded TOML document. Unknown sections and keys
// are rejected.
const schemaSrc = `
project?: close({
	name?:      string
	namespace?: string
	version?:   string
	entry?:     string
})
engine?: close({
	"max-stack"?:          int & >0
	"initial-stack"?:      int & >0
	"max-frame-depth"?:    int & >=0
	sandbox?:              bool
	"check-stack-bounds"?: bool
})
compiler?: close({
	debug?:        bool
	"tail-calls"?: bool
})
log?: close({
	verbosity?: int & >=-4 & <=4
	path?:      string
})
store?: close({
	path?: string & !=""
})
`

// validate checks a decoded manifest against the schema.
func validate(doc map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString("close({" + schemaSrc + "})")
	if err := schema.Err(); err != nil {
		return fmt.Errorf("manifest schema: %w", err)
	}
	value := ctx.Encode(doc)
	if err := value.Err(); err != nil {
		return err
	}
	if err := schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return err
	}
	return nil
}
