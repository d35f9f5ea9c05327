package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	oppSchemaOnce sync.Once
	oppSchema     *jsonschema.Schema
	oppSchemaErr  error
)

// compiledOpportunitySchema compiles the opportunity-list schema once; the
// schema is static so the compile cost is paid a single time per process.
func compiledOpportunitySchema() (*jsonschema.Schema, error) {
	oppSchemaOnce.Do(func() {
		b, err := json.Marshal(BuildOpportunityListSchema())
		if err != nil {
			oppSchemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("opportunities.json", bytes.NewReader(b)); err != nil {
			oppSchemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		oppSchema, oppSchemaErr = compiler.Compile("opportunities.json")
	})
	return oppSchema, oppSchemaErr
}

// validateOpportunityList checks a sanitized completion document against the
// opportunity-list schema.
func validateOpportunityList(data []byte) error {
	schema, err := compiledOpportunitySchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
