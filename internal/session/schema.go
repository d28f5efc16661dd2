package session

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/erg0nix/trialchat/internal/core"
)

//go:embed sessions.schema.json
var sessionsSchemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compileSchema() {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(sessionsSchemaJSON))
	if err != nil {
		schemaErr = fmt.Errorf("parse sessions schema: %w", err)
		return
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("sessions.schema.json", doc); err != nil {
		schemaErr = fmt.Errorf("add sessions schema: %w", err)
		return
	}

	schema, schemaErr = c.Compile("sessions.schema.json")
}

// decodeSessions validates a persisted collection and decodes it.
func decodeSessions(data []byte) ([]core.Session, error) {
	schemaOnce.Do(compileSchema)
	if schemaErr != nil {
		return nil, schemaErr
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse sessions: %w", err)
	}
	if err := schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("validate sessions: %w", err)
	}

	var sessions []core.Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	return sessions, nil
}
